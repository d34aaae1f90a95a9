package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
	"github.com/fatflowers/iptv-crm/pkg/response"
)

const defaultMaxUploadMB = 10

// readUpload parses the multipart "file" field as CSV and the optional
// "mapping" field as a JSON object of target -> header.
func readUpload(c *gin.Context, maxMB int) (*importer.Table, importer.Mapping, error) {
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxMB)<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, errs.Validation("file", "", err.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errs.Validation("file", fh.Filename, err.Error())
	}
	defer f.Close()

	table, err := importer.ParseCSV(f)
	if err != nil {
		return nil, nil, err
	}

	var override importer.Mapping
	if raw := strings.TrimSpace(c.PostForm("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &override); err != nil {
			return nil, nil, errs.Validation("mapping", raw, "must be a JSON object of target to header")
		}
	}
	return table, override, nil
}

// @Summary      Preview Import
// @Description  Parses the uploaded CSV, infers the column mapping and returns the first rows for review. Nothing is written.
// @Tags         Import
// @Accept       multipart/form-data
// @Produce      json
// @Param        file    formData file   true  "CSV file"
// @Param        mapping formData string false "JSON object overriding the inferred mapping, e.g. {\"client\":\"Nome\"}"
// @Success      200  {object}  handlers.RespImportPreview
// @Router       /api/v1/import/preview [post]
func ApiImportPreview(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, override, err := readUpload(c, cfg.Import.MaxUploadMB)
		if err != nil {
			fail(c, err)
			return
		}
		p, err := importer.BuildPreview(table, override)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Import CSV
// @Description  Reconciles every row into clients, subscriptions and lines. Failed rows are reported and do not stop the import.
// @Tags         Import
// @Accept       multipart/form-data
// @Produce      json
// @Param        file                 formData file   true  "CSV file"
// @Param        mapping              formData string false "JSON object overriding the inferred mapping"
// @Param        allow_missing_client formData bool   false "confirm that rows without a client column use the placeholder client"
// @Param        placeholder_client   formData string false "placeholder client name"
// @Success      200  {object}  handlers.RespImportResult
// @Router       /api/v1/import [post]
func ApiImport(svc *importer.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		table, override, err := readUpload(c, cfg.Import.MaxUploadMB)
		if err != nil {
			fail(c, err)
			return
		}
		l := logctx.FromGin(c, zap.S())
		opts := importer.Options{
			PlaceholderClient: strings.TrimSpace(c.PostForm("placeholder_client")),
			Progress: func(p importer.Progress) {
				l.Debugw("import progress", "done", p.Done, "total", p.Total, "row", p.RowIndex)
			},
		}
		if raw := c.PostForm("allow_missing_client"); raw != "" {
			allow, err := strconv.ParseBool(raw)
			if err != nil {
				badRequest(c, errs.Validation("allow_missing_client", raw, "must be a boolean"))
				return
			}
			opts.AllowMissingClient = allow
		}

		mapping := importer.InferMapping(table.Headers).Merge(override)
		res, err := svc.Import(c.Request.Context(), table, mapping, opts)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterImportRoutes(r gin.IRouter, svc *importer.Service, cfg *config.Config) {
	r.POST("/preview", ApiImportPreview(cfg))
	r.POST("", ApiImport(svc, cfg))
}
