package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
	"github.com/fatflowers/iptv-crm/pkg/response"
	"github.com/fatflowers/iptv-crm/pkg/tool"
)

// ListResponse is the data of every paginated list endpoint.
type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}

// fail writes the envelope matching err. Internal errors are logged with the
// request logger; the client only sees the message.
func fail(c *gin.Context, err error) {
	code := response.CodeFor(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, zap.S()).Errorw("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(http.StatusOK, response.FromError(err))
}

// validID rejects a malformed :id before it reaches the store.
func validID(c *gin.Context) {
	if id := c.Param("id"); !tool.IsUUID(id) {
		badRequest(c, errs.Validation("id", id, "must be a UUID"))
		c.Abort()
		return
	}
	c.Next()
}

// dateQuery reads an optional date query parameter, falling back to def.
func dateQuery(c *gin.Context, key string, def time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	d, err := lifecycle.ParseDate(raw)
	if err != nil {
		return time.Time{}, errs.Validation(key, raw, "unrecognized date format")
	}
	return d, nil
}
