package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/iptv-crm/internal/app/service/export"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/app/service/statistics"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/response"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// @Summary      Dashboard
// @Description  Client, subscription, ticket and revenue figures as of a date (default today).
// @Tags         Statistics
// @Produce      json
// @Param        date query string false "reference date, YYYY-MM-DD"
// @Success      200  {object}  handlers.RespDashboard
// @Router       /api/v1/stats/dashboard [get]
func ApiDashboard(svc *statistics.Service, engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := dateQuery(c, "date", engine.Today())
		if err != nil {
			badRequest(c, err)
			return
		}
		d, err := svc.Dashboard(c.Request.Context(), ref)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

// @Summary      Export Subscriptions
// @Description  Every subscription as a CSV file that the importer can read back.
// @Tags         Export
// @Produce      text/csv
// @Success      200  {file}  file
// @Router       /api/v1/export/subscriptions.csv [get]
func ApiExportSubscriptions(svc *export.Service, engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := svc.Load(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		name := fmt.Sprintf("abbonamenti_%s.csv", engine.Today().Format(time.DateOnly))
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		c.Status(http.StatusOK)
		if err := export.Write(c.Writer, views); err != nil {
			// headers are already out; the truncated body is all we can signal
			_ = c.Error(err)
		}
	}
}

// @Summary      Run Expiration Sweep
// @Description  Sends reminders for subscriptions ending at the configured offsets from the date (default today).
// @Tags         Sweep
// @Produce      json
// @Param        date query string false "reference date, YYYY-MM-DD"
// @Success      200  {object}  handlers.RespSweepReport
// @Router       /api/v1/sweep/run [post]
func ApiRunSweep(svc *sweep.Service, engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := dateQuery(c, "date", engine.Today())
		if err != nil {
			badRequest(c, err)
			return
		}
		report, err := svc.Run(c.Request.Context(), ref)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

type ClassifyResponse struct {
	Status           types.SubscriptionStatus `json:"status"`
	DaysLeft         int                      `json:"days_left"`
	ExpiringSoonDays int                      `json:"expiring_soon_days"`
}

// @Summary      Classify End Date
// @Description  Status of a subscription ending on end_date as of ref (default today).
// @Tags         Lifecycle
// @Produce      json
// @Param        end_date query string true  "end date"
// @Param        ref      query string false "reference date"
// @Success      200  {object}  handlers.RespClassify
// @Router       /api/v1/lifecycle/classify [get]
func ApiClassify(engine *lifecycle.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("end_date") == "" {
			badRequest(c, errs.Validation("end_date", "", "is required"))
			return
		}
		end, err := dateQuery(c, "end_date", time.Time{})
		if err != nil {
			badRequest(c, err)
			return
		}
		ref, err := dateQuery(c, "ref", engine.Today())
		if err != nil {
			badRequest(c, err)
			return
		}
		status, err := engine.Classify(end, ref)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ClassifyResponse{
			Status:           status,
			DaysLeft:         lifecycle.DaysUntil(end, ref),
			ExpiringSoonDays: engine.ExpiringSoonDays(),
		}))
	}
}

type CatalogResponse struct {
	Devices    []types.Device `json:"devices"`
	PlanMonths []int          `json:"plan_months"`
}

// @Summary      Order Form Catalog
// @Description  Device names and plan durations offered when entering an order.
// @Tags         Lifecycle
// @Produce      json
// @Success      200  {object}  handlers.RespCatalog
// @Router       /api/v1/catalog [get]
func ApiCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(&CatalogResponse{Devices: types.KnownDevices, PlanMonths: types.PlanMonthsOptions}))
}

func RegisterReportRoutes(r gin.IRouter, stats *statistics.Service, exp *export.Service, sw *sweep.Service, engine *lifecycle.Engine) {
	r.GET("/stats/dashboard", ApiDashboard(stats, engine))
	r.GET("/export/subscriptions.csv", ApiExportSubscriptions(exp, engine))
	r.POST("/sweep/run", ApiRunSweep(sw, engine))
	r.GET("/lifecycle/classify", ApiClassify(engine))
	r.GET("/catalog", ApiCatalog)
}
