package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/docs"
	"github.com/fatflowers/iptv-crm/internal/app/api/handlers"
	mw "github.com/fatflowers/iptv-crm/internal/app/api/middleware"
	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/export"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/app/service/statistics"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
	cfgpkg "github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/metrics"
)

// Services groups what the API routes call into.
type Services struct {
	fx.In

	CRM        *crm.Service
	Importer   *importer.Service
	Export     *export.Service
	Statistics *statistics.Service
	Sweep      *sweep.Service
	Engine     *lifecycle.Engine
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newHTTPMetrics() (*metrics.HTTP, error) {
	return metrics.NewHTTP(prometheus.DefaultRegisterer)
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, m *metrics.HTTP, svc Services) {
	r.Use(m.HandlerFunc())

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	handlers.RegisterClientRoutes(apiV1.Group("/clients"), svc.CRM)
	handlers.RegisterSubscriptionRoutes(apiV1.Group("/subscriptions"), svc.CRM)
	handlers.RegisterTicketRoutes(apiV1.Group("/tickets"), svc.CRM)
	handlers.RegisterOrderRoutes(apiV1.Group("/orders"), svc.CRM)
	handlers.RegisterImportRoutes(apiV1.Group("/import"), svc.Importer, cfg)
	handlers.RegisterReportRoutes(apiV1, svc.Statistics, svc.Export, svc.Sweep, svc.Engine)
}

// serve runs srv for the lifetime of the app.
func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting "+name+" server", "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping " + name + " server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serve(lc, log, "HTTP", &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

// runMetricsServer exposes /metrics on its own listener when metrics_addr is set.
func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	h := metrics.Router(prometheus.DefaultGatherer)
	serve(lc, log, "metrics", &http.Server{Addr: cfg.MetricsAddr, Handler: h, ReadHeaderTimeout: 5 * time.Second})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newHTTPMetrics),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
	fx.Invoke(runMetricsServer),
)
