package main

// @title           IPTV CRM API
// @version         1.0
// @description     Clients, subscriptions, orders, tickets, CSV import/export and expiration reminders for an IPTV reseller.

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"os"
	_ "time/tzdata"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app"
)

// fxLogger routes fx lifecycle events through the application logger.
func fxLogger(l *zap.SugaredLogger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l.Desugar().Named("fx")}
}

func main() {
	// Allow graceful stop with SIGINT/SIGTERM handled by fx
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	a := fx.New(app.Module, fx.WithLogger(fxLogger))
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// a configuration error can fail before the logger exists
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		exitCode = 1
		return
	}

	// Block until signal
	<-a.Done()

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		exitCode = 1
		return
	}
}
