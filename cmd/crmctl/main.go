// Command crmctl runs the CRM batch jobs: the daily expiration sweep, meant
// for cron, and spreadsheet imports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/internal/app"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "IPTV CRM batch jobs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSweepCmd(), newImportCmd())
	return root
}

// runApp starts an fx app built from opts, calls fn and stops the app.
func runApp(ctx context.Context, fn func(ctx context.Context) error, opts ...fx.Option) error {
	a := fx.New(append(opts, fx.NopLogger)...)
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return err
	}
	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func main() {
	// Ctrl-C cancels the running job; imports still print their partial result.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
