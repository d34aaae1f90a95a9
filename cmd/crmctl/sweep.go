package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/internal/app"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/app/service/sweep"
)

func newSweepCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Send expiration reminders for today",
		Long: `Reminds every active subscription ending exactly at one of the configured
offsets (sweep.offsets_days) from today and records an alert_sent event on
the client timeline. Failed reminders are logged and do not change the exit
status; only configuration, store or lock errors do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				svc    *sweep.Service
				engine *lifecycle.Engine
			)
			return runApp(cmd.Context(), func(ctx context.Context) error {
				ref := engine.Today()
				if date != "" {
					d, err := lifecycle.ParseDate(date)
					if err != nil {
						return fmt.Errorf("--date: %w", err)
					}
					ref = d
				}
				report, err := svc.Run(ctx, ref)
				if err != nil {
					return err
				}
				if report.Skipped {
					fmt.Fprintln(cmd.OutOrStdout(), "another sweep is running, skipped")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: matched %d, sent %d, failed %d\n",
					report.Reference.Format(time.DateOnly), report.Matched, report.Sent, len(report.Failed))
				return nil
			}, app.Core, fx.Populate(&svc, &engine))
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date instead of today (YYYY-MM-DD)")
	return cmd
}
