package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/iptv-crm/internal/app"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
)

type importFlags struct {
	dryRun             bool
	mapping            map[string]string
	allowMissingClient bool
	placeholder        string
	concurrency        int
}

func newImportCmd() *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import clients and subscriptions from a CSV export",
		Long: `Reads a ';' or ',' separated CSV with a header row, infers which column
feeds which field and reconciles every row into clients, subscriptions and
lines. Rows that fail are listed and do not stop the import.

Override the inferred mapping with --mapping target=header, e.g.
--mapping client="Nome Cliente" --mapping end=Scadenza. An empty header
unmaps the target. --dry-run reconciles into an in-memory store and leaves
the database untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.dryRun, "dry-run", false, "reconcile into memory only")
	fl.StringToStringVar(&f.mapping, "mapping", nil, "target=header overrides (targets: client, contact, start, end, plan, price, device, mac, m3u, lines)")
	fl.BoolVar(&f.allowMissingClient, "allow-missing-client", false, "use the placeholder client when no column is mapped to client")
	fl.StringVar(&f.placeholder, "placeholder", "", "placeholder client name (default from config)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "rows reconciled at once (default from config)")
	return cmd
}

func runImport(cmd *cobra.Command, path string, f importFlags) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	table, err := importer.ParseCSV(file)
	if err != nil {
		return err
	}

	override := importer.Mapping{}
	for k, v := range f.mapping {
		override[importer.Target(k)] = v
	}
	mapping := importer.InferMapping(table.Headers).Merge(override)

	storage := app.Storage
	if f.dryRun {
		storage = fx.Provide(store.NewMemoryStores)
	}

	out, progress := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var svc *importer.Service
	return runApp(cmd.Context(), func(ctx context.Context) error {
		res, err := svc.Import(ctx, table, mapping, importer.Options{
			AllowMissingClient: f.allowMissingClient,
			PlaceholderClient:  f.placeholder,
			Concurrency:        f.concurrency,
			Progress: func(p importer.Progress) {
				fmt.Fprintf(progress, "row %d/%d\n", p.Done, p.Total)
			},
		})
		if err != nil && (res == nil || !errors.Is(err, ctx.Err())) {
			return err
		}
		if res.Empty {
			fmt.Fprintln(out, "nothing to import")
			return nil
		}
		for _, rf := range res.Failed {
			fmt.Fprintf(out, "row %d: %s\n", rf.RowIndex, rf.Reason)
		}
		prefix := ""
		if f.dryRun {
			prefix = "dry run: "
		}
		if err != nil {
			// interrupted: report what was reconciled before returning
			fmt.Fprintf(out, "%sinterrupted after %d of %d rows: imported %d, failed %d\n",
				prefix, res.Imported+len(res.Failed), table.Len(), res.Imported, len(res.Failed))
			return err
		}
		fmt.Fprintf(out, "%simported %d, failed %d\n", prefix, res.Imported, len(res.Failed))
		return nil
	}, app.Base, storage, app.Services, fx.Populate(&svc))
}
