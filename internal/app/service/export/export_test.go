package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/crm"
	"github.com/fatflowers/iptv-crm/internal/app/service/importer"
	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
)

func TestSubscriptions_RoundTripsThroughImporter(t *testing.T) {
	ctx := context.Background()
	engine := lifecycle.NewEngine(7, time.UTC).WithClock(func() time.Time {
		return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	})
	crmSvc := crm.NewService(zap.NewNop().Sugar(), store.NewMemoryStores(), engine)

	c, err := crmSvc.CreateClient(ctx, crm.ClientInput{Name: "Mario Rossi"})
	require.NoError(t, err)
	_, err = crmSvc.CreateSubscription(ctx, crm.SubscriptionInput{
		ClientID: c.ID, PlanMonths: 3, StartDate: "2024-03-01", Device: "Firestick",
		MAC: "00:1A:79", Price: decimal.RequireFromString("19.9"), Lines: []string{"Salotto", "Cucina"},
	})
	require.NoError(t, err)
	_, err = crmSvc.CreateSubscription(ctx, crm.SubscriptionInput{ClientID: c.ID, PlanMonths: 12, StartDate: "2024-06-01"})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := NewService(crmSvc).Subscriptions(ctx, &buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t,
		"cliente,plan_mesi,dispositivo,mac,m3u,inizio,fine,prezzo,linee,stato\n"+
			"Mario Rossi,12,,,,2024-06-01,2025-05-31,0.00,,active\n"+
			"Mario Rossi,3,Firestick,00:1A:79,,2024-03-01,2024-05-31,19.90,\"Salotto, Cucina\",expired\n",
		buf.String())

	// the export is importable as is
	table, err := importer.ParseCSV(&buf)
	require.NoError(t, err)
	target := store.NewMemoryStores()
	imp := importer.NewService(zap.NewNop().Sugar(), &config.Config{Import: config.ImportConfig{PlaceholderClient: "Unknown"}}, target)
	res, err := imp.Import(ctx, table, importer.InferMapping(table.Headers), importer.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)
	lines, err := target.Lines.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, lines)
}
