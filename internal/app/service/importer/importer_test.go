package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

func newTestService(t *testing.T) (*Service, *store.Stores) {
	t.Helper()
	stores := store.NewMemoryStores()
	cfg := &config.Config{Import: config.ImportConfig{PlaceholderClient: "Unknown", Concurrency: 1}}
	return NewService(zap.NewNop().Sugar(), cfg, stores), stores
}

var fullHeaders = []string{"cliente", "inizio", "fine", "plan_mesi", "prezzo", "dispositivo", "mac", "m3u", "linee"}

func TestImport_RowFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)

	table := &Table{Headers: []string{"cliente", "prezzo"}}
	for i := 1; i <= 10; i++ {
		price := "10"
		if i == 5 {
			price = "dieci euro"
		}
		table.Rows = append(table.Rows, []string{fmt.Sprintf("Client %d", i), price})
	}

	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	require.Equal(t, 9, res.Imported)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 5, res.Failed[0].RowIndex)
	require.Contains(t, res.Failed[0].Reason, "price")

	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 9, n)
	_, err = stores.Clients.First(ctx, store.Where(types.Eq("name", "Client 5")))
	require.Error(t, err)
}

func TestImport_FullRow(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)

	table := &Table{
		Headers: fullHeaders,
		Rows: [][]string{
			{"Mario Rossi", "15/01/2024", "", "3", "19,99", "Firestick", "00:1A:79:AA:BB:CC", "http://m3u.example/list", "Salotto, Cucina,, Camera"},
		},
	}
	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Empty(t, res.Failed)

	subs, err := stores.Subscriptions.Find(ctx, store.Where())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]
	require.True(t, sub.Price.Equal(decimal.RequireFromString("19.99")))
	require.Equal(t, 3, sub.PlanMonths)
	require.Equal(t, "Firestick", sub.Device)
	require.Equal(t, "00:1A:79:AA:BB:CC", sub.MAC)
	require.True(t, sub.Active)
	require.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *sub.StartDate)
	require.Equal(t, time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC), *sub.EndDate)

	lines, err := stores.Lines.Find(ctx, store.Where(types.Eq("subscription_id", sub.ID)).Sort("name", types.SortAsc))
	require.NoError(t, err)
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.Name)
	}
	require.Equal(t, []string{"Camera", "Cucina", "Salotto"}, names)
}

func TestImport_ExplicitEndDateWins(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	table := &Table{Headers: fullHeaders, Rows: [][]string{{"Anna", "2024-01-01", "2024-12-31", "1", "", "", "", "", ""}}}

	_, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	sub, err := stores.Subscriptions.First(ctx, store.Where())
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *sub.EndDate)
	require.True(t, sub.Price.IsZero())
}

func TestImport_EndBeforeStartFailsRow(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	table := &Table{Headers: fullHeaders, Rows: [][]string{
		{"Anna", "2024-06-01", "2024-01-01", "1", "", "", "", "", ""},
		{"Luca", "2024-06-01", "2024-06-30", "1", "", "", "", "", ""},
	}}

	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Len(t, res.Failed, 1)
	require.Equal(t, 1, res.Failed[0].RowIndex)
	require.Contains(t, res.Failed[0].Reason, "before start")

	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestImport_NoStartLeavesDatesUnset(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	table := &Table{Headers: fullHeaders, Rows: [][]string{{"Anna", "", "", "", "", "", "", "", ""}}}

	_, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	sub, err := stores.Subscriptions.First(ctx, store.Where())
	require.NoError(t, err)
	require.Nil(t, sub.StartDate)
	require.Nil(t, sub.EndDate)
	require.Equal(t, 1, sub.PlanMonths)
}

func TestImport_ReusesExistingClient(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	mario, err := stores.Clients.Insert(ctx, &models.Client{Name: "Mario Rossi", Status: types.ClientStatusActive})
	require.NoError(t, err)

	table := &Table{Headers: []string{"cliente"}, Rows: [][]string{{"Mario Rossi"}, {"Mario Rossi"}}}
	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)

	n, err := stores.Clients.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	subs, err := stores.Subscriptions.Find(ctx, store.Where(types.Eq("client_id", mario.ID)))
	require.NoError(t, err)
	require.Len(t, subs, 2)
}

func TestImport_EmptyTable(t *testing.T) {
	svc, _ := newTestService(t)
	res, err := svc.Import(context.Background(), &Table{Headers: []string{"cliente"}}, Mapping{}, Options{})
	require.NoError(t, err)
	require.True(t, res.Empty)
	require.Equal(t, 0, res.Imported)
	require.NotNil(t, res.Failed)
	require.Empty(t, res.Failed)
}

func TestImport_UnmappedClient(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	table := &Table{Headers: []string{"prezzo"}, Rows: [][]string{{"10"}, {"12"}}}

	_, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.ErrorIs(t, err, ErrClientUnmapped)
	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{AllowMissingClient: true})
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)
	clients, err := stores.Clients.Find(ctx, store.Where())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	require.Equal(t, "Unknown", clients[0].Name)
}

func TestImport_LineFailureRollsBackSubscription(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	stores.Lines.(*store.MemoryStore[models.Line]).FailOn = func(op string, _ *models.Line) error {
		if op == "insert_batch" {
			return errors.New("disk full")
		}
		return nil
	}

	table := &Table{Headers: []string{"cliente", "linee"}, Rows: [][]string{{"Mario", "Salotto"}, {"Anna", ""}}}
	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)
	require.Equal(t, []RowFailure{{RowIndex: 1, Reason: res.Failed[0].Reason}}, res.Failed)
	require.Contains(t, res.Failed[0].Reason, "disk full")

	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestImport_ProgressAndCancellation(t *testing.T) {
	svc, _ := newTestService(t)
	table := &Table{Headers: []string{"cliente"}}
	for i := range 5 {
		table.Rows = append(table.Rows, []string{fmt.Sprintf("C%d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []Progress
	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{
		Progress: func(p Progress) {
			seen = append(seen, p)
			if p.Done == 2 {
				cancel()
			}
		},
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, res.Imported)
	require.Len(t, seen, 2)
	require.Equal(t, Progress{Done: 1, Total: 5, RowIndex: 1}, seen[0])
	require.Equal(t, 2, seen[1].RowIndex)
}

func TestImport_BoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	table := &Table{Headers: []string{"cliente", "prezzo"}}
	for i := range 20 {
		price := "5"
		if i%7 == 3 {
			price = "x"
		}
		table.Rows = append(table.Rows, []string{"Shared Name", price})
	}

	last := 0
	res, err := svc.Import(ctx, table, InferMapping(table.Headers), Options{
		Concurrency: 4,
		Progress: func(p Progress) {
			require.Equal(t, last+1, p.Done)
			last = p.Done
		},
	})
	require.NoError(t, err)
	require.Equal(t, 20, last)
	require.Equal(t, 17, res.Imported)
	require.Equal(t, []int{4, 11, 18}, []int{res.Failed[0].RowIndex, res.Failed[1].RowIndex, res.Failed[2].RowIndex})

	n, err := stores.Clients.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestParsePrice(t *testing.T) {
	for in, want := range map[string]string{
		"":         "0",
		"19,99":    "19.99",
		"19.99":    "19.99",
		" € 25 ":   "25",
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"12 €":     "12",
	} {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		require.True(t, got.Equal(decimal.RequireFromString(want)), "%q -> %s", in, got)
	}
	for _, in := range []string{"abc", "-5", "1,2,3"} {
		_, err := ParsePrice(in)
		require.Error(t, err, in)
	}
}

func TestParsePlan(t *testing.T) {
	for in, want := range map[string]int{"": 1, "3": 3, "12 mesi": 12, " 6 months": 6} {
		got, err := ParsePlan(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"zero", "0", "-1"} {
		_, err := ParsePlan(in)
		require.Error(t, err, in)
	}
}

func TestSplitLines(t *testing.T) {
	require.Equal(t, []string{"Salotto", "Cucina", "Camera"}, SplitLines("Salotto, Cucina,, Camera"))
	require.Empty(t, SplitLines(" , "))
}
