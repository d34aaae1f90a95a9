// Package statistics computes the dashboard figures.
package statistics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// DefaultRevenueMonths is the length of the revenue series on the dashboard.
const DefaultRevenueMonths = 6

type MonthRevenue struct {
	Month   string          `json:"month"` // YYYY-MM
	Revenue decimal.Decimal `json:"revenue"`
	New     int64           `json:"new_subscriptions"`
}

type Dashboard struct {
	Reference             string          `json:"reference"`
	TotalClients          int64           `json:"total_clients"`
	ActiveSubscriptions   int64           `json:"active_subscriptions"`
	ExpiringSubscriptions int64           `json:"expiring_subscriptions"`
	ExpiredSubscriptions  int64           `json:"expired_subscriptions"`
	OpenTickets           int64           `json:"open_tickets"`
	UnpaidOrders          int64           `json:"unpaid_orders"`
	MonthlyRevenue        decimal.Decimal `json:"monthly_revenue"`
	RevenueByMonth        []MonthRevenue  `json:"revenue_by_month"`
}

type Service struct {
	stores *store.Stores
	engine *lifecycle.Engine
}

func NewService(stores *store.Stores, engine *lifecycle.Engine) *Service {
	return &Service{stores: stores, engine: engine}
}

type counter interface {
	Count(ctx context.Context, filters ...*types.CommonFilter) (int64, error)
}

func monthBounds(ref time.Time) (time.Time, time.Time) {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// Dashboard computes every figure as of ref. Queries run concurrently; the
// first failure cancels the rest.
func (s *Service) Dashboard(ctx context.Context, ref time.Time) (*Dashboard, error) {
	ref = lifecycle.DateOf(ref)
	horizon := ref.AddDate(0, 0, s.engine.ExpiringSoonDays())
	d := &Dashboard{Reference: ref.Format(time.DateOnly)}

	g, ctx := errgroup.WithContext(ctx)
	count := func(dst *int64, st counter, filters ...*types.CommonFilter) {
		g.Go(func() error {
			n, err := st.Count(ctx, filters...)
			*dst = n
			return err
		})
	}

	count(&d.TotalClients, s.stores.Clients)
	count(&d.ActiveSubscriptions, s.stores.Subscriptions, types.Gte("end_date", ref))
	count(&d.ExpiringSubscriptions, s.stores.Subscriptions, types.Between("end_date", ref, horizon))
	count(&d.ExpiredSubscriptions, s.stores.Subscriptions, types.Lt("end_date", ref))
	count(&d.OpenTickets, s.stores.Tickets, types.NotEq("status", types.TicketStatusResolved))
	count(&d.UnpaidOrders, s.stores.Orders, types.Eq("paid", false))
	g.Go(func() error {
		series, err := s.RevenueByMonth(ctx, ref, DefaultRevenueMonths)
		d.RevenueByMonth = series
		if len(series) > 0 {
			d.MonthlyRevenue = series[len(series)-1].Revenue
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// RevenueByMonth sums the price of subscriptions by the month they start in,
// for the months months ending with ref's month, oldest first.
func (s *Service) RevenueByMonth(ctx context.Context, ref time.Time, months int) ([]MonthRevenue, error) {
	if months <= 0 {
		months = DefaultRevenueMonths
	}
	out := make([]MonthRevenue, months)
	g, ctx := errgroup.WithContext(ctx)
	for i := range months {
		first, last := monthBounds(time.Date(ref.Year(), ref.Month()-time.Month(months-1-i), 1, 0, 0, 0, 0, time.UTC))
		out[i].Month = first.Format("2006-01")
		inMonth := types.Between("start_date", first, last)
		g.Go(func() error {
			sum, err := s.stores.Subscriptions.Sum(ctx, "price", inMonth)
			out[i].Revenue = sum
			return err
		})
		g.Go(func() error {
			n, err := s.stores.Subscriptions.Count(ctx, inMonth)
			out[i].New = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
