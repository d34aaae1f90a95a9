package crm

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

var today = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *store.Stores) {
	t.Helper()
	stores := store.NewMemoryStores()
	engine := lifecycle.NewEngine(7, time.UTC).WithClock(func() time.Time { return today.Add(10 * time.Hour) })
	svc := NewService(zap.NewNop().Sugar(), stores, engine)
	svc.now = func() time.Time { return today.Add(10 * time.Hour) }
	return svc, stores
}

func mustClient(t *testing.T, svc *Service, name string) *models.Client {
	t.Helper()
	c, err := svc.CreateClient(context.Background(), ClientInput{Name: name, Contact: "+39 000"})
	require.NoError(t, err)
	return c
}

func eventTypes(t *testing.T, svc *Service, clientID string) []types.TimelineEventType {
	t.Helper()
	events, err := svc.ListTimeline(context.Background(), clientID, Page{})
	require.NoError(t, err)
	return lo.Map(events, func(e *models.TimelineEvent, _ int) types.TimelineEventType { return e.EventType })
}

func TestCreateClient(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	c, err := svc.CreateClient(ctx, ClientInput{Name: "  Mario Rossi ", Email: "mario@example.com"})
	require.NoError(t, err)
	require.Equal(t, "Mario Rossi", c.Name)
	require.Equal(t, types.ClientStatusActive, c.Status)
	require.Equal(t, []types.TimelineEventType{types.TimelineEventClientCreated}, eventTypes(t, svc, c.ID))

	_, err = svc.CreateClient(ctx, ClientInput{Name: "   "})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.CreateClient(ctx, ClientInput{Name: "x", Email: "nope"})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestUpdateAndListClients(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")
	mustClient(t, svc, "Anna")

	inactive := types.ClientStatusInactive
	updated, err := svc.UpdateClient(ctx, c.ID, ClientPatch{Status: &inactive, Notes: lo.ToPtr("moved")})
	require.NoError(t, err)
	require.Equal(t, types.ClientStatusInactive, updated.Status)
	require.Equal(t, "moved", updated.Notes)

	list, total, err := svc.ListClients(ctx, ClientFilter{Status: types.ClientStatusActive})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Anna", list[0].Name)

	_, err = svc.UpdateClient(ctx, c.ID, ClientPatch{Email: lo.ToPtr("bad")})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.UpdateClient(ctx, "0190a6f3-8a3b-7c1e-9f00-000000000001", ClientPatch{Notes: lo.ToPtr("x")})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFindOrCreateClient(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	mario := mustClient(t, svc, "Mario Rossi")

	got, created, err := svc.FindOrCreateClient(ctx, "Mario Rossi", "", "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, mario.ID, got.ID)

	_, created, err = svc.FindOrCreateClient(ctx, "Luigi", "+39 1", "")
	require.NoError(t, err)
	require.True(t, created)

	n, err := stores.Clients.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")

	v, err := svc.CreateSubscription(ctx, SubscriptionInput{
		ClientID:   c.ID,
		PlanMonths: 1,
		StartDate:  "2024-01-31",
		Price:      decimal.RequireFromString("15"),
		MAC:        "00:1A:79",
		Lines:      []string{"Salotto", " ", "Camera"},
	})
	require.NoError(t, err)
	require.Equal(t, date(2024, 2, 28), *v.EndDate)
	require.True(t, v.Active)
	require.Equal(t, types.SubscriptionStatusExpired, v.Status)
	require.Equal(t, c.ID, v.Client.ID)
	require.Equal(t, []string{"Salotto", "Camera"}, v.LineNames())

	// start defaults to today
	v, err = svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 12})
	require.NoError(t, err)
	require.Equal(t, today, *v.StartDate)
	require.Equal(t, date(2025, 6, 2), *v.EndDate)
	require.Equal(t, types.SubscriptionStatusActive, v.Status)

	_, err = svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 0})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "ieri"})
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = svc.CreateSubscription(ctx, SubscriptionInput{ClientID: "0190a6f3-8a3b-7c1e-9f00-000000000001", PlanMonths: 1})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateSubscription(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	c := mustClient(t, svc, "Mario")
	v, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-06-01", Lines: []string{"A", "B"}})
	require.NoError(t, err)

	v, err = svc.UpdateSubscription(ctx, v.ID, SubscriptionPatch{PlanMonths: lo.ToPtr(3), Device: lo.ToPtr("Firestick")})
	require.NoError(t, err)
	require.Equal(t, date(2024, 8, 31), *v.EndDate)
	require.Equal(t, "Firestick", v.Device)
	require.Equal(t, []string{"A", "B"}, v.LineNames())

	v, err = svc.UpdateSubscription(ctx, v.ID, SubscriptionPatch{EndDate: lo.ToPtr("2024-12-31"), Lines: &[]string{"Cucina"}})
	require.NoError(t, err)
	require.Equal(t, date(2024, 12, 31), *v.EndDate)
	require.Equal(t, []string{"Cucina"}, v.LineNames())

	n, err := stores.Lines.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	v, err = svc.UpdateSubscription(ctx, v.ID, SubscriptionPatch{EndDate: lo.ToPtr("")})
	require.NoError(t, err)
	require.Nil(t, v.EndDate)
	require.Empty(t, v.Status)
}

func TestUpdateSubscription_EndBeforeStart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")
	v, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-06-01"})
	require.NoError(t, err)

	_, err = svc.UpdateSubscription(ctx, v.ID, SubscriptionPatch{EndDate: lo.ToPtr("2024-01-01")})
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Contains(t, err.Error(), "before start_date")

	// moving the start past a kept end date is rejected too
	_, err = svc.UpdateSubscription(ctx, v.ID, SubscriptionPatch{StartDate: lo.ToPtr("2025-01-01"), EndDate: lo.ToPtr("2024-12-31")})
	require.ErrorIs(t, err, errs.ErrValidation)

	got, err := svc.GetSubscription(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, date(2024, 6, 30), *got.EndDate)
}

func TestDeleteSubscriptionCascadesLines(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	c := mustClient(t, svc, "Mario")
	keep, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, Lines: []string{"X"}})
	require.NoError(t, err)
	gone, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, Lines: []string{"A", "B"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSubscription(ctx, gone.ID))
	_, err = svc.GetSubscription(ctx, gone.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	lines, err := stores.Lines.Find(ctx, store.Where())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, keep.ID, lines[0].SubscriptionID)

	require.ErrorIs(t, svc.DeleteSubscription(ctx, gone.ID), errs.ErrNotFound)
}

func TestRenewSubscription(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")

	running, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-05-11"})
	require.NoError(t, err)
	require.Equal(t, date(2024, 6, 10), *running.EndDate)

	v, err := svc.RenewSubscription(ctx, running.ID, RenewInput{Months: 3})
	require.NoError(t, err)
	require.Equal(t, date(2024, 6, 11), *v.StartDate)
	require.Equal(t, date(2024, 9, 10), *v.EndDate)
	require.Equal(t, 3, v.PlanMonths)

	lapsed, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-01-01", Active: lo.ToPtr(false)})
	require.NoError(t, err)
	price := decimal.RequireFromString("30")
	v, err = svc.RenewSubscription(ctx, lapsed.ID, RenewInput{Months: 1, Price: &price})
	require.NoError(t, err)
	require.Equal(t, today, *v.StartDate)
	require.Equal(t, date(2024, 7, 2), *v.EndDate)
	require.True(t, v.Active)
	require.True(t, v.Price.Equal(price))

	require.Contains(t, eventTypes(t, svc, c.ID), types.TimelineEventSubscriptionRenewed)

	_, err = svc.RenewSubscription(ctx, lapsed.ID, RenewInput{Months: 0})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestListSubscriptionsByStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")
	for _, end := range []string{"2024-06-02", "2024-06-03", "2024-06-10", "2024-06-11", "2025-01-01"} {
		_, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-01-01", EndDate: end})
		require.NoError(t, err)
	}

	count := func(status types.SubscriptionStatus) int64 {
		views, total, err := svc.ListSubscriptions(ctx, SubscriptionFilter{Status: status})
		require.NoError(t, err)
		for _, v := range views {
			require.Equal(t, status, v.Status)
		}
		return total
	}
	require.EqualValues(t, 1, count(types.SubscriptionStatusExpired))
	require.EqualValues(t, 2, count(types.SubscriptionStatusExpiringSoon))
	require.EqualValues(t, 2, count(types.SubscriptionStatusActive))

	all, total, err := svc.ListSubscriptions(ctx, SubscriptionFilter{ClientID: c.ID, Page: Page{Limit: 2}})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, all, 2)
	require.Equal(t, date(2025, 1, 1), *all[0].EndDate)

	_, _, err = svc.ListSubscriptions(ctx, SubscriptionFilter{Status: "soon"})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestTickets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	c := mustClient(t, svc, "Mario")

	tk, err := svc.CreateTicket(ctx, TicketInput{ClientID: c.ID, Subject: "Buffering"})
	require.NoError(t, err)
	require.Equal(t, types.TicketStatusOpen, tk.Status)
	require.Equal(t, types.TicketPriorityMedium, tk.Priority)
	require.Contains(t, eventTypes(t, svc, c.ID), types.TimelineEventTicketOpened)

	resolved := types.TicketStatusResolved
	tk, err = svc.UpdateTicket(ctx, tk.ID, TicketPatch{Status: &resolved})
	require.NoError(t, err)
	require.NotNil(t, tk.ResolvedAt)

	reopened := types.TicketStatusOpen
	tk, err = svc.UpdateTicket(ctx, tk.ID, TicketPatch{Status: &reopened})
	require.NoError(t, err)
	require.Nil(t, tk.ResolvedAt)

	list, total, err := svc.ListTickets(ctx, TicketFilter{Status: types.TicketStatusOpen})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, tk.ID, list[0].ID)

	_, err = svc.CreateTicket(ctx, TicketInput{ClientID: c.ID, Subject: "x", Priority: "asap"})
	require.ErrorIs(t, err, errs.ErrValidation)

	require.NoError(t, svc.DeleteTicket(ctx, tk.ID))
	_, err = svc.GetTicket(ctx, tk.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateOrder_NewClientAndSubscription(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)

	res, err := svc.CreateOrder(ctx, OrderInput{
		ClientName:    "Giulia Verdi",
		Contact:       "+39 555",
		PlanMonths:    6,
		Device:        "Smart TV",
		Price:         decimal.RequireFromString("49.90"),
		PaymentMethod: types.PaymentMethodPaypal,
		Paid:          true,
		Lines:         []string{"Salotto"},
	})
	require.NoError(t, err)
	require.True(t, res.ClientCreated)
	require.Equal(t, "Giulia Verdi", res.Client.Name)
	require.Equal(t, today, *res.Subscription.StartDate)
	require.Equal(t, date(2024, 12, 2), *res.Subscription.EndDate)
	require.Equal(t, res.Subscription.ID, res.Order.SubscriptionID)
	require.Equal(t, *res.Subscription.EndDate, *res.Order.EndDate)
	require.NotNil(t, res.Order.PaidAt)
	require.Equal(t, []string{"Salotto"}, res.Subscription.LineNames())

	require.ElementsMatch(t, []types.TimelineEventType{
		types.TimelineEventClientCreated, types.TimelineEventOrderCreated,
	}, eventTypes(t, svc, res.Client.ID))

	again, err := svc.CreateOrder(ctx, OrderInput{ClientName: "Giulia Verdi", PlanMonths: 1})
	require.NoError(t, err)
	require.False(t, again.ClientCreated)
	require.Equal(t, res.Client.ID, again.Client.ID)

	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestCreateOrder_RenewsExistingSubscription(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	c := mustClient(t, svc, "Mario")
	sub, err := svc.CreateSubscription(ctx, SubscriptionInput{ClientID: c.ID, PlanMonths: 1, StartDate: "2024-05-11", MAC: "OLD", Lines: []string{"A"}})
	require.NoError(t, err)

	res, err := svc.CreateOrder(ctx, OrderInput{
		ClientID:       c.ID,
		SubscriptionID: sub.ID,
		PlanMonths:     12,
		MAC:            "NEW",
		Price:          decimal.RequireFromString("80"),
	})
	require.NoError(t, err)
	require.Equal(t, sub.ID, res.Subscription.ID)
	require.Equal(t, date(2024, 6, 11), *res.Subscription.StartDate)
	require.Equal(t, date(2025, 6, 10), *res.Subscription.EndDate)
	require.Equal(t, "NEW", res.Subscription.MAC)
	require.Equal(t, []string{"A"}, res.Subscription.LineNames())
	require.False(t, res.Order.Paid)

	n, err := stores.Subscriptions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	other := mustClient(t, svc, "Anna")
	_, err = svc.CreateOrder(ctx, OrderInput{ClientID: other.ID, SubscriptionID: sub.ID, PlanMonths: 1})
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = svc.CreateOrder(ctx, OrderInput{PlanMonths: 1})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestOrdersListAndPay(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	res, err := svc.CreateOrder(ctx, OrderInput{ClientName: "Mario", PlanMonths: 1})
	require.NoError(t, err)

	unpaid := false
	list, total, err := svc.ListOrders(ctx, OrderFilter{Paid: &unpaid})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, res.Order.ID, list[0].ID)

	o, err := svc.MarkOrderPaid(ctx, res.Order.ID, types.PaymentMethodCash)
	require.NoError(t, err)
	require.True(t, o.Paid)
	require.NotNil(t, o.PaidAt)
	require.Equal(t, types.PaymentMethodCash, o.PaymentMethod)

	_, err = svc.MarkOrderPaid(ctx, res.Order.ID, "bitcoin")
	require.ErrorIs(t, err, errs.ErrValidation)

	got, err := svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	require.True(t, got.Paid)
}

func TestGetAndDeleteClient(t *testing.T) {
	ctx := context.Background()
	svc, stores := newTestService(t)
	res, err := svc.CreateOrder(ctx, OrderInput{ClientName: "Mario", PlanMonths: 1, Lines: []string{"A"}})
	require.NoError(t, err)
	_, err = svc.CreateTicket(ctx, TicketInput{ClientID: res.Client.ID, Subject: "No signal"})
	require.NoError(t, err)
	other := mustClient(t, svc, "Anna")

	detail, err := svc.GetClient(ctx, res.Client.ID)
	require.NoError(t, err)
	require.Len(t, detail.Subscriptions, 1)
	require.EqualValues(t, 1, detail.OpenTickets)

	require.NoError(t, svc.DeleteClient(ctx, res.Client.ID))
	_, err = svc.GetClient(ctx, res.Client.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	for name, count := range map[string]func(context.Context, ...*types.CommonFilter) (int64, error){
		"subscriptions": stores.Subscriptions.Count,
		"lines":         stores.Lines.Count,
		"tickets":       stores.Tickets.Count,
		"orders":        stores.Orders.Count,
	} {
		n, err := count(ctx)
		require.NoError(t, err)
		require.Zero(t, n, name)
	}
	require.Equal(t, []types.TimelineEventType{types.TimelineEventClientCreated}, eventTypes(t, svc, other.ID))
}
