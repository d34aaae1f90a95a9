package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// SubscriptionView is a subscription with its client, lines and the status
// derived for today.
type SubscriptionView struct {
	*models.Subscription
	Client   *models.Client           `json:"client,omitempty"`
	Lines    []*models.Line           `json:"lines"`
	Status   types.SubscriptionStatus `json:"status,omitempty"`
	DaysLeft *int                     `json:"days_left,omitempty"`
}

// LineNames returns the line names in insertion order.
func (v *SubscriptionView) LineNames() []string {
	return lo.Map(v.Lines, func(l *models.Line, _ int) string { return l.Name })
}

type SubscriptionInput struct {
	ClientID    string          `json:"client_id" validate:"required,uuid"`
	PlanMonths  int             `json:"plan_months" validate:"required,min=1,max=120"`
	Device      string          `json:"device" validate:"max=64"`
	MAC         string          `json:"mac" validate:"max=64"`
	Username    string          `json:"username" validate:"max=128"`
	Password    string          `json:"password" validate:"max=128"`
	M3UURL      string          `json:"m3u_url" validate:"max=2048"`
	PackageName string          `json:"package_name" validate:"max=128"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	// StartDate defaults to today. EndDate is derived from the plan when empty.
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Active    *bool    `json:"active"`
	IsTrial   bool     `json:"is_trial"`
	Notes     string   `json:"notes"`
	Lines     []string `json:"lines"`
}

type SubscriptionPatch struct {
	PlanMonths  *int             `json:"plan_months" validate:"omitempty,min=1,max=120"`
	Device      *string          `json:"device" validate:"omitempty,max=64"`
	MAC         *string          `json:"mac" validate:"omitempty,max=64"`
	Username    *string          `json:"username" validate:"omitempty,max=128"`
	Password    *string          `json:"password" validate:"omitempty,max=128"`
	M3UURL      *string          `json:"m3u_url" validate:"omitempty,max=2048"`
	PackageName *string          `json:"package_name" validate:"omitempty,max=128"`
	Price       *decimal.Decimal `json:"price"`
	StartDate   *string          `json:"start_date"`
	EndDate     *string          `json:"end_date"`
	Active      *bool            `json:"active"`
	IsTrial     *bool            `json:"is_trial"`
	Notes       *string          `json:"notes"`
	// Lines, when set, replaces every line of the subscription.
	Lines *[]string `json:"lines"`
}

type SubscriptionFilter struct {
	ClientID string                   `form:"client_id" validate:"omitempty,uuid"`
	Status   types.SubscriptionStatus `form:"status" validate:"omitempty,oneof=active expiring_soon expired"`
	Active   *bool                    `form:"active"`
	Page
}

type RenewInput struct {
	Months int              `json:"months" validate:"required,min=1,max=120"`
	Price  *decimal.Decimal `json:"price"`
}

func parseOptionalDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := lifecycle.ParseDate(raw)
	if err != nil {
		return nil, errs.Validation(field, raw, "unrecognized date format")
	}
	return &d, nil
}

func (s *Service) CreateSubscription(ctx context.Context, in SubscriptionInput) (*SubscriptionView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.stores.Clients.Get(ctx, in.ClientID); err != nil {
		return nil, err
	}
	start, err := parseOptionalDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	if start == nil {
		today := s.engine.Today()
		start = &today
	}
	end, err := parseOptionalDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if end == nil {
		d, err := lifecycle.ComputeEndDate(*start, in.PlanMonths)
		if err != nil {
			return nil, err
		}
		end = &d
	}
	if end.Before(*start) {
		return nil, errs.Validation("end_date", end.Format(time.DateOnly), "before start_date")
	}

	sub, err := s.stores.Subscriptions.Insert(ctx, &models.Subscription{
		ClientID:    in.ClientID,
		PlanMonths:  in.PlanMonths,
		Device:      strings.TrimSpace(in.Device),
		MAC:         strings.TrimSpace(in.MAC),
		Username:    in.Username,
		Password:    in.Password,
		M3UURL:      strings.TrimSpace(in.M3UURL),
		PackageName: in.PackageName,
		Price:       in.Price,
		StartDate:   start,
		EndDate:     end,
		Active:      lo.FromPtrOr(in.Active, true),
		IsTrial:     in.IsTrial,
		Notes:       in.Notes,
	})
	if err != nil {
		return nil, err
	}
	if err := s.replaceLines(ctx, sub.ID, in.Lines); err != nil {
		return nil, err
	}
	return s.GetSubscription(ctx, sub.ID)
}

func (s *Service) GetSubscription(ctx context.Context, id string) (*SubscriptionView, error) {
	sub, err := s.stores.Subscriptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.expand(ctx, []*models.Subscription{sub})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// statusFilters turns a derived status into an end_date range for today.
func (s *Service) statusFilters(status types.SubscriptionStatus) []*types.CommonFilter {
	today := s.engine.Today()
	horizon := today.AddDate(0, 0, s.engine.ExpiringSoonDays())
	switch status {
	case types.SubscriptionStatusExpired:
		return []*types.CommonFilter{types.Lt("end_date", today)}
	case types.SubscriptionStatusExpiringSoon:
		return []*types.CommonFilter{types.Between("end_date", today, horizon)}
	case types.SubscriptionStatusActive:
		return []*types.CommonFilter{types.Gt("end_date", horizon)}
	}
	return nil
}

// ListSubscriptions returns a page ordered by end date, latest first.
func (s *Service) ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]*SubscriptionView, int64, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, 0, err
	}
	filters := s.statusFilters(f.Status)
	if f.ClientID != "" {
		filters = append(filters, types.Eq("client_id", f.ClientID))
	}
	if f.Active != nil {
		filters = append(filters, types.Eq("active", *f.Active))
	}
	total, err := s.stores.Subscriptions.Count(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}
	subs, err := s.stores.Subscriptions.Find(ctx, f.apply(store.Where(filters...).Sort("end_date", types.SortDesc)))
	if err != nil {
		return nil, 0, err
	}
	views, err := s.expand(ctx, subs)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// AllSubscriptions streams every subscription, expanded, ordered by end date
// latest first. Used by export.
func (s *Service) AllSubscriptions(ctx context.Context) ([]*SubscriptionView, error) {
	subs, err := s.stores.Subscriptions.Find(ctx, store.Where().Sort("end_date", types.SortDesc))
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, subs)
}

func (s *Service) UpdateSubscription(ctx context.Context, id string, p SubscriptionPatch) (*SubscriptionView, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}
	current, err := s.stores.Subscriptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	setString := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	setString("device", p.Device)
	setString("mac", p.MAC)
	setString("username", p.Username)
	setString("m3u_url", p.M3UURL)
	setString("package_name", p.PackageName)
	if p.Password != nil {
		fields["password"] = *p.Password
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.Active != nil {
		fields["active"] = *p.Active
	}
	if p.IsTrial != nil {
		fields["is_trial"] = *p.IsTrial
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return nil, errs.Validation("price", p.Price.String(), "must be at least 0")
		}
		fields["price"] = *p.Price
	}

	plan := current.PlanMonths
	if p.PlanMonths != nil {
		plan = *p.PlanMonths
		fields["plan_months"] = plan
	}
	start := current.StartDate
	if p.StartDate != nil {
		if start, err = parseOptionalDate("start_date", *p.StartDate); err != nil {
			return nil, err
		}
		fields["start_date"] = start
	}
	end := current.EndDate
	switch {
	case p.EndDate != nil:
		if end, err = parseOptionalDate("end_date", *p.EndDate); err != nil {
			return nil, err
		}
		fields["end_date"] = end
	case (p.PlanMonths != nil || p.StartDate != nil) && start != nil:
		d, err := lifecycle.ComputeEndDate(*start, plan)
		if err != nil {
			return nil, err
		}
		end = &d
		fields["end_date"] = end
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, errs.Validation("end_date", end.Format(time.DateOnly), "before start_date")
	}

	if len(fields) > 0 {
		if _, err := s.stores.Subscriptions.Update(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	if p.Lines != nil {
		if _, err := s.stores.Lines.DeleteWhere(ctx, types.Eq("subscription_id", id)); err != nil {
			return nil, err
		}
		if err := s.replaceLines(ctx, id, *p.Lines); err != nil {
			return nil, err
		}
	}
	return s.GetSubscription(ctx, id)
}

// DeleteSubscription removes a subscription and its lines.
func (s *Service) DeleteSubscription(ctx context.Context, id string) error {
	if _, err := s.stores.Subscriptions.Get(ctx, id); err != nil {
		return err
	}
	if _, err := s.stores.Lines.DeleteWhere(ctx, types.Eq("subscription_id", id)); err != nil {
		return err
	}
	return s.stores.Subscriptions.Delete(ctx, id)
}

// RenewSubscription extends a subscription by in.Months starting the day
// after its current end, or today when it already lapsed.
func (s *Service) RenewSubscription(ctx context.Context, id string, in RenewInput) (*SubscriptionView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	sub, err := s.stores.Subscriptions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.renewalFields(sub, in.Months, in.Price)
	if err != nil {
		return nil, err
	}
	updated, err := s.stores.Subscriptions.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.appendEventLogged(ctx, sub.ClientID, types.TimelineEventSubscriptionRenewed,
		fmt.Sprintf("Abbonamento rinnovato di %d mesi, nuova scadenza %s", in.Months, lifecycle.FormatDate(updated.EndDate)),
		map[string]any{"subscription_id": id, "months": in.Months, "end_date": lifecycle.FormatDate(updated.EndDate)})
	return s.GetSubscription(ctx, id)
}

func (s *Service) renewalFields(sub *models.Subscription, months int, price *decimal.Decimal) (map[string]any, error) {
	start := lifecycle.RenewalStart(sub.EndDate, s.engine.Today())
	end, err := lifecycle.ComputeEndDate(start, months)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"plan_months": months,
		"start_date":  &start,
		"end_date":    &end,
		"active":      true,
	}
	if price != nil {
		if price.IsNegative() {
			return nil, errs.Validation("price", price.String(), "must be at least 0")
		}
		fields["price"] = *price
	}
	return fields, nil
}

func (s *Service) replaceLines(ctx context.Context, subscriptionID string, names []string) error {
	var lines []*models.Line
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			lines = append(lines, &models.Line{SubscriptionID: subscriptionID, Name: n})
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return s.stores.Lines.InsertBatch(ctx, lines)
}

// expand loads clients and lines for subs with one query each and derives
// the status of every subscription.
func (s *Service) expand(ctx context.Context, subs []*models.Subscription) ([]*SubscriptionView, error) {
	views := make([]*SubscriptionView, 0, len(subs))
	if len(subs) == 0 {
		return views, nil
	}
	clientIDs := lo.Uniq(lo.Map(subs, func(sub *models.Subscription, _ int) any { return sub.ClientID }))
	subIDs := lo.Map(subs, func(sub *models.Subscription, _ int) any { return sub.ID })

	clients, err := s.stores.Clients.Find(ctx, store.Where(types.In("id", clientIDs...)))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(clients, func(c *models.Client) string { return c.ID })

	lines, err := s.stores.Lines.Find(ctx, store.Where(types.In("subscription_id", subIDs...)).Sort("id", types.SortAsc))
	if err != nil {
		return nil, err
	}
	linesBySub := lo.GroupBy(lines, func(l *models.Line) string { return l.SubscriptionID })

	today := s.engine.Today()
	for _, sub := range subs {
		v := &SubscriptionView{
			Subscription: sub,
			Client:       byID[sub.ClientID],
			Lines:        linesBySub[sub.ID],
		}
		if v.Lines == nil {
			v.Lines = []*models.Line{}
		}
		if sub.EndDate != nil {
			if status, err := s.engine.Classify(*sub.EndDate, today); err == nil {
				v.Status = status
				days := lifecycle.DaysUntil(*sub.EndDate, today)
				v.DaysLeft = &days
			}
		}
		views = append(views, v)
	}
	return views, nil
}
