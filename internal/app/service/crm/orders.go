package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// OrderInput describes a sale. The client is either referenced by id or
// found/created by name; with SubscriptionID set the existing subscription is
// renewed, otherwise a new one is created.
type OrderInput struct {
	ClientID       string              `json:"client_id" validate:"omitempty,uuid"`
	ClientName     string              `json:"client_name" validate:"max=255"`
	Contact        string              `json:"contact" validate:"max=64"`
	Email          string              `json:"email" validate:"omitempty,email"`
	SubscriptionID string              `json:"subscription_id" validate:"omitempty,uuid"`
	PlanMonths     int                 `json:"plan_months" validate:"required,min=1,max=120"`
	StartDate      string              `json:"start_date"`
	Device         string              `json:"device" validate:"max=64"`
	MAC            string              `json:"mac" validate:"max=64"`
	Username       string              `json:"username" validate:"max=128"`
	Password       string              `json:"password" validate:"max=128"`
	M3UURL         string              `json:"m3u_url" validate:"max=2048"`
	Price          decimal.Decimal     `json:"price" validate:"gte=0"`
	PaymentMethod  types.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=cash bank_transfer paypal other"`
	Paid           bool                `json:"paid"`
	Notes          string              `json:"notes"`
	Lines          []string            `json:"lines"`
}

type OrderFilter struct {
	ClientID string `form:"client_id" validate:"omitempty,uuid"`
	Paid     *bool  `form:"paid"`
	Page
}

// OrderResult is the order together with what its flow touched.
type OrderResult struct {
	Order         *models.Order     `json:"order"`
	Client        *models.Client    `json:"client"`
	Subscription  *SubscriptionView `json:"subscription"`
	ClientCreated bool              `json:"client_created"`
}

func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*OrderResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	res := &OrderResult{}

	var err error
	switch {
	case in.ClientID != "":
		res.Client, err = s.stores.Clients.Get(ctx, in.ClientID)
	case strings.TrimSpace(in.ClientName) != "":
		res.Client, res.ClientCreated, err = s.FindOrCreateClient(ctx, in.ClientName, in.Contact, in.Email)
	default:
		err = errs.Validation("client_name", "", "client_id or client_name is required")
	}
	if err != nil {
		return nil, err
	}

	if in.SubscriptionID != "" {
		res.Subscription, err = s.renewForOrder(ctx, res.Client.ID, in)
	} else {
		res.Subscription, err = s.CreateSubscription(ctx, SubscriptionInput{
			ClientID:   res.Client.ID,
			PlanMonths: in.PlanMonths,
			Device:     in.Device,
			MAC:        in.MAC,
			Username:   in.Username,
			Password:   in.Password,
			M3UURL:     in.M3UURL,
			Price:      in.Price,
			StartDate:  in.StartDate,
			Lines:      in.Lines,
		})
	}
	if err != nil {
		return nil, err
	}

	sub := res.Subscription.Subscription
	order := &models.Order{
		ClientID:       res.Client.ID,
		SubscriptionID: sub.ID,
		PlanMonths:     in.PlanMonths,
		StartDate:      sub.StartDate,
		EndDate:        sub.EndDate,
		Price:          in.Price,
		PaymentMethod:  in.PaymentMethod,
		Paid:           in.Paid,
		Notes:          in.Notes,
	}
	if in.Paid {
		now := s.now().UTC()
		order.PaidAt = &now
	}
	if res.Order, err = s.stores.Orders.Insert(ctx, order); err != nil {
		return nil, err
	}
	s.appendEventLogged(ctx, res.Client.ID, types.TimelineEventOrderCreated,
		fmt.Sprintf("Nuovo ordine: %d mesi, € %s", in.PlanMonths, in.Price.StringFixed(2)),
		map[string]any{"order_id": res.Order.ID, "subscription_id": sub.ID})
	return res, nil
}

// renewForOrder extends an existing subscription of the client and applies
// the device and credential fields the order carries.
func (s *Service) renewForOrder(ctx context.Context, clientID string, in OrderInput) (*SubscriptionView, error) {
	sub, err := s.stores.Subscriptions.Get(ctx, in.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.ClientID != clientID {
		return nil, errs.Validation("subscription_id", in.SubscriptionID, "belongs to another client")
	}
	fields, err := s.renewalFields(sub, in.PlanMonths, &in.Price)
	if err != nil {
		return nil, err
	}
	start, err := parseOptionalDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	if start != nil {
		end, err := lifecycle.ComputeEndDate(*start, in.PlanMonths)
		if err != nil {
			return nil, err
		}
		fields["start_date"], fields["end_date"] = start, &end
	}
	for col, v := range map[string]string{"device": in.Device, "mac": in.MAC, "username": in.Username, "password": in.Password, "m3u_url": in.M3UURL} {
		if v = strings.TrimSpace(v); v != "" {
			fields[col] = v
		}
	}
	if _, err := s.stores.Subscriptions.Update(ctx, sub.ID, fields); err != nil {
		return nil, err
	}
	if in.Lines != nil {
		if _, err := s.stores.Lines.DeleteWhere(ctx, types.Eq("subscription_id", sub.ID)); err != nil {
			return nil, err
		}
		if err := s.replaceLines(ctx, sub.ID, in.Lines); err != nil {
			return nil, err
		}
	}
	return s.GetSubscription(ctx, sub.ID)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.stores.Orders.Get(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, int64, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, 0, err
	}
	var filters []*types.CommonFilter
	if f.ClientID != "" {
		filters = append(filters, types.Eq("client_id", f.ClientID))
	}
	if f.Paid != nil {
		filters = append(filters, types.Eq("paid", *f.Paid))
	}
	total, err := s.stores.Orders.Count(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.stores.Orders.Find(ctx, f.apply(store.Where(filters...).Sort("created_at", types.SortDesc)))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// MarkOrderPaid flags an order as paid now. method, when set, replaces the
// recorded payment method.
func (s *Service) MarkOrderPaid(ctx context.Context, id string, method types.PaymentMethod) (*models.Order, error) {
	if method != "" {
		if err := s.validate.Var("payment_method", string(method), "oneof=cash bank_transfer paypal other"); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	fields := map[string]any{"paid": true, "paid_at": &now}
	if method != "" {
		fields["payment_method"] = method
	}
	return s.stores.Orders.Update(ctx, id, fields)
}
