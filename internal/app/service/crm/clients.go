package crm

import (
	"context"
	"errors"
	"strings"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

type ClientInput struct {
	Name    string             `json:"name" validate:"required,max=255"`
	Contact string             `json:"contact" validate:"max=64"`
	Email   string             `json:"email" validate:"omitempty,email,max=255"`
	Notes   string             `json:"notes"`
	Status  types.ClientStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

type ClientPatch struct {
	Name    *string             `json:"name" validate:"omitempty,min=1,max=255"`
	Contact *string             `json:"contact" validate:"omitempty,max=64"`
	Email   *string             `json:"email" validate:"omitempty,max=255"`
	Notes   *string             `json:"notes"`
	Status  *types.ClientStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

type ClientFilter struct {
	Status types.ClientStatus `form:"status" validate:"omitempty,oneof=active inactive"`
	Name   string             `form:"name"`
	Page
}

// ClientDetail is a client with its subscriptions and open ticket count.
type ClientDetail struct {
	*models.Client
	Subscriptions []*SubscriptionView `json:"subscriptions"`
	OpenTickets   int64               `json:"open_tickets"`
}

func (s *Service) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = types.ClientStatusActive
	}
	c, err := s.stores.Clients.Insert(ctx, &models.Client{
		Name:    in.Name,
		Contact: strings.TrimSpace(in.Contact),
		Email:   strings.TrimSpace(in.Email),
		Notes:   in.Notes,
		Status:  in.Status,
	})
	if err != nil {
		return nil, err
	}
	s.appendEventLogged(ctx, c.ID, types.TimelineEventClientCreated, "Cliente creato", nil)
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (*ClientDetail, error) {
	c, err := s.stores.Clients.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	subs, err := s.stores.Subscriptions.Find(ctx, store.Where(types.Eq("client_id", id)).Sort("end_date", types.SortDesc))
	if err != nil {
		return nil, err
	}
	views, err := s.expand(ctx, subs)
	if err != nil {
		return nil, err
	}
	open, err := s.stores.Tickets.Count(ctx, types.Eq("client_id", id), types.NotEq("status", types.TicketStatusResolved))
	if err != nil {
		return nil, err
	}
	return &ClientDetail{Client: c, Subscriptions: views, OpenTickets: open}, nil
}

// ListClients returns a page of clients, newest first, and the total count.
func (s *Service) ListClients(ctx context.Context, f ClientFilter) ([]*models.Client, int64, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, 0, err
	}
	var filters []*types.CommonFilter
	if f.Status != "" {
		filters = append(filters, types.Eq("status", f.Status))
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		filters = append(filters, types.Eq("name", name))
	}
	total, err := s.stores.Clients.Count(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.stores.Clients.Find(ctx, f.apply(store.Where(filters...).Sort("created_at", types.SortDesc)))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, p ClientPatch) (*models.Client, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Contact != nil {
		fields["contact"] = strings.TrimSpace(*p.Contact)
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email != "" {
			if err := s.validate.Var("email", email, "email"); err != nil {
				return nil, err
			}
		}
		fields["email"] = email
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.Status != nil {
		fields["status"] = *p.Status
	}
	if len(fields) == 0 {
		return s.stores.Clients.Get(ctx, id)
	}
	return s.stores.Clients.Update(ctx, id, fields)
}

// DeleteClient removes a client together with everything that references it.
func (s *Service) DeleteClient(ctx context.Context, id string) error {
	if _, err := s.stores.Clients.Get(ctx, id); err != nil {
		return err
	}
	subs, err := s.stores.Subscriptions.Find(ctx, store.Where(types.Eq("client_id", id)))
	if err != nil {
		return err
	}
	if len(subs) > 0 {
		ids := make([]any, 0, len(subs))
		for _, sub := range subs {
			ids = append(ids, sub.ID)
		}
		if _, err := s.stores.Lines.DeleteWhere(ctx, types.In("subscription_id", ids...)); err != nil {
			return err
		}
	}
	byClient := types.Eq("client_id", id)
	if _, err := s.stores.Orders.DeleteWhere(ctx, byClient); err != nil {
		return err
	}
	if _, err := s.stores.Subscriptions.DeleteWhere(ctx, byClient); err != nil {
		return err
	}
	if _, err := s.stores.Tickets.DeleteWhere(ctx, byClient); err != nil {
		return err
	}
	if _, err := s.stores.Timeline.DeleteWhere(ctx, byClient); err != nil {
		return err
	}
	return s.stores.Clients.Delete(ctx, id)
}

// FindOrCreateClient reuses the oldest client with exactly this name. The
// lookup and the insert are not atomic.
func (s *Service) FindOrCreateClient(ctx context.Context, name, contact, email string) (*models.Client, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, errs.Validation("client_name", "", "is required")
	}
	c, err := s.stores.Clients.First(ctx, store.Where(types.Eq("name", name)).Sort("created_at", types.SortAsc))
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, false, err
	}
	c, err = s.CreateClient(ctx, ClientInput{Name: name, Contact: contact, Email: email})
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}
