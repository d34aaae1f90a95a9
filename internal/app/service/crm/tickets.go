package crm

import (
	"context"
	"strings"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

type TicketInput struct {
	ClientID    string               `json:"client_id" validate:"required,uuid"`
	Subject     string               `json:"subject" validate:"required,max=255"`
	Description string               `json:"description"`
	Priority    types.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

type TicketPatch struct {
	Subject     *string               `json:"subject" validate:"omitempty,min=1,max=255"`
	Description *string               `json:"description"`
	Priority    *types.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      *types.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress resolved"`
}

type TicketFilter struct {
	ClientID string             `form:"client_id" validate:"omitempty,uuid"`
	Status   types.TicketStatus `form:"status" validate:"omitempty,oneof=open in_progress resolved"`
	Page
}

// CreateTicket opens a ticket and records it on the client timeline.
func (s *Service) CreateTicket(ctx context.Context, in TicketInput) (*models.Ticket, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.stores.Clients.Get(ctx, in.ClientID); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = types.TicketPriorityMedium
	}
	t, err := s.stores.Tickets.Insert(ctx, &models.Ticket{
		ClientID:    in.ClientID,
		Subject:     in.Subject,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      types.TicketStatusOpen,
	})
	if err != nil {
		return nil, err
	}
	s.appendEventLogged(ctx, t.ClientID, types.TimelineEventTicketOpened, "Ticket aperto: "+t.Subject,
		map[string]any{"ticket_id": t.ID, "priority": string(t.Priority)})
	return t, nil
}

func (s *Service) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	return s.stores.Tickets.Get(ctx, id)
}

func (s *Service) ListTickets(ctx context.Context, f TicketFilter) ([]*models.Ticket, int64, error) {
	if err := s.validate.Struct(f); err != nil {
		return nil, 0, err
	}
	var filters []*types.CommonFilter
	if f.ClientID != "" {
		filters = append(filters, types.Eq("client_id", f.ClientID))
	}
	if f.Status != "" {
		filters = append(filters, types.Eq("status", f.Status))
	}
	total, err := s.stores.Tickets.Count(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.stores.Tickets.Find(ctx, f.apply(store.Where(filters...).Sort("created_at", types.SortDesc)))
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *Service) UpdateTicket(ctx context.Context, id string, p TicketPatch) (*models.Ticket, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if p.Subject != nil {
		fields["subject"] = strings.TrimSpace(*p.Subject)
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Priority != nil {
		fields["priority"] = *p.Priority
	}
	if p.Status != nil {
		fields["status"] = *p.Status
		if *p.Status == types.TicketStatusResolved {
			now := s.now().UTC()
			fields["resolved_at"] = &now
		} else {
			fields["resolved_at"] = nil
		}
	}
	if len(fields) == 0 {
		return s.stores.Tickets.Get(ctx, id)
	}
	return s.stores.Tickets.Update(ctx, id, fields)
}

func (s *Service) DeleteTicket(ctx context.Context, id string) error {
	return s.stores.Tickets.Delete(ctx, id)
}
