// Package crm implements the day to day operations of the reseller: clients,
// subscriptions and their lines, tickets, orders and the client timeline.
package crm

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
	"github.com/fatflowers/iptv-crm/pkg/types"
	"github.com/fatflowers/iptv-crm/pkg/validate"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type Service struct {
	l        *zap.SugaredLogger
	stores   *store.Stores
	engine   *lifecycle.Engine
	validate *validate.Validator
	now      func() time.Time
}

func NewService(l *zap.SugaredLogger, stores *store.Stores, engine *lifecycle.Engine) *Service {
	return &Service{
		l:        l,
		stores:   stores,
		engine:   engine,
		validate: validate.New(),
		now:      time.Now,
	}
}

// Page is the offset/limit pair accepted by list operations.
type Page struct {
	Offset int `json:"offset" form:"offset" validate:"gte=0"`
	Limit  int `json:"limit" form:"limit" validate:"gte=0,lte=500"`
}

func (p Page) apply(q *store.Query) *store.Query {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	return q.Page(max(p.Offset, 0), min(limit, maxPageSize))
}

// AppendEvent records an entry on a client's timeline.
func (s *Service) AppendEvent(ctx context.Context, clientID string, eventType types.TimelineEventType, description string, metadata map[string]any) (*models.TimelineEvent, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return s.stores.Timeline.Insert(ctx, &models.TimelineEvent{
		ClientID:    clientID,
		EventType:   eventType,
		Description: description,
		Metadata:    metadata,
	})
}

// ListTimeline returns a client's events, newest first.
func (s *Service) ListTimeline(ctx context.Context, clientID string, page Page) ([]*models.TimelineEvent, error) {
	if _, err := s.stores.Clients.Get(ctx, clientID); err != nil {
		return nil, err
	}
	q := store.Where(types.Eq("client_id", clientID)).Sort("created_at", types.SortDesc)
	return s.stores.Timeline.Find(ctx, page.apply(q))
}

// appendEventLogged appends a side effect event; failing to record it does
// not undo the operation that caused it.
func (s *Service) appendEventLogged(ctx context.Context, clientID string, eventType types.TimelineEventType, description string, metadata map[string]any) {
	if _, err := s.AppendEvent(ctx, clientID, eventType, description, metadata); err != nil {
		logctx.FromCtx(ctx, s.l).Errorw("failed to append timeline event", "client_id", clientID, "event_type", eventType, "error", err)
	}
}

var Module = fx.Options(
	fx.Provide(NewService),
)
