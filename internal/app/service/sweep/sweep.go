// Package sweep sends expiration reminders and records them on the client
// timeline.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/lock"
	"github.com/fatflowers/iptv-crm/internal/platform/notify"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
	"github.com/fatflowers/iptv-crm/pkg/metrics"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

const lockKey = "crm:sweep"

// MessageData is what the reminder template can reference.
type MessageData struct {
	Name       string
	Credential string
	EndDate    string
	DaysLeft   int
}

// Failure is one reminder that was not sent. A failed window query leaves
// both ids empty.
type Failure struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	Reason         string `json:"reason"`
}

type Report struct {
	Reference time.Time `json:"reference"`
	Matched   int       `json:"matched"`
	Sent      int       `json:"sent"`
	Failed    []Failure `json:"failed"`
	// Skipped is set when another sweep held the lock.
	Skipped bool `json:"skipped"`
}

type Service struct {
	l          *zap.SugaredLogger
	stores     *store.Stores
	engine     *lifecycle.Engine
	dispatcher notify.Dispatcher
	locker     lock.Locker
	offsets    []int
	lockTTL    time.Duration
	tmpl       *template.Template
}

func NewService(
	l *zap.SugaredLogger,
	cfg *config.Config,
	stores *store.Stores,
	engine *lifecycle.Engine,
	dispatcher notify.Dispatcher,
	locker lock.Locker,
) (*Service, error) {
	tmpl, err := template.New("reminder").Option("missingkey=error").Parse(cfg.Sweep.Template)
	if err != nil {
		return nil, errs.Configuration("sweep.template", err.Error())
	}
	ttl := time.Duration(cfg.Sweep.LockTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		l:          l,
		stores:     stores,
		engine:     engine,
		dispatcher: dispatcher,
		locker:     locker,
		offsets:    cfg.Sweep.OffsetsDays,
		lockTTL:    ttl,
		tmpl:       tmpl,
	}, nil
}

// WindowLabel names a reminder window the way the timeline shows it.
func WindowLabel(days int) string {
	if days == 2 {
		return "-48h"
	}
	if days == 1 {
		return "-24h"
	}
	return fmt.Sprintf("-%d giorni", days)
}

// RunToday sweeps with the engine's current date.
func (s *Service) RunToday(ctx context.Context) (*Report, error) {
	return s.Run(ctx, s.engine.Today())
}

// Run reminds every active subscription ending exactly offset days after
// ref, for each configured offset. Per-subscription problems land in
// Report.Failed; only lock, query and ctx errors are returned.
func (s *Service) Run(ctx context.Context, ref time.Time) (*Report, error) {
	l := logctx.FromCtx(ctx, s.l)
	ref = lifecycle.DateOf(ref)
	report := &Report{Reference: ref, Failed: []Failure{}}

	release, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if errors.Is(err, lock.ErrLocked) {
		l.Warnw("sweep already running elsewhere, skipping", "reference", ref.Format(time.DateOnly))
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			l.Errorw("failed to release sweep lock", "error", err)
		}
	}()

	start := time.Now()
	defer metrics.ObserveProcess("sweep", "run", start)

	for _, days := range s.offsets {
		target := ref.AddDate(0, 0, days)
		subs, err := s.stores.Subscriptions.Find(ctx, store.Where(
			types.Eq("end_date", target),
			types.Eq("active", true),
		).Sort("created_at", types.SortAsc))
		window := fmt.Sprintf("%dd", days)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			l.Errorw("sweep window query failed", "window", window, "error", err)
			report.Failed = append(report.Failed, Failure{Reason: fmt.Sprintf("window %s: %v", window, err)})
			continue
		}
		report.Matched += len(subs)

		for _, sub := range subs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := s.remind(ctx, sub, days); err != nil {
				l.Warnw("reminder skipped", "subscription_id", sub.ID, "client_id", sub.ClientID, "error", err)
				report.Failed = append(report.Failed, Failure{SubscriptionID: sub.ID, ClientID: sub.ClientID, Reason: err.Error()})
				metrics.SweepAlerts.WithLabelValues(window, "failed").Inc()
				continue
			}
			report.Sent++
			metrics.SweepAlerts.WithLabelValues(window, "sent").Inc()
		}
	}

	l.Infow("sweep finished",
		"reference", ref.Format(time.DateOnly),
		"matched", report.Matched,
		"sent", report.Sent,
		"failed", len(report.Failed),
	)
	return report, nil
}

func (s *Service) remind(ctx context.Context, sub *models.Subscription, days int) error {
	client, err := s.stores.Clients.Get(ctx, sub.ClientID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(client.Name) == "" {
		return errs.Validation("client.name", "", "missing")
	}

	msg, err := s.Render(MessageData{
		Name:       client.Name,
		Credential: sub.Credential(),
		EndDate:    sub.EndDate.Format("02/01/2006"),
		DaysLeft:   days,
	})
	if err != nil {
		return err
	}
	if !s.dispatcher.Send(ctx, s.dispatcher.Recipient(client), msg) {
		return fmt.Errorf("%s dispatch failed", s.dispatcher.Channel())
	}

	_, err = s.stores.Timeline.Insert(ctx, &models.TimelineEvent{
		ClientID:    client.ID,
		EventType:   types.TimelineEventAlertSent,
		Description: "Inviato avviso automatico scadenza " + WindowLabel(days),
		Metadata: map[string]any{
			"subscription_id": sub.ID,
			"window_days":     days,
			"end_date":        sub.EndDate.Format(time.DateOnly),
			"channel":         s.dispatcher.Channel(),
		},
	})
	return err
}

// Render fills the reminder template.
func (s *Service) Render(data MessageData) (string, error) {
	var b strings.Builder
	if err := s.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render reminder: %w", err)
	}
	return b.String(), nil
}
