// Package importer reconciles spreadsheet rows into clients, subscriptions
// and lines.
package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/iptv-crm/internal/app/service/lifecycle"
	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/internal/platform/store"
	"github.com/fatflowers/iptv-crm/pkg/config"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/logctx"
	"github.com/fatflowers/iptv-crm/pkg/metrics"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// ErrClientUnmapped is returned when no column feeds the client name and the
// caller did not confirm that every row may use the placeholder client.
var ErrClientUnmapped = fmt.Errorf("%w: client column is not mapped", errs.ErrValidation)

type Progress struct {
	Done     int   `json:"done"`
	Total    int   `json:"total"`
	RowIndex int   `json:"row_index"`
	Err      error `json:"-"`
}

type Options struct {
	// AllowMissingClient confirms that an unmapped client column is intended.
	AllowMissingClient bool
	// PlaceholderClient overrides the configured placeholder name.
	PlaceholderClient string
	// Concurrency bounds the rows reconciled at once; <= 0 uses the config.
	Concurrency int
	// Progress is called once per finished row. Calls are serialized.
	Progress func(Progress)
}

type RowFailure struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

type Result struct {
	Imported int          `json:"imported"`
	Failed   []RowFailure `json:"failed"`
	// Empty is set when the table had no data rows.
	Empty bool `json:"empty"`
}

type Service struct {
	l      *zap.SugaredLogger
	cfg    config.ImportConfig
	stores *store.Stores
}

func NewService(l *zap.SugaredLogger, cfg *config.Config, stores *store.Stores) *Service {
	return &Service{l: l, cfg: cfg.Import, stores: stores}
}

// Import reconciles every data row of table. Row failures are collected in
// the result and never stop the run; the returned error is reserved for
// refusing the whole import or for ctx cancellation, in which case the
// partial result is returned alongside ctx.Err().
func (s *Service) Import(ctx context.Context, table *Table, mapping Mapping, opts Options) (*Result, error) {
	res := &Result{Failed: []RowFailure{}}
	if table.Len() == 0 {
		res.Empty = true
		return res, nil
	}
	if err := mapping.Validate(table.Headers); err != nil {
		return nil, err
	}
	if _, ok := mapping[TargetClient]; !ok && !opts.AllowMissingClient {
		return nil, ErrClientUnmapped
	}

	placeholder := opts.PlaceholderClient
	if placeholder == "" {
		placeholder = s.cfg.PlaceholderClient
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = max(s.cfg.Concurrency, 1)
	}

	l := logctx.FromCtx(ctx, s.l)
	start := time.Now()
	defer metrics.ObserveProcess("import", "rows", start)

	run := &importRun{
		svc:         s,
		cols:        mapping.columns(table.Headers),
		placeholder: placeholder,
		names:       map[string]*sync.Mutex{},
	}
	total := table.Len()

	var mu sync.Mutex
	done := 0
	finish := func(rowIndex int, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			res.Failed = append(res.Failed, RowFailure{RowIndex: rowIndex, Reason: err.Error()})
			metrics.ImportRows.WithLabelValues("failed").Inc()
			l.Warnw("import row failed", "row", rowIndex, "error", err)
		} else {
			res.Imported++
			metrics.ImportRows.WithLabelValues("imported").Inc()
		}
		if opts.Progress != nil {
			opts.Progress(Progress{Done: done, Total: total, RowIndex: rowIndex, Err: err})
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, row := range table.Rows {
		if ctx.Err() != nil {
			break
		}
		rowIndex := i + 1
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			finish(rowIndex, run.reconcile(ctx, row))
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(res.Failed, func(a, b RowFailure) int { return a.RowIndex - b.RowIndex })
	l.Infow("import finished", "total", total, "imported", res.Imported, "failed", len(res.Failed))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

type importRun struct {
	svc         *Service
	cols        map[Target]int
	placeholder string

	mu    sync.Mutex
	names map[string]*sync.Mutex
}

// lockName serializes find-or-create per client name within one run, so
// concurrent workers do not create the same client twice.
func (r *importRun) lockName(name string) func() {
	r.mu.Lock()
	m, ok := r.names[name]
	if !ok {
		m = &sync.Mutex{}
		r.names[name] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock
}

type rowValues struct {
	client    string
	contact   string
	start     *time.Time
	end       *time.Time
	plan      int
	price     decimal.Decimal
	device    string
	mac       string
	m3u       string
	lineNames []string
}

func (r *importRun) value(row []string, t Target) string {
	return cell(row, r.cols[t])
}

func (r *importRun) extract(row []string) (*rowValues, error) {
	v := &rowValues{
		client:    r.value(row, TargetClient),
		contact:   r.value(row, TargetContact),
		device:    r.value(row, TargetDevice),
		mac:       r.value(row, TargetMAC),
		m3u:       r.value(row, TargetM3U),
		lineNames: SplitLines(r.value(row, TargetLines)),
	}
	if v.client == "" {
		v.client = r.placeholder
	}

	var err error
	if v.plan, err = ParsePlan(r.value(row, TargetPlan)); err != nil {
		return nil, err
	}
	if v.price, err = ParsePrice(r.value(row, TargetPrice)); err != nil {
		return nil, err
	}
	if raw := r.value(row, TargetStart); raw != "" {
		d, err := lifecycle.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		v.start = &d
	}
	if raw := r.value(row, TargetEnd); raw != "" {
		d, err := lifecycle.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		v.end = &d
	} else if v.start != nil {
		d, err := lifecycle.ComputeEndDate(*v.start, v.plan)
		if err != nil {
			return nil, err
		}
		v.end = &d
	}
	if v.start != nil && v.end != nil && v.end.Before(*v.start) {
		return nil, errs.Validation("end", lifecycle.FormatDate(v.end), "before start")
	}
	return v, nil
}

func (r *importRun) reconcile(ctx context.Context, row []string) error {
	v, err := r.extract(row)
	if err != nil {
		return err
	}
	client, err := r.resolveClient(ctx, v.client, v.contact)
	if err != nil {
		return err
	}

	stores := r.svc.stores
	sub, err := stores.Subscriptions.Insert(ctx, &models.Subscription{
		ClientID:   client.ID,
		PlanMonths: v.plan,
		Device:     v.device,
		MAC:        v.mac,
		M3UURL:     v.m3u,
		Price:      v.price,
		StartDate:  v.start,
		EndDate:    v.end,
		Active:     true,
	})
	if err != nil {
		return err
	}
	if len(v.lineNames) == 0 {
		return nil
	}

	lines := make([]*models.Line, 0, len(v.lineNames))
	for _, name := range v.lineNames {
		lines = append(lines, &models.Line{SubscriptionID: sub.ID, Name: name})
	}
	if err := stores.Lines.InsertBatch(ctx, lines); err != nil {
		// Drop the half-written subscription so a re-import of the failed
		// row does not leave a duplicate behind.
		if delErr := stores.Subscriptions.Delete(ctx, sub.ID); delErr != nil {
			logctx.FromCtx(ctx, r.svc.l).Errorw("failed to roll back subscription", "subscription_id", sub.ID, "error", delErr)
		}
		return err
	}
	return nil
}

func (r *importRun) resolveClient(ctx context.Context, name, contact string) (*models.Client, error) {
	unlock := r.lockName(name)
	defer unlock()

	clients := r.svc.stores.Clients
	existing, err := clients.First(ctx, store.Where(types.Eq("name", name)).Sort("created_at", types.SortAsc))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	return clients.Insert(ctx, &models.Client{
		Name:    name,
		Contact: contact,
		Status:  types.ClientStatusActive,
	})
}

// SplitLines splits a comma separated list, trimming tokens and dropping
// empty ones.
func SplitLines(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

var leadingInt = regexp.MustCompile(`^\d+`)

// ParsePlan reads a plan duration in months. "3", "3 mesi" and "12 months"
// are accepted; blank means 1.
func ParsePlan(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	digits := leadingInt.FindString(raw)
	if digits == "" {
		return 0, errs.Validation("plan", raw, "not a number of months")
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, errs.Validation("plan", raw, err.Error())
	}
	if n < 1 {
		return 0, errs.Validation("plan", raw, "must be at least 1")
	}
	return n, nil
}

var priceNoise = strings.NewReplacer("€", "", "$", "", "EUR", "", "eur", "", " ", "", "\u00a0", "")

// ParsePrice reads a non-negative amount. Both "19,99" and "19.99" are
// 19.99; with both separators present ("1.234,56") the last one is the
// decimal separator. Blank means 0.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := priceNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, nil
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.Validation("price", raw, "not a number")
	}
	if d.IsNegative() {
		return decimal.Zero, errs.Validation("price", raw, "must not be negative")
	}
	return d, nil
}
