package store

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/tool"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// MemoryStore keeps records in process. It evaluates the same filters as the
// SQL store through the gorm schema of T, so services behave identically on
// both. Records are copied on the way in and out.
type MemoryStore[T any] struct {
	mu     sync.RWMutex
	schema *schema.Schema
	rows   []*T
	now    func() time.Time

	// FailOn, when set, is consulted before every operation; a non-nil
	// error aborts it. rec is only set for inserts.
	FailOn func(op string, rec *T) error
}

func NewMemory[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{schema: mustSchema[T](), now: time.Now}
}

func NewMemoryStores() *Stores {
	return &Stores{
		Clients:       NewMemory[models.Client](),
		Subscriptions: NewMemory[models.Subscription](),
		Lines:         NewMemory[models.Line](),
		Timeline:      NewMemory[models.TimelineEvent](),
		Tickets:       NewMemory[models.Ticket](),
		Orders:        NewMemory[models.Order](),
	}
}

func (m *MemoryStore[T]) table() string { return m.schema.Table }

func (m *MemoryStore[T]) fail(op string, rec *T) error {
	if m.FailOn == nil {
		return nil
	}
	if err := m.FailOn(op, rec); err != nil {
		return errs.Store(op, m.table(), err)
	}
	return nil
}

func clone[T any](rec *T) *T {
	c := *rec
	return &c
}

func (m *MemoryStore[T]) value(ctx context.Context, rec *T, column string) (any, error) {
	f := m.schema.LookUpField(column)
	if f == nil {
		return nil, errs.Validation("column", column, "unknown")
	}
	v, _ := f.ValueOf(ctx, reflect.ValueOf(rec).Elem())
	return v, nil
}

func (m *MemoryStore[T]) id(ctx context.Context, rec *T) string {
	v, _ := m.schema.PrioritizedPrimaryField.ValueOf(ctx, reflect.ValueOf(rec).Elem())
	s, _ := v.(string)
	return s
}

func (m *MemoryStore[T]) matches(ctx context.Context, rec *T, filters []*types.CommonFilter) (bool, error) {
	for _, f := range filters {
		v, err := m.value(ctx, rec, f.Field)
		if err != nil {
			return false, err
		}
		if !f.Match(v) {
			return false, nil
		}
	}
	return true, nil
}

// selectLocked returns the stored pointers matching filters. Callers hold mu.
func (m *MemoryStore[T]) selectLocked(ctx context.Context, filters []*types.CommonFilter) ([]*T, error) {
	var out []*T
	for _, rec := range m.rows {
		ok, err := m.matches(ctx, rec, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemoryStore[T]) Find(ctx context.Context, q *Query) ([]*T, error) {
	if q == nil {
		q = &Query{}
	}
	if err := q.validate(); err != nil {
		return nil, errs.Store("find", m.table(), err)
	}
	if err := m.fail("find", nil); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.selectLocked(ctx, q.Filters)
	if err != nil {
		return nil, errs.Store("find", m.table(), err)
	}
	if q.OrderBy != "" {
		if m.schema.LookUpField(q.OrderBy) == nil {
			return nil, errs.Store("find", m.table(), errs.Validation("column", q.OrderBy, "unknown"))
		}
		desc := q.Order == types.SortDesc
		sort.SliceStable(rows, func(i, j int) bool {
			a, _ := m.value(ctx, rows[i], q.OrderBy)
			b, _ := m.value(ctx, rows[j], q.OrderBy)
			return less(a, b, desc)
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Offset:]
		}
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]*T, 0, len(rows))
	for _, rec := range rows {
		out = append(out, clone(rec))
	}
	return out, nil
}

// less orders like Postgres: NULLs sort last ascending and first descending.
func less(a, b any, desc bool) bool {
	c, ok := types.Compare(a, b)
	if !ok {
		aNil, bNil := isNil(a), isNil(b)
		if aNil == bNil {
			return false
		}
		if desc {
			return aNil
		}
		return bNil
	}
	if desc {
		return c > 0
	}
	return c < 0
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func (m *MemoryStore[T]) First(ctx context.Context, q *Query) (*T, error) {
	cp := Query{}
	if q != nil {
		cp = *q
	}
	cp.Limit = 1
	rows, err := m.Find(ctx, &cp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Store("first", m.table(), errs.ErrNotFound)
	}
	return rows[0], nil
}

func (m *MemoryStore[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := m.fail("get", nil); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.rows {
		if m.id(ctx, rec) == id {
			return clone(rec), nil
		}
	}
	return nil, errs.Store("get", m.table(), errs.ErrNotFound)
}

func (m *MemoryStore[T]) Count(ctx context.Context, filters ...*types.CommonFilter) (int64, error) {
	if err := (&Query{Filters: filters}).validate(); err != nil {
		return 0, errs.Store("count", m.table(), err)
	}
	if err := m.fail("count", nil); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, err := m.selectLocked(ctx, filters)
	if err != nil {
		return 0, errs.Store("count", m.table(), err)
	}
	return int64(len(rows)), nil
}

func (m *MemoryStore[T]) Sum(ctx context.Context, column string, filters ...*types.CommonFilter) (decimal.Decimal, error) {
	if err := m.fail("sum", nil); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, err := m.selectLocked(ctx, filters)
	if err != nil {
		return decimal.Zero, errs.Store("sum", m.table(), err)
	}
	total := decimal.Zero
	for _, rec := range rows {
		v, err := m.value(ctx, rec, column)
		if err != nil {
			return decimal.Zero, errs.Store("sum", m.table(), err)
		}
		switch n := v.(type) {
		case decimal.Decimal:
			total = total.Add(n)
		case int:
			total = total.Add(decimal.NewFromInt(int64(n)))
		case int64:
			total = total.Add(decimal.NewFromInt(n))
		case float64:
			total = total.Add(decimal.NewFromFloat(n))
		default:
			return decimal.Zero, errs.Store("sum", m.table(), errs.Validation("column", column, "not numeric"))
		}
	}
	return total, nil
}

// prepare assigns the id and automatic timestamps the way gorm would.
func (m *MemoryStore[T]) prepare(ctx context.Context, rec *T) error {
	rv := reflect.ValueOf(rec).Elem()
	if pk := m.schema.PrioritizedPrimaryField; pk != nil {
		if _, zero := pk.ValueOf(ctx, rv); zero {
			if err := pk.Set(ctx, rv, tool.GenerateUUIDV7()); err != nil {
				return err
			}
		}
	}
	now := m.now().UTC()
	for _, f := range m.schema.Fields {
		if f.AutoCreateTime == 0 && f.AutoUpdateTime == 0 {
			continue
		}
		if _, zero := f.ValueOf(ctx, rv); zero {
			if err := f.Set(ctx, rv, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MemoryStore[T]) Insert(ctx context.Context, rec *T) (*T, error) {
	if err := m.fail("insert", rec); err != nil {
		return nil, err
	}
	if err := m.prepare(ctx, rec); err != nil {
		return nil, errs.Store("insert", m.table(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id(ctx, rec)
	for _, existing := range m.rows {
		if m.id(ctx, existing) == id {
			return nil, errs.Store("insert", m.table(), errs.ErrConflict)
		}
	}
	m.rows = append(m.rows, clone(rec))
	return rec, nil
}

// InsertBatch is all or nothing.
func (m *MemoryStore[T]) InsertBatch(ctx context.Context, recs []*T) error {
	for _, rec := range recs {
		if err := m.fail("insert_batch", rec); err != nil {
			return err
		}
		if err := m.prepare(ctx, rec); err != nil {
			return errs.Store("insert_batch", m.table(), err)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.rows = append(m.rows, clone(rec))
	}
	return nil
}

func (m *MemoryStore[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	if err := m.fail("update", nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		if m.id(ctx, rec) != id {
			continue
		}
		next := clone(rec)
		rv := reflect.ValueOf(next).Elem()
		for col, v := range fields {
			f := m.schema.LookUpField(col)
			if f == nil {
				return nil, errs.Store("update", m.table(), errs.Validation("column", col, "unknown"))
			}
			// reset first: gorm writes through an existing pointer, which
			// would alter copies already handed out
			if err := f.Set(ctx, rv, nil); err != nil {
				return nil, errs.Store("update", m.table(), err)
			}
			if isNil(v) {
				continue
			}
			if err := f.Set(ctx, rv, v); err != nil {
				return nil, errs.Store("update", m.table(), err)
			}
		}
		if len(fields) > 0 {
			for _, f := range m.schema.Fields {
				if f.AutoUpdateTime != 0 {
					_ = f.Set(ctx, rv, m.now().UTC())
				}
			}
		}
		*rec = *next
		return clone(rec), nil
	}
	return nil, errs.Store("update", m.table(), errs.ErrNotFound)
}

func (m *MemoryStore[T]) Delete(ctx context.Context, id string) error {
	if err := m.fail("delete", nil); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rec := range m.rows {
		if m.id(ctx, rec) == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return errs.Store("delete", m.table(), errs.ErrNotFound)
}

func (m *MemoryStore[T]) DeleteWhere(ctx context.Context, filters ...*types.CommonFilter) (int64, error) {
	if len(filters) == 0 {
		return 0, errs.Store("delete_where", m.table(), errs.Validation("filters", "", "at least one filter is required"))
	}
	if err := (&Query{Filters: filters}).validate(); err != nil {
		return 0, errs.Store("delete_where", m.table(), err)
	}
	if err := m.fail("delete_where", nil); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]*T, 0, len(m.rows))
	var n int64
	for _, rec := range m.rows {
		ok, err := m.matches(ctx, rec, filters)
		if err != nil {
			return 0, errs.Store("delete_where", m.table(), err)
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	m.rows = kept
	return n, nil
}
