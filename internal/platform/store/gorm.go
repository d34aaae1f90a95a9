package store

import (
	"context"
	"errors"
	"reflect"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/errs"
	"github.com/fatflowers/iptv-crm/pkg/tool"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// GormStore is the SQL backed store.
type GormStore[T any] struct {
	db     *gorm.DB
	schema *schema.Schema
}

func NewGorm[T any](db *gorm.DB) *GormStore[T] {
	return &GormStore[T]{db: db, schema: mustSchema[T]()}
}

func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Clients:       NewGorm[models.Client](db),
		Subscriptions: NewGorm[models.Subscription](db),
		Lines:         NewGorm[models.Line](db),
		Timeline:      NewGorm[models.TimelineEvent](db),
		Tickets:       NewGorm[models.Ticket](db),
		Orders:        NewGorm[models.Order](db),
	}
}

// filtersAnd combines filters into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func (s *GormStore[T]) table() string { return s.schema.Table }

func (s *GormStore[T]) scoped(ctx context.Context, filters []*types.CommonFilter) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(new(T))
	if len(filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: filters}}})
	}
	return tx
}

func (s *GormStore[T]) Find(ctx context.Context, q *Query) ([]*T, error) {
	if q == nil {
		q = &Query{}
	}
	if err := q.validate(); err != nil {
		return nil, errs.Store("find", s.table(), err)
	}
	tx := s.scoped(ctx, q.Filters)
	if q.OrderBy != "" {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy}, Desc: q.Order == types.SortDesc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	var rows []*T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, errs.Store("find", s.table(), err)
	}
	return rows, nil
}

func (s *GormStore[T]) First(ctx context.Context, q *Query) (*T, error) {
	cp := Query{}
	if q != nil {
		cp = *q
	}
	cp.Limit = 1
	rows, err := s.Find(ctx, &cp)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Store("first", s.table(), errs.ErrNotFound)
	}
	return rows[0], nil
}

func (s *GormStore[T]) Get(ctx context.Context, id string) (*T, error) {
	var rec T
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Store("get", s.table(), errs.ErrNotFound)
		}
		return nil, errs.Store("get", s.table(), err)
	}
	return &rec, nil
}

func (s *GormStore[T]) Count(ctx context.Context, filters ...*types.CommonFilter) (int64, error) {
	if err := (&Query{Filters: filters}).validate(); err != nil {
		return 0, errs.Store("count", s.table(), err)
	}
	var n int64
	if err := s.scoped(ctx, filters).Count(&n).Error; err != nil {
		return 0, errs.Store("count", s.table(), err)
	}
	return n, nil
}

func (s *GormStore[T]) Sum(ctx context.Context, column string, filters ...*types.CommonFilter) (decimal.Decimal, error) {
	if err := (&Query{Filters: filters, OrderBy: column}).validate(); err != nil {
		return decimal.Zero, errs.Store("sum", s.table(), err)
	}
	// column passed validColumn above, so it is safe to interpolate.
	var out struct{ Total decimal.NullDecimal }
	if err := s.scoped(ctx, filters).Select("SUM(" + column + ") AS total").Scan(&out).Error; err != nil {
		return decimal.Zero, errs.Store("sum", s.table(), err)
	}
	if !out.Total.Valid {
		return decimal.Zero, nil
	}
	return out.Total.Decimal, nil
}

func (s *GormStore[T]) assignID(ctx context.Context, rec *T) error {
	pk := s.schema.PrioritizedPrimaryField
	if pk == nil {
		return nil
	}
	rv := reflect.ValueOf(rec).Elem()
	if _, zero := pk.ValueOf(ctx, rv); zero {
		return pk.Set(ctx, rv, tool.GenerateUUIDV7())
	}
	return nil
}

func (s *GormStore[T]) Insert(ctx context.Context, rec *T) (*T, error) {
	if err := s.assignID(ctx, rec); err != nil {
		return nil, errs.Store("insert", s.table(), err)
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, errs.Store("insert", s.table(), err)
	}
	return rec, nil
}

func (s *GormStore[T]) InsertBatch(ctx context.Context, recs []*T) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if err := s.assignID(ctx, rec); err != nil {
			return errs.Store("insert_batch", s.table(), err)
		}
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(recs).Error; err != nil {
		return errs.Store("insert_batch", s.table(), err)
	}
	return nil
}

func (s *GormStore[T]) Update(ctx context.Context, id string, fields map[string]any) (*T, error) {
	if len(fields) > 0 {
		for col := range fields {
			if s.schema.LookUpField(col) == nil {
				return nil, errs.Store("update", s.table(), errs.Validation("column", col, "unknown"))
			}
		}
		res := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, errs.Store("update", s.table(), res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, errs.Store("update", s.table(), errs.ErrNotFound)
		}
	}
	return s.Get(ctx, id)
}

func (s *GormStore[T]) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return errs.Store("delete", s.table(), res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Store("delete", s.table(), errs.ErrNotFound)
	}
	return nil
}

func (s *GormStore[T]) DeleteWhere(ctx context.Context, filters ...*types.CommonFilter) (int64, error) {
	if len(filters) == 0 {
		return 0, errs.Store("delete_where", s.table(), errs.Validation("filters", "", "at least one filter is required"))
	}
	if err := (&Query{Filters: filters}).validate(); err != nil {
		return 0, errs.Store("delete_where", s.table(), err)
	}
	res := s.db.WithContext(ctx).
		Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: filters}}}).
		Delete(new(T))
	if res.Error != nil {
		return 0, errs.Store("delete_where", s.table(), res.Error)
	}
	return res.RowsAffected, nil
}
