// Package store is the record store boundary. Services only see Store[T];
// production wires the GORM implementation, tests and dry runs the in-memory one.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/schema"

	"github.com/fatflowers/iptv-crm/internal/models"
	"github.com/fatflowers/iptv-crm/pkg/types"
)

// Query selects records with AND-ed filters and an optional ordering.
type Query struct {
	Filters []*types.CommonFilter
	OrderBy string
	Order   types.SortOrder
	Offset  int
	Limit   int
}

func Where(filters ...*types.CommonFilter) *Query {
	return &Query{Filters: filters}
}

func (q *Query) Sort(column string, order types.SortOrder) *Query {
	q.OrderBy, q.Order = column, order
	return q
}

func (q *Query) Page(offset, limit int) *Query {
	q.Offset, q.Limit = offset, limit
	return q
}

func (q *Query) validate() error {
	if q == nil {
		return nil
	}
	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	if q.OrderBy != "" && !validColumn(q.OrderBy) {
		return fmt.Errorf("invalid order column %q", q.OrderBy)
	}
	if q.Offset < 0 || q.Limit < 0 {
		return fmt.Errorf("negative offset or limit")
	}
	return nil
}

func validColumn(s string) bool {
	return s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyz0123456789_") == ""
}

// Store is the per-entity record store. Implementations assign ids
// (UUIDv7) and timestamps on insert, and wrap every failure in an
// errs.StoreError; missing records additionally match errs.ErrNotFound.
type Store[T any] interface {
	Find(ctx context.Context, q *Query) ([]*T, error)
	// First returns the first record matching q or a not-found error.
	First(ctx context.Context, q *Query) (*T, error)
	Get(ctx context.Context, id string) (*T, error)
	Count(ctx context.Context, filters ...*types.CommonFilter) (int64, error)
	Sum(ctx context.Context, column string, filters ...*types.CommonFilter) (decimal.Decimal, error)
	Insert(ctx context.Context, rec *T) (*T, error)
	InsertBatch(ctx context.Context, recs []*T) error
	// Update applies a partial update keyed by column name and returns the
	// updated record.
	Update(ctx context.Context, id string, fields map[string]any) (*T, error)
	Delete(ctx context.Context, id string) error
	// DeleteWhere requires at least one filter.
	DeleteWhere(ctx context.Context, filters ...*types.CommonFilter) (int64, error)
}

// Stores bundles one store per entity.
type Stores struct {
	Clients       Store[models.Client]
	Subscriptions Store[models.Subscription]
	Lines         Store[models.Line]
	Timeline      Store[models.TimelineEvent]
	Tickets       Store[models.Ticket]
	Orders        Store[models.Order]
}

var schemaCache sync.Map

func mustSchema[T any]() *schema.Schema {
	s, err := schema.Parse(new(T), &schemaCache, schema.NamingStrategy{})
	if err != nil {
		panic(fmt.Sprintf("store: parse schema of %T: %v", *new(T), err))
	}
	return s
}
