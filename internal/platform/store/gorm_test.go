package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/iptv-crm/pkg/errs"
)

// counter has an integer key, which a generated UUID cannot fill.
type counter struct {
	ID    int64 `gorm:"primaryKey"`
	Value int
}

func TestGormStore_InsertReportsIDAssignment(t *testing.T) {
	ctx := context.Background()
	s := NewGorm[counter](nil)

	_, err := s.Insert(ctx, &counter{Value: 1})
	require.ErrorIs(t, err, errs.ErrStore)
	require.Contains(t, err.Error(), "store insert")

	err = s.InsertBatch(ctx, []*counter{{Value: 1}})
	require.ErrorIs(t, err, errs.ErrStore)
	require.Contains(t, err.Error(), "store insert_batch")
}
