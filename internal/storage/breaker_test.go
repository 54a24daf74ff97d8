package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	models "github.com/fathima-sithara/image-service/internal/media"
)

type flakyStore struct {
	Store
	calls int
	err   error
}

func (f *flakyStore) Write(ctx context.Context, loc string, data []byte) error {
	f.calls++
	return f.err
}

func (f *flakyStore) Exists(ctx context.Context, loc string) (bool, error) {
	f.calls++
	return false, f.err
}

func TestBreakerStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("boom")}
	b := NewBreakerStore(inner, BreakerConfig{MaxFailures: 2, Timeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	require.Error(t, b.Write(ctx, "k", nil))
	require.Error(t, b.Write(ctx, "k", nil))

	err := b.Write(ctx, "k", nil)
	assert.ErrorIs(t, err, models.ErrIO)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the backend")
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	inner := &flakyStore{err: models.ErrNotFound}
	b := NewBreakerStore(inner, BreakerConfig{MaxFailures: 1, Timeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Exists(ctx, "k")
		assert.ErrorIs(t, err, models.ErrNotFound)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerStore_PassesResults(t *testing.T) {
	mem, _ := newMemStore()
	b := NewBreakerStore(mem, BreakerConfig{}, zap.NewNop())
	ctx := context.Background()
	loc := "images/properties/p1/large/a.webp"

	require.NoError(t, b.Write(ctx, loc, []byte("x")))
	ok, err := b.Exists(ctx, loc)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := b.Open(ctx, loc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, b.Delete(ctx, loc))
	_, err = b.Open(ctx, loc)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
