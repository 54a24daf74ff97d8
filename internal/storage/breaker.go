package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	models "github.com/fathima-sithara/image-service/internal/media"
)

type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerStore fails fast with models.ErrIO while the backend keeps failing.
// Not-found answers count as successes.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	st := gobreaker.Settings{
		Name:        "asset-store",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *BreakerStore) do(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	return v, err
}

func (b *BreakerStore) Exists(ctx context.Context, loc string) (bool, error) {
	v, err := b.do(func() (any, error) { return b.next.Exists(ctx, loc) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *BreakerStore) Write(ctx context.Context, loc string, data []byte) error {
	_, err := b.do(func() (any, error) { return nil, b.next.Write(ctx, loc, data) })
	return err
}

func (b *BreakerStore) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	v, err := b.do(func() (any, error) { return b.next.Open(ctx, loc) })
	if err != nil {
		return nil, err
	}
	return v.(io.ReadCloser), nil
}

func (b *BreakerStore) Delete(ctx context.Context, loc string) error {
	_, err := b.do(func() (any, error) { return nil, b.next.Delete(ctx, loc) })
	return err
}

func (b *BreakerStore) DeleteEmptyAncestors(ctx context.Context, loc string) error {
	_, err := b.do(func() (any, error) { return nil, b.next.DeleteEmptyAncestors(ctx, loc) })
	return err
}

func (b *BreakerStore) DeleteTree(ctx context.Context, prefix string) error {
	_, err := b.do(func() (any, error) { return nil, b.next.DeleteTree(ctx, prefix) })
	return err
}
