package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// Store is a durable blob namespace keyed by slash-separated locations.
//
// Write overwrites existing blobs. Open returns models.ErrNotFound for a
// missing blob. Delete of a missing blob is not an error. Every other failure
// wraps models.ErrIO.
type Store interface {
	Exists(ctx context.Context, loc string) (bool, error)
	Write(ctx context.Context, loc string, data []byte) error
	Open(ctx context.Context, loc string) (io.ReadCloser, error)
	Delete(ctx context.Context, loc string) error
	// DeleteEmptyAncestors removes parent directories of loc that became
	// empty, stopping below the owner-kind root. Best effort.
	DeleteEmptyAncestors(ctx context.Context, loc string) error
	// DeleteTree removes every blob under prefix.
	DeleteTree(ctx context.Context, prefix string) error
}

// timeoutStore bounds every call with a deadline.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout wraps s so no call runs longer than d. A zero d disables it.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: d}
}

func (t *timeoutStore) Exists(ctx context.Context, loc string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	ok, err := t.next.Exists(ctx, loc)
	return ok, expired(ctx, err)
}

func (t *timeoutStore) Write(ctx context.Context, loc string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return expired(ctx, t.next.Write(ctx, loc, data))
}

// Open only bounds the open itself; the caller owns the stream afterwards.
func (t *timeoutStore) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	rc, err := t.next.Open(ctx, loc)
	if err != nil {
		err = expired(ctx, err)
		cancel()
		return nil, err
	}
	return &cancelReadCloser{ReadCloser: rc, cancel: cancel}, nil
}

func (t *timeoutStore) Delete(ctx context.Context, loc string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return expired(ctx, t.next.Delete(ctx, loc))
}

func (t *timeoutStore) DeleteEmptyAncestors(ctx context.Context, loc string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return expired(ctx, t.next.DeleteEmptyAncestors(ctx, loc))
}

func (t *timeoutStore) DeleteTree(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return expired(ctx, t.next.DeleteTree(ctx, prefix))
}

// expired reports a deadline hit by the wrapped call as a storage failure.
func expired(ctx context.Context, err error) error {
	if err == nil || ctx.Err() == nil || errors.Is(err, models.ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrIO, err)
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
