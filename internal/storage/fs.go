package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// kindRootDepth is the number of segments in "images/{kind}"; ancestor
// cleanup never removes a directory at or above it.
const kindRootDepth = 2

// FSStore keeps blobs as files on an afero filesystem.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore stores blobs under root on the local disk.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create root %s: %v", models.ErrIO, root, err)
	}
	return NewFSStoreWith(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewFSStoreWith uses fs as the namespace root.
func NewFSStoreWith(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// run executes a read unless ctx ends first. File APIs have no context
// support, so an abandoned fn finishes in the background and release, when
// set, disposes of whatever it returned.
func run[T any](ctx context.Context, fn func() (T, error), release func(T)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		if release != nil {
			go func() {
				if r := <-ch; r.err == nil {
					release(r.v)
				}
			}()
		}
		return zero, fmt.Errorf("%w: %v", models.ErrIO, ctx.Err())
	}
}

// mutate runs a change to completion. It is never abandoned mid-flight, so
// once it returns the namespace no longer moves on its behalf.
func mutate(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	return fn()
}

// abs roots loc so every afero backend resolves it the same way.
func abs(loc string) string {
	return "/" + strings.TrimPrefix(path.Clean("/"+loc), "/")
}

func (s *FSStore) Exists(ctx context.Context, loc string) (bool, error) {
	loc = abs(loc)
	return run(ctx, func() (bool, error) {
		fi, err := s.fs.Stat(loc)
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: stat %s: %v", models.ErrIO, loc, err)
		}
		return !fi.IsDir(), nil
	}, nil)
}

// Write stages data in a sibling temp file and renames it into place, so a
// reader sees either the old blob, the new one, or none. A write that
// outlives ctx is undone before Write reports the failure.
func (s *FSStore) Write(ctx context.Context, loc string, data []byte) error {
	loc = abs(loc)
	return mutate(ctx, func() error {
		err := s.writeAtomic(ctx, loc, data)
		if errors.Is(err, os.ErrNotExist) {
			// a concurrent ancestor cleanup removed the directory between
			// MkdirAll and create
			err = s.writeAtomic(ctx, loc, data)
		}
		if err != nil {
			return fmt.Errorf("%w: write %s: %v", models.ErrIO, loc, err)
		}
		if err := ctx.Err(); err != nil {
			_ = s.fs.Remove(loc)
			return fmt.Errorf("%w: write %s: %v", models.ErrIO, loc, err)
		}
		return nil
	})
}

func (s *FSStore) writeAtomic(ctx context.Context, loc string, data []byte) error {
	dir := path.Dir(loc)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path.Join(dir, "."+path.Base(loc)+"."+ksuid.New().String()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, loc); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *FSStore) Open(ctx context.Context, loc string) (io.ReadCloser, error) {
	loc = abs(loc)
	return run(ctx, func() (io.ReadCloser, error) {
		f, err := s.fs.Open(loc)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrNotFound, loc)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", models.ErrIO, loc, err)
		}
		return f, nil
	}, func(rc io.ReadCloser) { _ = rc.Close() })
}

func (s *FSStore) Delete(ctx context.Context, loc string) error {
	loc = abs(loc)
	return mutate(ctx, func() error {
		if err := s.fs.Remove(loc); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", models.ErrIO, loc, err)
		}
		return nil
	})
}

func (s *FSStore) DeleteEmptyAncestors(ctx context.Context, loc string) error {
	loc = abs(loc)
	return mutate(ctx, func() error {
		for dir := path.Dir(loc); depth(dir) > kindRootDepth; dir = path.Dir(dir) {
			entries, err := afero.ReadDir(s.fs, dir)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return fmt.Errorf("%w: read dir %s: %v", models.ErrIO, dir, err)
			}
			if len(entries) > 0 {
				break
			}
			// a racing write may have refilled it; a failed remove just
			// leaves the directory in place
			if err := s.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
				break
			}
		}
		return nil
	})
}

func (s *FSStore) DeleteTree(ctx context.Context, prefix string) error {
	prefix = abs(prefix)
	return mutate(ctx, func() error {
		if err := s.fs.RemoveAll(prefix); err != nil {
			return fmt.Errorf("%w: remove tree %s: %v", models.ErrIO, prefix, err)
		}
		return nil
	})
}

func depth(p string) int {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" || p == "." {
		return 0
	}
	return strings.Count(p, "/") + 1
}
