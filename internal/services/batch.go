package service

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	models "github.com/fathima-sithara/image-service/internal/media"
)

// DeleteRequest names exactly one of a single id or a non-empty id list.
type DeleteRequest struct {
	Image  *string  `json:"image"`
	Images []string `json:"images"`
}

// IDs validates the request shape and returns the referenced ids without
// duplicates.
func (r DeleteRequest) IDs() ([]string, error) {
	switch {
	case r.Image != nil && r.Images != nil:
		return nil, fmt.Errorf("%w: image and images are mutually exclusive", models.ErrValidation)
	case r.Image != nil:
		if *r.Image == "" {
			return nil, fmt.Errorf("%w: image is empty", models.ErrValidation)
		}
		return []string{*r.Image}, nil
	case r.Images != nil:
		if len(r.Images) == 0 {
			return nil, fmt.Errorf("%w: images is empty", models.ErrValidation)
		}
		seen := make(map[string]struct{}, len(r.Images))
		ids := make([]string, 0, len(r.Images))
		for _, id := range r.Images {
			if id == "" {
				return nil, fmt.Errorf("%w: images contains an empty id", models.ErrValidation)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("%w: image or images is required", models.ErrValidation)
}

// BatchDeleter resolves every referenced asset before deleting any of them.
type BatchDeleter struct {
	svc *MediaService
}

func NewBatchDeleter(svc *MediaService) *BatchDeleter {
	return &BatchDeleter{svc: svc}
}

// Delete returns the number of assets removed. A single unknown id aborts the
// whole request with models.ErrAssetNotFound before anything is removed.
func (b *BatchDeleter) Delete(ctx context.Context, req DeleteRequest) (n int, err error) {
	start := time.Now()
	defer func() { b.svc.obs.ObserveOperation("batch_delete", err, time.Since(start)) }()

	ids, err := req.IDs()
	if err != nil {
		return 0, err
	}

	assets := make([]*models.Asset, 0, len(ids))
	for _, id := range ids {
		// ids that are not ksuids were never minted here
		if _, err := ksuid.Parse(id); err != nil {
			return 0, fmt.Errorf("%w: %s", models.ErrAssetNotFound, id)
		}
		a, err := b.svc.repo.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		assets = append(assets, a)
	}

	removed := 0
	for _, a := range assets {
		if err := b.svc.remove(ctx, a); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
