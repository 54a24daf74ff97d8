package service

import (
	"context"
	"fmt"
	"io"
	"time"

	models "github.com/fathima-sithara/image-service/internal/media"
	"github.com/fathima-sithara/image-service/internal/storage"
)

// Retriever serves derivatives straight from the store. Ownership is part of
// the location, so no record lookup happens.
type Retriever struct {
	store storage.Store
	obs   Observer
}

func NewRetriever(store storage.Store, obs Observer) *Retriever {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Retriever{store: store, obs: obs}
}

// Get opens one derivative. The size token is checked before anything else.
func (r *Retriever) Get(ctx context.Context, kind models.OwnerKind, ownerID, assetID, sizeToken string) (rc io.ReadCloser, contentType string, err error) {
	start := time.Now()
	defer func() { r.obs.ObserveOperation("get", err, time.Since(start)) }()

	size, err := models.ParseSize(sizeToken)
	if err != nil {
		return nil, "", err
	}
	if !kind.Valid() {
		return nil, "", fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, kind)
	}
	if !models.ValidSegment(ownerID) || !models.ValidSegment(assetID) {
		return nil, "", fmt.Errorf("%w: %s/%s", models.ErrNotFound, ownerID, assetID)
	}

	loc := models.Location(models.Owner{Kind: kind, ID: ownerID}, size, assetID)
	rc, err = r.store.Open(ctx, loc)
	if err != nil {
		return nil, "", err
	}
	return rc, models.ContentType, nil
}
