package service

import (
	"context"
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/fathima-sithara/image-service/internal/media"
)

func strPtr(s string) *string { return &s }

func TestDeleteRequest_IDs(t *testing.T) {
	tests := []struct {
		name    string
		req     DeleteRequest
		want    []string
		wantErr bool
	}{
		{name: "single", req: DeleteRequest{Image: strPtr("a")}, want: []string{"a"}},
		{name: "list", req: DeleteRequest{Images: []string{"a", "b"}}, want: []string{"a", "b"}},
		{name: "list dedup", req: DeleteRequest{Images: []string{"a", "b", "a"}}, want: []string{"a", "b"}},
		{name: "neither", req: DeleteRequest{}, wantErr: true},
		{name: "both", req: DeleteRequest{Image: strPtr("a"), Images: []string{"b"}}, wantErr: true},
		{name: "empty list", req: DeleteRequest{Images: []string{}}, wantErr: true},
		{name: "empty single", req: DeleteRequest{Image: strPtr("")}, wantErr: true},
		{name: "empty entry", req: DeleteRequest{Images: []string{"a", ""}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.IDs()
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBatchDeleter_Single(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.Create(ctx, propertyP1, jpegUpload(t, 40, 30))
	require.NoError(t, err)

	n, err := f.batch.Delete(ctx, DeleteRequest{Image: &id})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, _, err = f.get.Get(ctx, models.OwnerProperty, "p1", id, "large")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBatchDeleter_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.Create(ctx, propertyP1, jpegUpload(t, 40, 30))
	require.NoError(t, err)

	for _, missing := range []string{"does-not-exist", ksuid.New().String()} {
		_, err = f.batch.Delete(ctx, DeleteRequest{Images: []string{id, missing}})
		assert.ErrorIs(t, err, models.ErrAssetNotFound)
	}

	rc, _, err := f.get.Get(ctx, models.OwnerProperty, "p1", id, "large")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, len(models.Sizes), countFiles(t, f.fs, "/images"))
	assert.Empty(t, f.pub.deleted)
}

func TestBatchDeleter_Many(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, propertyP1, jpegUpload(t, 40, 30))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, accountU1, jpegUpload(t, 40, 30))
	require.NoError(t, err)

	n, err := f.batch.Delete(ctx, DeleteRequest{Images: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, countFiles(t, f.fs, "/images"))

	_, err = f.batch.Delete(ctx, DeleteRequest{Images: []string{a}})
	assert.ErrorIs(t, err, models.ErrAssetNotFound)
}

func TestBatchDeleter_ShapeErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.batch.Delete(context.Background(), DeleteRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)
}
