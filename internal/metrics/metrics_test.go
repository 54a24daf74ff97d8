package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/fathima-sithara/image-service/internal/media"
)

func TestObserver_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewObserver("test", reg)
	require.NoError(t, err)

	o.ObserveOperation("create", nil, 10*time.Millisecond)
	o.ObserveOperation("create", fmt.Errorf("x: %w", models.ErrIO), time.Millisecond)
	o.ObserveRollback("create")

	assert.Equal(t, 1.0, testutil.ToFloat64(o.outcomes.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.outcomes.WithLabelValues("create", "io_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.rollbacks.WithLabelValues("create")))
}

func TestObserver_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewObserver("test", reg)
	require.NoError(t, err)
	second, err := NewObserver("test", reg)
	require.NoError(t, err)

	second.ObserveRollback("create")
	assert.Equal(t, 1.0, testutil.ToFloat64(first.rollbacks.WithLabelValues("create")))
}

func TestObserver_NilSafe(t *testing.T) {
	var o *Observer
	o.ObserveOperation("get", nil, time.Second)
	o.ObserveRollback("create")
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{models.ErrValidation, "invalid"},
		{models.ErrInvalidSize, "invalid"},
		{models.ErrUnsupportedMedia, "unsupported_media"},
		{fmt.Errorf("a: %w", models.ErrAssetNotFound), "not_found"},
		{models.ErrOwnerNotFound, "not_found"},
		{models.ErrEncode, "encode_error"},
		{models.ErrIO, "io_error"},
		{errors.New("db down"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err), "%v", tt.err)
	}
}
