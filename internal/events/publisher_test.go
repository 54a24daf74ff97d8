package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/fathima-sithara/image-service/internal/media"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &fakeWriter{}
	p := &Producer{writer: w, now: func() time.Time { return at }}
	a := &models.Asset{ID: "a1", OwnerKind: models.OwnerProperty, OwnerID: "p1"}

	require.NoError(t, p.AssetCreated(context.Background(), a))
	require.NoError(t, p.AssetDeleted(context.Background(), a))
	require.Len(t, w.msgs, 2)

	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, Event{Type: TypeAssetCreated, AssetID: "a1", OwnerKind: models.OwnerProperty, OwnerID: "p1", At: at}, ev)
	assert.Equal(t, "a1", string(w.msgs[0].Key))
	assert.Equal(t, TypeAssetDeleted, string(w.msgs[1].Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, now: time.Now}
	err := p.AssetCreated(context.Background(), &models.Asset{ID: "a1"})
	assert.EqualError(t, err, "broker down")
}
