package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	models "github.com/fathima-sithara/image-service/internal/media"
)

const (
	TypeAssetCreated = "image.created"
	TypeAssetDeleted = "image.deleted"
)

// Event is the payload written for every asset lifecycle change.
type Event struct {
	Type      string           `json:"type"`
	AssetID   string           `json:"asset_id"`
	OwnerKind models.OwnerKind `json:"owner_kind"`
	OwnerID   string           `json:"owner_id"`
	At        time.Time        `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	now    func() time.Time
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w, now: time.Now}
}

func (p *Producer) AssetCreated(ctx context.Context, a *models.Asset) error {
	return p.publish(ctx, TypeAssetCreated, a)
}

func (p *Producer) AssetDeleted(ctx context.Context, a *models.Asset) error {
	return p.publish(ctx, TypeAssetDeleted, a)
}

// publish keys by asset id so both events of an asset land on one partition.
func (p *Producer) publish(ctx context.Context, typ string, a *models.Asset) error {
	ev := Event{Type: typ, AssetID: a.ID, OwnerKind: a.OwnerKind, OwnerID: a.OwnerID, At: p.now().UTC()}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(a.ID),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(typ)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
