package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/fathima-sithara/image-service/internal/media"
)

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// MediaRepo keeps asset records in a mongo collection.
type MediaRepo struct {
	col *mongo.Collection
}

// NewMediaRepo ensures the owner index that listing and cascades rely on.
func NewMediaRepo(ctx context.Context, col *mongo.Collection) (*MediaRepo, error) {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}},
		Options: options.Index().SetName("owner_idx"),
	}
	if _, err := col.Indexes().CreateOne(ctx, ix); err != nil {
		return nil, fmt.Errorf("create owner index on %s: %w", col.Name(), err)
	}
	return &MediaRepo{col: col}, nil
}

func (r *MediaRepo) Insert(ctx context.Context, a *models.Asset) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: asset id cannot be empty", models.ErrValidation)
	}
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *MediaRepo) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	var a models.Asset
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", models.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *MediaRepo) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MediaRepo) ListByOwner(ctx context.Context, owner models.Owner) ([]*models.Asset, error) {
	filter := bson.M{"owner_kind": owner.Kind, "owner_id": owner.ID}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.Asset{}
	for cur.Next(ctx) {
		var a models.Asset
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, cur.Err()
}

// MongoOwnerLookup resolves owners against the collections holding
// listings and accounts.
type MongoOwnerLookup struct {
	cols map[models.OwnerKind]*mongo.Collection
}

func NewMongoOwnerLookup(db *mongo.Database, properties, accounts string) *MongoOwnerLookup {
	return &MongoOwnerLookup{cols: map[models.OwnerKind]*mongo.Collection{
		models.OwnerProperty: db.Collection(properties),
		models.OwnerAccount:  db.Collection(accounts),
	}}
}

func (l *MongoOwnerLookup) Exists(ctx context.Context, owner models.Owner) (bool, error) {
	col, ok := l.cols[owner.Kind]
	if !ok {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidOwnerKind, owner.Kind)
	}
	n, err := col.CountDocuments(ctx, bson.M{"_id": owner.ID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to look up owner %s: %w", owner, err)
	}
	return n > 0, nil
}
