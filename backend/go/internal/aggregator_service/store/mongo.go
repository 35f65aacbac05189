package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TechPulse/backend/go/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoContentStore keeps one document per cache key.
type MongoContentStore struct {
	base
	collection *mongo.Collection
	retention  time.Duration
}

// NewMongoContentStore creates a MongoContentStore. retention drives the TTL
// index on updated_at that reclaims keys nobody refreshes anymore.
func NewMongoContentStore(db *mongo.Database, collectionName string, ttl, retention time.Duration, opts ...Option) (*MongoContentStore, error) {
	b, err := newBase(ttl, opts)
	if err != nil {
		return nil, err
	}
	return &MongoContentStore{
		base:       b,
		collection: db.Collection(collectionName),
		retention:  retention,
	}, nil
}

// EnsureIndexes creates the retention TTL index.
func (s *MongoContentStore) EnsureIndexes(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetName("updated_at_ttl").SetExpireAfterSeconds(int32(s.retention.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("create ttl index: %w", err)
	}
	return nil
}

// Upsert replaces one slot with $set and fills immutable key fields with $setOnInsert.
func (s *MongoContentStore) Upsert(ctx context.Context, key models.CacheKey, itemType models.ItemType, gen models.Generation) (*models.Slot, error) {
	if err := validItemType(itemType); err != nil {
		return nil, err
	}
	slot, now := s.slot(gen)
	section, period := key.Split()

	update := bson.M{
		"$set": bson.M{
			string(itemType): slot,
			"updated_at":     now,
		},
		"$setOnInsert": bson.M{
			"section":    section,
			"period":     period,
			"created_at": now,
		},
	}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", key, itemType, err)
	}
	return slot, nil
}

func (s *MongoContentStore) Read(ctx context.Context, key models.CacheKey) (*models.CacheRecord, error) {
	var rec models.CacheRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return &rec, nil
}
