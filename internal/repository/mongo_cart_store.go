package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fjod/storefront/internal/cache"
)

var _ cache.CartCache = (*MongoCartStore)(nil)

type cartDocument struct {
	SessionID string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoCartStore keeps one serialized cart per session in a Mongo collection.
// Documents expire through a TTL index on expires_at.
type MongoCartStore struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoCartStore(db *mongo.Database, ttl time.Duration) *MongoCartStore {
	return &MongoCartStore{
		collection: db.Collection("cart_sessions"),
		ttl:        ttl,
	}
}

func (s *MongoCartStore) CreateIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (s *MongoCartStore) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var doc cartDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	// the TTL monitor runs about once a minute
	if !doc.ExpiresAt.IsZero() && time.Now().After(doc.ExpiresAt) {
		return nil, cache.ErrCacheMiss
	}
	return []byte(doc.Payload), nil
}

func (s *MongoCartStore) Set(ctx context.Context, sessionID string, payload []byte) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"payload":    string(payload),
		"updated_at": now,
		"expires_at": now.Add(s.ttl),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, bson.M{"_id": sessionID}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (s *MongoCartStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (s *MongoCartStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

func (s *MongoCartStore) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}
