package audit

import (
	"context"
	"fmt"

	"github.com/azizikri/coupon-ledger/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoSink mirrors audit entries into a MongoDB collection keyed by event id.
type MongoSink struct {
	client *mongo.Client
	coll   collection
}

func NewMongoSink(ctx context.Context, uri, database, coll string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return &MongoSink{
		client: client,
		coll:   client.Database(database).Collection(coll),
	}, nil
}

func (s *MongoSink) Name() string { return "mongo" }

func (s *MongoSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.coll.InsertOne(ctx, toDocument(entry))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func toDocument(entry domain.AuditEntry) bson.D {
	return bson.D{
		{Key: "_id", Value: entry.ID},
		{Key: "ts", Value: entry.Timestamp},
		{Key: "actor", Value: entry.Actor},
		{Key: "operation", Value: string(entry.Operation)},
		{Key: "coupon_code", Value: entry.Code},
		{Key: "outcome", Value: entry.Outcome},
		{Key: "details", Value: entry.Details},
	}
}
