// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/steltix/newsgrab/pkg/types"
)

const mongoConnectTimeout = 10 * time.Second

// MongoWriter replaces documents keyed by URL. The full result is stored,
// nested metadata included.
type MongoWriter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoWriter connects and resolves the target collection.
func NewMongoWriter(cfg Config) (*MongoWriter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mongodb output requires a dsn")
	}
	database := cfg.Database
	if database == "" {
		database = "newsgrab"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "articles"
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &MongoWriter{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (w *MongoWriter) Write(results []*types.ArticleResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	for _, r := range results {
		_, err := w.collection.ReplaceOne(ctx, bson.M{"url": r.URL}, r, opts)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.URL, err)
		}
	}
	return nil
}

func (w *MongoWriter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return w.client.Disconnect(ctx)
}
