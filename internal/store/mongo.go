package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
)

const configsCollection = "configs"

// MongoStore reads configs from the CRM's own "configs" collection.
type MongoStore struct {
	client  *mongo.Client
	configs *mongo.Collection
}

type mongoConfig struct {
	Code  string `bson:"code"`
	Value any    `bson:"value"`
}

func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &MongoStore{
		client:  client,
		configs: client.Database(database).Collection(configsCollection),
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) GetConfig(ctx context.Context, code string) (*domain.Config, error) {
	var doc mongoConfig
	err := s.configs.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding config %s: %w", code, err)
	}

	return &domain.Config{Code: doc.Code, Value: normalize(doc.Value)}, nil
}

func (s *MongoStore) SetConfig(ctx context.Context, code string, value any) error {
	_, err := s.configs.UpdateOne(ctx,
		bson.M{"code": code},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upserting config %s: %w", code, err)
	}
	return nil
}

func (s *MongoStore) CountConfigs(ctx context.Context) (int64, error) {
	n, err := s.configs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting configs: %w", err)
	}
	return n, nil
}

func (s *MongoStore) InsertConfigs(ctx context.Context, configs []domain.Config) error {
	if len(configs) == 0 {
		return nil
	}

	docs := make([]any, len(configs))
	for i, c := range configs {
		docs[i] = mongoConfig{Code: c.Code, Value: c.Value}
	}

	if _, err := s.configs.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting configs: %w", err)
	}
	return nil
}

// normalize turns decoded BSON containers into plain maps and slices so the
// rest of the code never sees driver types.
func normalize(v any) any {
	switch val := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = normalize(inner)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = normalize(inner)
		}
		return m
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	default:
		return v
	}
}
