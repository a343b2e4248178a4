package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"peopleapi/internal/config"
)

var mongoConnect = mongo.Connect

const defaultMongoTimeout = 10 * time.Second

// BuildMongoOptions turns the config into driver options. Only the URI is required;
// pooling and retries are left to the driver. Commands are traced through otelmongo.
func BuildMongoOptions(c config.MongoConfig) (*options.ClientOptions, error) {
	if c.URI == "" {
		return nil, fmt.Errorf("invalid mongo config: uri is required")
	}

	opts := options.Client().ApplyURI(c.URI).SetMonitor(otelmongo.NewMonitor())
	if c.ConnectTimeoutSec > 0 {
		opts.SetConnectTimeout(time.Duration(c.ConnectTimeoutSec) * time.Second)
	}
	if c.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(c.MaxPoolSize))
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongo uri: %w", err)
	}
	return opts, nil
}

// NewMongo connects to MongoDB and verifies the primary answers a ping.
func NewMongo(ctx context.Context, c config.MongoConfig) (*mongo.Client, error) {
	opts, err := BuildMongoOptions(c)
	if err != nil {
		return nil, err
	}

	timeout := defaultMongoTimeout
	if c.ConnectTimeoutSec > 0 {
		timeout = time.Duration(c.ConnectTimeoutSec) * time.Second
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongoConnect(connCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// MongoCollection returns the people collection from a connected client.
func MongoCollection(client *mongo.Client, c config.MongoConfig) *mongo.Collection {
	return client.Database(c.Database).Collection(c.Collection)
}
