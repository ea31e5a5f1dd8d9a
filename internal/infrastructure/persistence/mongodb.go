package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures the history store connection
type MongoOptions struct {
	URI            string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// NewMongoClient creates a new MongoDB client and verifies it with a ping
func NewMongoClient(ctx context.Context, opts MongoOptions) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(opts.URI)

	if opts.Username != "" && opts.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, nil
}

// GetDatabase gets a database from the client
func GetDatabase(client *mongo.Client, name string) *mongo.Database {
	return client.Database(name)
}
