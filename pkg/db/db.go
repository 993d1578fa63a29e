package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transcript-harvester/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoConnectTimeout = 10 * time.Second

var (
	errNoMongoURI        = errors.New("mongo: connection URI is required")
	errMongoNotConnected = errors.New("mongo: not connected")
)

// MongoConfig locates the record collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	// ConnectTimeout bounds server selection and the initial ping. Defaults to 10s.
	ConnectTimeout time.Duration
}

// Client wraps the MongoDB client and the record collection.
type Client struct {
	cfg         MongoConfig
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// NewClient constructs an unconnected Mongo client.
func NewClient(cfg MongoConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the server and pings the primary within ConnectTimeout.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.URI == "" {
		return errNoMongoURI
	}
	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(c.cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}

	c.mongoClient = client
	c.collection = client.Database(c.cfg.Database).Collection(c.cfg.Collection)
	return nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	err := c.mongoClient.Disconnect(ctx)
	c.mongoClient, c.collection = nil, nil
	return err
}

// SaveRecord upserts a document record, keyed by its date.
func (c *Client) SaveRecord(ctx context.Context, rec *domain.DocumentRecord) error {
	if c.collection == nil {
		return errMongoNotConnected
	}

	filter := bson.M{"date": rec.Date}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)

	_, err := c.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// GetAllRecords fetches every stored record.
func (c *Client) GetAllRecords(ctx context.Context) ([]domain.DocumentRecord, error) {
	if c.collection == nil {
		return nil, errMongoNotConnected
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.DocumentRecord
	for cursor.Next(ctx) {
		var rec domain.DocumentRecord
		if err := cursor.Decode(&rec); err != nil {
			continue // Skip invalid documents
		}
		if rec.Date != "" {
			records = append(records, rec)
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return records, nil
}
