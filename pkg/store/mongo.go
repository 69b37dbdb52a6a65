package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds the connection settings for a MongoStore.
type MongoConfig struct {
	// URI is the MongoDB connection string.
	URI string
	// Database is the database name.
	Database string
	// Collection is the collection holding one record per document.
	Collection string
	// ConnectTimeout bounds the initial connect and ping.
	ConnectTimeout time.Duration
}

// DefaultMongoConfig returns the settings for a local MongoDB instance.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "leyesmx",
		Collection:     "documents",
		ConnectTimeout: 10 * time.Second,
	}
}

// MongoStore persists documents in a single MongoDB collection with the
// document ID as _id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// OpenMongoStore connects, pings, and prepares the collection index.
func OpenMongoStore(ctx context.Context, config MongoConfig) (*MongoStore, error) {
	if config.URI == "" {
		config = DefaultMongoConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultMongoConfig().ConnectTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	}
	if _, err := collection.Indexes().CreateOne(connectCtx, indexModel); err != nil {
		return nil, fmt.Errorf("failed to create status index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Save upserts a document by its _id.
func (mongoStore *MongoStore) Save(ctx context.Context, document *Document) error {
	if document == nil || document.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": document.ID}

	if _, err := mongoStore.collection.ReplaceOne(ctx, filter, document, opts); err != nil {
		return fmt.Errorf("failed to save document %s: %w", document.ID, err)
	}
	return nil
}

// Get loads one document by ID.
func (mongoStore *MongoStore) Get(ctx context.Context, documentID string) (*Document, error) {
	var document Document
	err := mongoStore.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&document)
	if err == mongo.ErrNoDocuments {
		return nil, &ErrNotFound{ID: documentID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	return &document, nil
}

// List returns all stored documents, sorted by ID.
func (mongoStore *MongoStore) List(ctx context.Context) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := mongoStore.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer cursor.Close(ctx)

	var documents []*Document
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return documents, nil
}

// Close disconnects from MongoDB.
func (mongoStore *MongoStore) Close(ctx context.Context) error {
	return mongoStore.client.Disconnect(ctx)
}
