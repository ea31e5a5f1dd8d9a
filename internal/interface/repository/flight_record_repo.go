package repository

import (
	"context"
	"fmt"

	"flightboard-service/internal/domain/entity"
	"flightboard-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const historyCollection = "flight_updates"

// MongoFlightHistoryRepository implements FlightHistoryRepository
type MongoFlightHistoryRepository struct {
	collection *mongo.Collection
}

// NewMongoFlightHistoryRepository creates a new flight history repository
func NewMongoFlightHistoryRepository(ctx context.Context, db *mongo.Database) (repository.FlightHistoryRepository, error) {
	collection := db.Collection(historyCollection)

	// event ids are ULIDs, unique per publish
	eventIndex := mongo.IndexModel{
		Keys:    bson.M{"eventId": 1},
		Options: options.Index().SetUnique(true),
	}

	// newest first per flight
	flightIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "flight.flightNumber", Value: 1},
			{Key: "publishedAt", Value: -1},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{eventIndex, flightIndex}); err != nil {
		return nil, fmt.Errorf("create history indexes: %w", err)
	}

	return &MongoFlightHistoryRepository{
		collection: collection,
	}, nil
}

// Append stores one published update
func (r *MongoFlightHistoryRepository) Append(ctx context.Context, event entity.FlightUpdated) error {
	_, err := r.collection.InsertOne(ctx, event)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindByFlightNumber returns the latest updates for a flight, newest first
func (r *MongoFlightHistoryRepository) FindByFlightNumber(ctx context.Context, flightNumber string, limit int64) ([]entity.FlightUpdated, error) {
	opts := options.Find().SetSort(bson.D{{Key: "publishedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"flight.flightNumber": flightNumber}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []entity.FlightUpdated{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
