package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m2tx/live_bridge/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultCollection = "transcripts"

type transcriptDocument struct {
	ID        string          `bson:"_id"`
	Entries   []model.Content `bson:"entries"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// MongoTranscriptRepository implements TranscriptRepository using MongoDB.
// One document per session; entries are appended with $push.
type MongoTranscriptRepository struct {
	collection *mongo.Collection
}

// NewMongoTranscriptRepository uses DefaultCollection if collectionName is empty.
func NewMongoTranscriptRepository(db *mongo.Database, collectionName string) *MongoTranscriptRepository {
	if collectionName == "" {
		collectionName = DefaultCollection
	}
	return &MongoTranscriptRepository{
		collection: db.Collection(collectionName),
	}
}

func (r *MongoTranscriptRepository) Append(ctx context.Context, sessionID string, entries ...model.Content) error {
	if len(entries) == 0 {
		return nil
	}

	filter := bson.M{"_id": sessionID}
	update := bson.M{
		"$push": bson.M{"entries": bson.M{"$each": entries}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("repository: append to transcript %q: %w", sessionID, err)
	}

	return nil
}

func (r *MongoTranscriptRepository) Load(ctx context.Context, sessionID string) ([]model.Content, error) {
	var doc transcriptDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find transcript %q: %w", sessionID, err)
	}

	return doc.Entries, nil
}

func (r *MongoTranscriptRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("repository: delete transcript %q: %w", sessionID, err)
	}

	return nil
}
