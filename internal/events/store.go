package events

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event is the persisted record of a webhook delivery from the signing
// service. Kept for audit and for detecting re-deliveries of the same event.
type Event struct {
	EventID          string    `bson:"eventId" json:"eventId"`
	Type             string    `bson:"type" json:"type"`
	RemoteDocumentID string    `bson:"remoteDocumentId" json:"remoteDocumentId"`
	ParticipantID    string    `bson:"participantId,omitempty" json:"participantId,omitempty"`
	ConsentToken     string    `bson:"consentToken,omitempty" json:"consentToken,omitempty"`
	OccurredAt       time.Time `bson:"occurredAt" json:"occurredAt"`
	ReceivedAt       time.Time `bson:"receivedAt" json:"receivedAt"`
}

// Store persists webhook events in MongoDB with a unique index on eventId.
type Store struct {
	col *mongo.Collection
}

func NewStore(col *mongo.Collection) *Store {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)}
	col.Indexes().CreateOne(context.Background(), idx)
	return &Store{col: col}
}

// Processed reports whether an event with this ID was already recorded.
func (s *Store) Processed(ctx context.Context, eventID string) (bool, error) {
	err := s.col.FindOne(ctx, bson.M{"eventId": eventID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed records the event and reports whether this delivery was the
// first one. A duplicate eventId means the event was already applied; callers
// treat that as a no-op replay.
func (s *Store) MarkProcessed(ctx context.Context, ev *Event) (bool, error) {
	ev.ReceivedAt = time.Now().UTC()
	_, err := s.col.InsertOne(ctx, ev)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Recent returns the latest events for audit display, newest first.
func (s *Store) Recent(ctx context.Context, limit int64) ([]*Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "receivedAt", Value: -1}}).SetLimit(limit)
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Event{}
	for cur.Next(ctx) {
		var ev Event
		if err := cur.Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, cur.Err()
}
