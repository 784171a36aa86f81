package repository

import (
	"context"
	"time"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements a MongoDB-backed repository for case records.
// Records are stored with the idempotency key in the "id" field; the unique
// index makes duplicate creates fail fast so the service can fall back to the
// existing record.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idIdx := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	remoteIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "remoteId", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(
			bson.M{"remoteId": bson.M{"$type": "string"}},
		),
	}
	col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{idIdx, remoteIdx})
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := m.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"id": id}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) GetByRemoteID(ctx context.Context, remoteID string) (*document.Document, error) {
	var d document.Document
	err := m.col.FindOne(ctx, bson.M{"remoteId": remoteID}).Decode(&d)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) Update(ctx context.Context, doc *document.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	res, err := m.col.ReplaceOne(ctx, bson.M{"id": doc.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) ListUnfinished(ctx context.Context) ([]*document.Document, error) {
	filter := bson.M{
		"remoteId": bson.M{"$type": "string"},
		"status":   bson.M{"$in": []document.Status{document.StatusSent, document.StatusInProgress}},
	}
	cur, err := m.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}
