package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shabbenantes/apex-affiliate-api/internal/domain/model"
	"github.com/shabbenantes/apex-affiliate-api/internal/storage"
)

const (
	dbName         = "affiliate_auth"
	collectionName = "tokens"
)

// tokenDoc is the persisted shape of a token.
type tokenDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Value     string    `bson:"value"`
	Kind      string    `bson:"kind"`
	SubjectID string    `bson:"subject_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

type Storage struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// New connects to MongoDB and ensures the unique index on token values.
// The index is load-bearing: it is what makes Insert's uniqueness check atomic.
func New(ctx context.Context, uri string) (*Storage, error) {
	const op = "storage.mongo.New"

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	coll := client.Database(dbName).Collection(collectionName)

	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "value", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "kind", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{client: client, coll: coll}, nil
}

func (s *Storage) Insert(ctx context.Context, token *model.Token) error {
	const op = "storage.mongo.Insert"

	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	_, err := s.coll.InsertOne(ctx, tokenDoc{
		ID:        token.ID,
		Email:     token.Email,
		Value:     token.Value,
		Kind:      string(token.Kind),
		SubjectID: token.SubjectID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrDuplicateToken)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) FindByValue(ctx context.Context, value string, kind model.Kind) (*model.Token, error) {
	const op = "storage.mongo.FindByValue"

	filter := bson.M{"value": value}
	if kind != model.KindAny {
		filter["kind"] = string(kind)
	}

	return s.findOne(ctx, op, filter)
}

func (s *Storage) FindByValueAndEmail(ctx context.Context, value, email string, kind model.Kind) (*model.Token, error) {
	const op = "storage.mongo.FindByValueAndEmail"

	return s.findOne(ctx, op, bson.M{
		"value": value,
		"email": email,
		"kind":  string(kind),
	})
}

func (s *Storage) findOne(ctx context.Context, op string, filter bson.M) (*model.Token, error) {
	var doc tokenDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrTokenNotExists
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &model.Token{
		ID:        doc.ID,
		Email:     doc.Email,
		Value:     doc.Value,
		Kind:      model.Kind(doc.Kind),
		SubjectID: doc.SubjectID,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *Storage) DeleteByEmailAndKind(ctx context.Context, email string, kind model.Kind) error {
	const op = "storage.mongo.DeleteByEmailAndKind"

	_, err := s.coll.DeleteMany(ctx, bson.M{"email": email, "kind": string(kind)})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DeleteByID(ctx context.Context, id string) error {
	const op = "storage.mongo.DeleteByID"

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.mongo.SweepExpired"

	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	const op = "storage.mongo.Count"

	count, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
