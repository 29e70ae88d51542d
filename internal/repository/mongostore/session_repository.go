package mongostore

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type SessionRepository struct {
	db *mongo.Database
}

func NewSessionRepository(db *mongo.Database) contract.SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) coll() *mongo.Collection {
	return r.db.Collection(sessionsCollection)
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.Title == "" {
		session.Title = entity.DefaultSessionTitle
	}
	now := time.Now().UTC()

	doc := sessionDocument{
		Id:        session.Id.String(),
		OwnerId:   session.OwnerId,
		Title:     session.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.coll().InsertOne(ctx, doc); err != nil {
		return err
	}
	*session = *doc.toEntity()
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var doc sessionDocument
	err := r.coll().FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *SessionRepository) FindAllByOwner(ctx context.Context, ownerId string, limit int) ([]*entity.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.coll().Find(ctx, bson.M{"owner_id": ownerId}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []sessionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	sessions := make([]*entity.Session, len(docs))
	for i := range docs {
		sessions[i] = docs[i].toEntity()
	}
	return sessions, nil
}

func (r *SessionRepository) updateOne(ctx context.Context, id uuid.UUID, set bson.M) error {
	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return contract.ErrSessionNotFound
	}
	return nil
}

// Reassign is a single-document update, atomic in MongoDB.
func (r *SessionRepository) Reassign(ctx context.Context, id uuid.UUID, newOwnerId string) error {
	return r.updateOne(ctx, id, bson.M{"owner_id": newOwnerId, "updated_at": time.Now().UTC()})
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	return r.updateOne(ctx, id, bson.M{"title": title})
}

func (r *SessionRepository) ResetHistory(ctx context.Context, id uuid.UUID) error {
	err := r.updateOne(ctx, id, bson.M{
		"turn_count": 0,
		"title":      entity.DefaultSessionTitle,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.db.Collection(turnsCollection).DeleteMany(ctx, bson.M{"session_id": id.String()})
	return err
}
