package mongostore

import (
	"context"
	"slices"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type TurnRepository struct {
	db *mongo.Database
}

func NewTurnRepository(db *mongo.Database) contract.TurnRepository {
	return &TurnRepository{db: db}
}

// Append reserves the next Seq with an atomic $inc on the session document,
// then inserts the turn. A failed insert leaves a gap in Seq, never a reorder.
func (r *TurnRepository) Append(ctx context.Context, turn *entity.Turn) error {
	now := time.Now().UTC()

	var session sessionDocument
	err := r.db.Collection(sessionsCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": turn.SessionId.String()},
		bson.M{
			"$inc": bson.M{"turn_count": 1},
			"$set": bson.M{"updated_at": now},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return contract.ErrSessionNotFound
	}
	if err != nil {
		return err
	}

	if turn.Id == uuid.Nil {
		turn.Id = uuid.New()
	}
	turn.Seq = session.TurnCount
	turn.CreatedAt = now

	doc := turnDocument{
		Id:        turn.Id.String(),
		SessionId: turn.SessionId.String(),
		Seq:       turn.Seq,
		Role:      string(turn.Role),
		Content:   turn.Content,
		IsError:   turn.IsError,
		CreatedAt: now,
	}
	_, err = r.db.Collection(turnsCollection).InsertOne(ctx, doc)
	return err
}

func (r *TurnRepository) ListRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.db.Collection(turnsCollection).Find(ctx, bson.M{"session_id": sessionId.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []turnDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	slices.Reverse(docs)

	turns := make([]*entity.Turn, len(docs))
	for i := range docs {
		turns[i] = docs[i].toEntity()
	}
	return turns, nil
}
