package mongostore

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type IdentityRepository struct {
	db *mongo.Database
}

func NewIdentityRepository(db *mongo.Database) contract.IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) coll() *mongo.Collection {
	return r.db.Collection(identitiesCollection)
}

func (r *IdentityRepository) Upsert(ctx context.Context, identity *entity.Identity) error {
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": identity.Id},
		bson.M{"$setOnInsert": bson.M{"kind": string(identity.Kind), "created_at": createdAt}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

func (r *IdentityRepository) FindById(ctx context.Context, id string) (*entity.Identity, error) {
	var doc identityDocument
	err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity(), nil
}

func (r *IdentityRepository) Link(ctx context.Context, anonymousId, registeredId string) error {
	_, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": anonymousId},
		bson.M{
			"$set":         bson.M{"linked_to": registeredId},
			"$setOnInsert": bson.M{"kind": string(entity.IdentityAnonymous), "created_at": time.Now().UTC()},
		},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}
