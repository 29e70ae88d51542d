package implementation

import (
	"context"
	"errors"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/mapper"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type IdentityRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewIdentityRepository(db *gorm.DB) contract.IdentityRepository {
	return &IdentityRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *IdentityRepositoryImpl) Upsert(ctx context.Context, identity *entity.Identity) error {
	m := r.mapper.IdentityToModel(identity)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(m).Error
}

func (r *IdentityRepositoryImpl) FindById(ctx context.Context, id string) (*entity.Identity, error) {
	var m model.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.IdentityToEntity(&m), nil
}

func (r *IdentityRepositoryImpl) Link(ctx context.Context, anonymousId, registeredId string) error {
	return r.db.WithContext(ctx).
		Model(&model.Identity{}).
		Where("id = ?", anonymousId).
		Update("linked_to", registeredId).Error
}
