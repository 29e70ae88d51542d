package implementation

import (
	"context"
	"errors"
	"slices"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/mapper"
	"rag-chatbot-be/internal/model"
	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewTurnRepository(db *gorm.DB) contract.TurnRepository {
	return &TurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

// Append locks the session row, bumps turn_count and uses the new value as
// the turn's Seq. Runs as a savepoint when the caller already holds a tx.
func (r *TurnRepositoryImpl) Append(ctx context.Context, turn *entity.Turn) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "turn_count").
			Where("id = ?", turn.SessionId).
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return contract.ErrSessionNotFound
			}
			return err
		}

		now := time.Now()
		next := session.TurnCount + 1
		if err := tx.Model(&model.Session{}).Where("id = ?", session.Id).Updates(map[string]interface{}{
			"turn_count": next,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}

		if turn.Id == uuid.Nil {
			turn.Id = uuid.New()
		}
		turn.Seq = next
		turn.CreatedAt = now

		m := r.mapper.TurnToModel(turn)
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		*turn = *r.mapper.TurnToEntity(m)
		return nil
	})
}

func (r *TurnRepositoryImpl) ListRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error) {
	var models []*model.Turn
	query := specification.ApplyAll(r.db.WithContext(ctx),
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "seq", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	// Fetched newest first so the limit keeps the tail; hand back chronological.
	slices.Reverse(models)
	return r.mapper.TurnsToEntities(models), nil
}
