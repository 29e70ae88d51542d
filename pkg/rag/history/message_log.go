package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"

	"github.com/google/uuid"
)

const module = "MESSAGE_LOG"

// MessageLog is the append-only, session-partitioned turn store.
type MessageLog struct {
	uowFactory    unitofwork.RepositoryFactory
	titleMaxRunes int
	logger        logger.ILogger
}

func NewMessageLog(uowFactory unitofwork.RepositoryFactory, titleMaxRunes int, logger logger.ILogger) *MessageLog {
	if titleMaxRunes <= 0 {
		titleMaxRunes = 48
	}
	return &MessageLog{
		uowFactory:    uowFactory,
		titleMaxRunes: titleMaxRunes,
		logger:        logger,
	}
}

func persistenceError(op string, err error) error {
	if errors.Is(err, rag.ErrSessionNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", rag.ErrPersistenceFailed, op, err)
}

// Lookup returns the session or ErrSessionNotFound.
func (l *MessageLog) Lookup(ctx context.Context, sessionId uuid.UUID) (*entity.Session, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.SessionRepository().FindById(ctx, sessionId)
	if err != nil {
		return nil, persistenceError("find session", err)
	}
	if session == nil {
		return nil, rag.ErrSessionNotFound
	}
	return session, nil
}

func (l *MessageLog) Append(ctx context.Context, sessionId uuid.UUID, role entity.TurnRole, content string) (*entity.Turn, error) {
	return l.append(ctx, &entity.Turn{SessionId: sessionId, Role: role, Content: content})
}

// AppendErrorReply records the assistant sentinel written when generation fails.
func (l *MessageLog) AppendErrorReply(ctx context.Context, sessionId uuid.UUID, content string) (*entity.Turn, error) {
	return l.append(ctx, &entity.Turn{
		SessionId: sessionId,
		Role:      entity.RoleAssistant,
		Content:   content,
		IsError:   true,
	})
}

func (l *MessageLog) append(ctx context.Context, turn *entity.Turn) (*entity.Turn, error) {
	uow := l.uowFactory.NewUnitOfWork(ctx)

	if err := uow.TurnRepository().Append(ctx, turn); err != nil {
		return nil, persistenceError("append turn", err)
	}

	l.logger.Debug(module, "Turn appended", map[string]interface{}{
		"session_id": turn.SessionId.String(),
		"seq":        turn.Seq,
		"role":       string(turn.Role),
		"is_error":   turn.IsError,
	})
	return turn, nil
}

// ListRecent returns at most limit turns, oldest first.
func (l *MessageLog) ListRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error) {
	if _, err := l.Lookup(ctx, sessionId); err != nil {
		return nil, err
	}

	uow := l.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.TurnRepository().ListRecent(ctx, sessionId, limit)
	if err != nil {
		return nil, persistenceError("list turns", err)
	}
	return turns, nil
}

// Reassign moves the session to newOwnerId. Turns are not touched.
func (l *MessageLog) Reassign(ctx context.Context, sessionId uuid.UUID, newOwnerId string) error {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().Reassign(ctx, sessionId, newOwnerId); err != nil {
		return persistenceError("reassign session", err)
	}
	return nil
}

// Reset clears a session's turns. Only the single-session anonymous policy calls it.
func (l *MessageLog) Reset(ctx context.Context, sessionId uuid.UUID) error {
	uow := l.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().ResetHistory(ctx, sessionId); err != nil {
		return persistenceError("reset history", err)
	}
	return nil
}

// SetTitleFromPrompt names the session after its first prompt.
func (l *MessageLog) SetTitleFromPrompt(ctx context.Context, sessionId uuid.UUID, prompt string) error {
	title := TitleFromPrompt(prompt, l.titleMaxRunes)
	if title == "" {
		return nil
	}

	uow := l.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().UpdateTitle(ctx, sessionId, title); err != nil {
		return persistenceError("update title", err)
	}
	return nil
}

// TitleFromPrompt collapses whitespace and cuts the prompt to maxRunes runes.
func TitleFromPrompt(prompt string, maxRunes int) string {
	title := strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(title) <= maxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
