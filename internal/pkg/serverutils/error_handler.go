package serverutils

import (
	"errors"

	"rag-chatbot-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type migrationFailureBody struct {
	SessionId uuid.UUID `json:"session_id"`
	Error     string    `json:"error"`
}

type partialMigrationBody struct {
	Migrated []uuid.UUID           `json:"migrated"`
	Failed   []migrationFailureBody `json:"failed"`
}

// StatusFor maps domain errors onto HTTP status codes.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var partial *rag.PartialMigrationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &partial):
		return fiber.StatusMultiStatus
	case errors.Is(err, rag.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, rag.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, rag.ErrGenerationFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, rag.ErrPersistenceFailed):
		return fiber.StatusInternalServerError
	}
	return fiber.StatusInternalServerError
}

// WriteError renders err in the standard envelope.
func WriteError(ctx *fiber.Ctx, err error) error {
	status := StatusFor(err)

	var partial *rag.PartialMigrationError
	if errors.As(err, &partial) {
		body := partialMigrationBody{Migrated: partial.Migrated, Failed: make([]migrationFailureBody, 0, len(partial.Failed))}
		for _, f := range partial.Failed {
			body.Failed = append(body.Failed, migrationFailureBody{SessionId: f.SessionId, Error: f.Err.Error()})
		}
		return ctx.Status(status).JSON(ErrorResponseWithData(status, err.Error(), body))
	}

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return ctx.Status(status).JSON(ErrorResponse(status, message))
}

// ErrorHandlerMiddleware turns errors returned by downstream handlers into
// JSON responses.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}
