package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendPromptRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Prompt    string `json:"prompt" validate:"required,max=8000"`
}

type SendPromptResponse struct {
	SessionId         uuid.UUID  `json:"session_id"`
	Reply             string     `json:"reply"`
	UserTurnId        uuid.UUID  `json:"user_turn_id"`
	AssistantTurnId   *uuid.UUID `json:"assistant_turn_id,omitempty"`
	RetrievalDegraded bool       `json:"retrieval_degraded"`
	Sources           []string   `json:"sources"`
}

type TurnResponse struct {
	Id        uuid.UUID `json:"id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error"`
	CreatedAt time.Time `json:"created_at"`
}

// Stream frame types sent over the chat websocket.
const (
	StreamFrameFragment = "fragment"
	StreamFrameDone     = "done"
	StreamFrameError    = "error"
)

type StreamFrame struct {
	Type    string              `json:"type"`
	Content string              `json:"content,omitempty"`
	Code    int                 `json:"code,omitempty"`
	Result  *SendPromptResponse `json:"result,omitempty"`
}
