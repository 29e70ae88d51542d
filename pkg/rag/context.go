package rag

import (
	"rag-chatbot-be/internal/entity"

	"github.com/google/uuid"
)

// Source tags a context item so the prompt can tell prior conversation
// apart from grounding evidence.
type Source string

const (
	SourceHistory   Source = "history"
	SourceGrounding Source = "grounding"
)

type ContextItem struct {
	Source  Source
	Content string

	// History only.
	Role    entity.TurnRole
	Seq     int64
	IsError bool

	// Grounding only.
	ChunkId    uuid.UUID
	Origin     string
	Similarity float64
}

// ConversationContext is the bounded input for one generation: recent turns
// oldest first, then retrieved chunks best first.
type ConversationContext struct {
	SessionId         uuid.UUID
	OwnerId           string
	History           []ContextItem
	Grounding         []ContextItem
	RetrievalDegraded bool
}

// Sources lists the distinct chunk origins in rank order.
func (c *ConversationContext) Sources() []string {
	seen := make(map[string]bool, len(c.Grounding))
	sources := make([]string, 0, len(c.Grounding))
	for _, item := range c.Grounding {
		if item.Origin == "" || seen[item.Origin] {
			continue
		}
		seen[item.Origin] = true
		sources = append(sources, item.Origin)
	}
	return sources
}
