package prompt

import (
	"fmt"
	"strings"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag"
)

const DefaultSystemPrompt = `You are a helpful assistant answering questions in an ongoing conversation.
Use the reference material when it is relevant and say so when it does not cover the question.
When the reference material and the conversation disagree, prefer what the user said most recently.`

// Builder lays out the model input in a fixed order: system guidance,
// grounding evidence, prior turns oldest first, then the new prompt.
type Builder struct {
	systemPrompt string
}

func NewBuilder(systemPrompt string) *Builder {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Builder{systemPrompt: systemPrompt}
}

func (b *Builder) Build(cc *rag.ConversationContext, query string) []llm.Message {
	messages := make([]llm.Message, 0, len(cc.History)+3)

	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.systemPrompt})
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: writeReferenceMaterial(cc)})

	for _, item := range cc.History {
		// A failed generation left only a placeholder; the model never said it.
		if item.IsError {
			continue
		}
		role := llm.RoleUser
		if item.Role == entity.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: item.Content})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

func writeReferenceMaterial(cc *rag.ConversationContext) string {
	var prompt strings.Builder

	prompt.WriteString("<reference_material>\n")
	if len(cc.Grounding) == 0 {
		prompt.WriteString("No reference material was retrieved for this question. Answer from the conversation.\n")
	}
	for i, item := range cc.Grounding {
		origin := item.Origin
		if origin == "" {
			origin = "unknown"
		}
		prompt.WriteString(fmt.Sprintf("--- [%d] source: %s ---\n", i+1, origin))
		prompt.WriteString(item.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</reference_material>")

	return prompt.String()
}
