package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/lock"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "PIPELINE"

// State is the position of one request in the turn lifecycle.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateContextBuilt State = "CONTEXT_BUILT"
	StateGenerating   State = "GENERATING"
	StatePersisted    State = "PERSISTED"
	StateReturned     State = "RETURNED"
	StateErrored      State = "ERRORED"
)

const DefaultErrorReply = "[generation failed]"

type ContextAssembler interface {
	Assemble(ctx context.Context, sessionId uuid.UUID, prompt string) (*rag.ConversationContext, error)
}

type Responder interface {
	Respond(ctx context.Context, cc *rag.ConversationContext, prompt string) (string, error)
	Stream(ctx context.Context, cc *rag.ConversationContext, prompt string, onFragment llm.FragmentHandler) (string, error)
}

// TurnResult describes one request. On generation failure it is returned
// together with the error so callers can see which turns were recorded.
type TurnResult struct {
	SessionId         uuid.UUID
	OwnerId           string
	Reply             string
	UserTurn          *entity.Turn
	AssistantTurn     *entity.Turn
	RetrievalDegraded bool
	Sources           []string
	State             State
}

// ChatPipeline runs assemble, generate and persist for one session at a time.
type ChatPipeline struct {
	assembler  ContextAssembler
	responder  Responder
	log        *history.MessageLog
	locker     lock.Locker
	pool       *ants.Pool
	emitter    *events.Emitter
	errorReply string
	logger     logger.ILogger
	tracer     trace.Tracer
}

func NewChatPipeline(
	assembler ContextAssembler,
	responder Responder,
	log *history.MessageLog,
	locker lock.Locker,
	pool *ants.Pool,
	emitter *events.Emitter,
	errorReply string,
	logger logger.ILogger,
) *ChatPipeline {
	if errorReply == "" {
		errorReply = DefaultErrorReply
	}
	return &ChatPipeline{
		assembler:  assembler,
		responder:  responder,
		log:        log,
		locker:     locker,
		pool:       pool,
		emitter:    emitter,
		errorReply: errorReply,
		logger:     logger,
		tracer:     otel.Tracer("rag-chatbot-be/pkg/rag/executor"),
	}
}

// HandleTurn answers prompt within the session and records both turns.
func (p *ChatPipeline) HandleTurn(ctx context.Context, sessionId string, prompt string) (*TurnResult, error) {
	return p.run(ctx, sessionId, prompt, nil)
}

// HandleTurnStream is HandleTurn with fragments forwarded while the model
// generates. onFragment is never called after HandleTurnStream returns.
func (p *ChatPipeline) HandleTurnStream(ctx context.Context, sessionId string, prompt string, onFragment llm.FragmentHandler) (*TurnResult, error) {
	if onFragment == nil {
		return nil, fmt.Errorf("%w: fragment handler is required", rag.ErrInvalidRequest)
	}
	return p.run(ctx, sessionId, prompt, onFragment)
}

// parseRequest treats session ids as opaque: one that is not a stored id,
// including one that does not parse, is an unknown session.
func parseRequest(rawSessionId, prompt string) (uuid.UUID, error) {
	rawSessionId = strings.TrimSpace(rawSessionId)
	if rawSessionId == "" {
		return uuid.Nil, fmt.Errorf("%w: session id is required", rag.ErrInvalidRequest)
	}
	if strings.TrimSpace(prompt) == "" {
		return uuid.Nil, fmt.Errorf("%w: prompt is required", rag.ErrInvalidRequest)
	}
	sessionId, err := uuid.Parse(rawSessionId)
	if err != nil {
		return uuid.Nil, rag.ErrSessionNotFound
	}
	return sessionId, nil
}

func (p *ChatPipeline) transition(span trace.Span, result *TurnResult, state State) {
	result.State = state
	span.AddEvent(string(state))
	p.logger.Debug(module, "State transition", map[string]interface{}{
		"session_id": result.SessionId.String(),
		"state":      string(state),
	})
}

func (p *ChatPipeline) fail(span trace.Span, result *TurnResult, err error) (*TurnResult, error) {
	result.State = StateErrored
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return result, err
}

type tailOutcome struct {
	reply     string
	assistant *entity.Turn
	err       error
}

func (p *ChatPipeline) run(ctx context.Context, rawSessionId, prompt string, onFragment llm.FragmentHandler) (*TurnResult, error) {
	ctx, span := p.tracer.Start(ctx, "chat.handle_turn")
	defer span.End()

	result := &TurnResult{State: StateReceived}

	sessionId, err := parseRequest(rawSessionId, prompt)
	if err != nil {
		return p.fail(span, result, err)
	}
	result.SessionId = sessionId
	span.SetAttributes(attribute.String("chat.session_id", sessionId.String()))

	unlock, err := p.locker.Lock(ctx, lock.SessionKey(sessionId))
	if err != nil {
		return p.fail(span, result, err)
	}

	cc, err := p.assembler.Assemble(ctx, sessionId, prompt)
	if err != nil {
		unlock()
		return p.fail(span, result, err)
	}
	result.OwnerId = cc.OwnerId
	result.RetrievalDegraded = cc.RetrievalDegraded
	result.Sources = cc.Sources()
	span.SetAttributes(
		attribute.Int("chat.history_turns", len(cc.History)),
		attribute.Int("chat.grounding_chunks", len(cc.Grounding)),
		attribute.Bool("chat.retrieval_degraded", cc.RetrievalDegraded),
	)
	p.transition(span, result, StateContextBuilt)

	// Nothing has been written yet, so a gone caller leaves no trace.
	if err := ctx.Err(); err != nil {
		unlock()
		return p.fail(span, result, err)
	}

	userTurn, err := p.log.Append(ctx, sessionId, entity.RoleUser, prompt)
	if err != nil {
		unlock()
		return p.fail(span, result, err)
	}
	result.UserTurn = userTurn
	p.transition(span, result, StateGenerating)

	// From here the assistant turn must land even if the caller disconnects,
	// so the rest runs detached from ctx on the worker pool.
	relay := newFragmentRelay(onFragment)
	done := make(chan tailOutcome, 1)
	tailCtx := context.WithoutCancel(ctx)
	task := func() {
		defer unlock()
		done <- p.complete(tailCtx, cc, userTurn, prompt, relay)
	}
	if p.pool == nil {
		go task()
	} else if err := p.pool.Submit(task); err != nil {
		p.logger.Warn(module, "Worker pool unavailable, completing turn on a new goroutine", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		go task()
	}

	select {
	case out := <-done:
		relay.close()
		result.AssistantTurn = out.assistant
		if out.err != nil {
			return p.fail(span, result, out.err)
		}
		result.Reply = out.reply
		p.transition(span, result, StatePersisted)
		p.transition(span, result, StateReturned)
		return result, nil
	case <-ctx.Done():
		relay.close()
		p.logger.Warn(module, "Caller left before reply, turn will complete in background", map[string]interface{}{
			"session_id": sessionId.String(),
			"user_seq":   userTurn.Seq,
		})
		return p.fail(span, result, ctx.Err())
	}
}

// complete generates the reply and appends the assistant turn. On generation
// failure the error sentinel is appended instead.
func (p *ChatPipeline) complete(ctx context.Context, cc *rag.ConversationContext, userTurn *entity.Turn, prompt string, relay *fragmentRelay) tailOutcome {
	var (
		reply  string
		genErr error
	)
	if relay.enabled() {
		reply, genErr = p.responder.Stream(ctx, cc, prompt, relay.send)
	} else {
		reply, genErr = p.responder.Respond(ctx, cc, prompt)
	}

	if genErr != nil {
		turn, err := p.log.AppendErrorReply(ctx, cc.SessionId, p.errorReply)
		if err != nil {
			p.logger.Error(module, "Failed to record error reply", map[string]interface{}{
				"session_id": cc.SessionId.String(),
				"error":      err.Error(),
			})
			return tailOutcome{err: errors.Join(genErr, err)}
		}
		p.emitter.Emit(ctx, events.TypeGenerationFailed, map[string]interface{}{
			"session_id": cc.SessionId.String(),
			"user_seq":   userTurn.Seq,
			"error":      genErr.Error(),
		})
		return tailOutcome{assistant: turn, err: genErr}
	}

	turn, err := p.log.Append(ctx, cc.SessionId, entity.RoleAssistant, reply)
	if err != nil {
		p.logger.Error(module, "Failed to record assistant turn", map[string]interface{}{
			"session_id": cc.SessionId.String(),
			"error":      err.Error(),
		})
		return tailOutcome{err: err}
	}

	if userTurn.Seq == 1 {
		if err := p.log.SetTitleFromPrompt(ctx, cc.SessionId, prompt); err != nil {
			p.logger.Warn(module, "Failed to set session title", map[string]interface{}{
				"session_id": cc.SessionId.String(),
				"error":      err.Error(),
			})
		}
	}

	p.emitter.Emit(ctx, events.TypeTurnRecorded, map[string]interface{}{
		"session_id":         cc.SessionId.String(),
		"owner_id":           cc.OwnerId,
		"user_seq":           userTurn.Seq,
		"assistant_seq":      turn.Seq,
		"grounding_chunks":   len(cc.Grounding),
		"retrieval_degraded": cc.RetrievalDegraded,
	})
	return tailOutcome{reply: reply, assistant: turn}
}

// fragmentRelay forwards fragments to the caller while it is still waiting.
// Delivery failures and late fragments are dropped so generation continues.
type fragmentRelay struct {
	mu     sync.Mutex
	fn     llm.FragmentHandler
	closed bool
}

func newFragmentRelay(fn llm.FragmentHandler) *fragmentRelay {
	return &fragmentRelay{fn: fn}
}

func (r *fragmentRelay) enabled() bool {
	return r.fn != nil
}

func (r *fragmentRelay) send(fragment string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if err := r.fn(fragment); err != nil {
		r.closed = true
	}
	return nil
}

func (r *fragmentRelay) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
