package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/serverutils"
	"rag-chatbot-be/internal/service"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag/assembler"
	"rag-chatbot-be/pkg/rag/executor"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/lock"
	"rag-chatbot-be/pkg/rag/prompt"
	"rag-chatbot-be/pkg/rag/ragtest"
	"rag-chatbot-be/pkg/rag/response"
	"rag-chatbot-be/pkg/rag/search"
	"rag-chatbot-be/pkg/rag/session"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *ragtest.LLM) {
	t.Helper()

	f := ragtest.NewFixture()
	log := history.NewMessageLog(f.Factory, 48, f.Logger)
	retriever := search.NewRetriever(ragtest.NewEmbedder(nil), f.Chunks, search.DefaultConfig(), f.Logger)
	fake := ragtest.NewLLM()
	responder := response.NewResponder(ragtest.StreamingLLM{LLM: fake}, prompt.NewBuilder(""), response.Config{Timeout: time.Second}, f.Logger)
	locker := lock.NewLocalLocker()

	pipeline := executor.NewChatPipeline(assembler.NewAssembler(log, retriever, 20, f.Logger), responder, log, locker, nil, nil, "", f.Logger)
	manager := session.NewOwnershipManager(f.Factory, log, locker, session.Config{}, nil, f.Logger)

	chatService := service.NewChatService(pipeline, log)
	sessionService := service.NewSessionService(manager)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewHealthController(map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	}).RegisterRoutes(app)

	api := app.Group("/api")
	NewChatController(chatService, f.Logger).RegisterRoutes(api)
	NewSessionController(sessionService).RegisterRoutes(api)
	NewIdentityController(sessionService, testSecret).RegisterRoutes(api)

	return app, fake
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func createSession(t *testing.T, app *fiber.App, ownerId, kind string) uuid.UUID {
	t.Helper()

	status, raw := doJSON(t, app, http.MethodPost, "/api/session/v1", dto.CreateSessionRequest{OwnerId: ownerId, OwnerKind: kind}, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))

	var res serverutils.BaseResponse[dto.CreateSessionResponse]
	require.NoError(t, json.Unmarshal(raw, &res))
	return res.Data.SessionId
}

func bearer(t *testing.T, userId string) map[string]string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userId}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestChatController_PromptThenTranscript(t *testing.T) {
	app, _ := newTestApp(t)
	sessionId := createSession(t, app, "anon-1", "anonymous")

	status, raw := doJSON(t, app, http.MethodPost, "/api/chat/v1/prompt", dto.SendPromptRequest{SessionId: sessionId.String(), Prompt: "Hello"}, nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	var res serverutils.BaseResponse[dto.SendPromptResponse]
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.True(t, res.Success)
	assert.Equal(t, "reply to: Hello", res.Data.Reply)
	assert.False(t, res.Data.RetrievalDegraded)

	status, raw = doJSON(t, app, http.MethodGet, "/api/chat/v1/sessions/"+sessionId.String()+"/turns?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var turns serverutils.BaseResponse[[]dto.TurnResponse]
	require.NoError(t, json.Unmarshal(raw, &turns))
	require.Len(t, turns.Data, 2)
	assert.Equal(t, res.Data.UserTurnId, turns.Data[0].Id)
}

func TestChatController_ErrorStatuses(t *testing.T) {
	app, fake := newTestApp(t)
	sessionId := createSession(t, app, "anon-1", "anonymous")

	tests := []struct {
		name  string
		body  interface{}
		setup func()
		want  int
	}{
		{name: "missing prompt", body: dto.SendPromptRequest{SessionId: sessionId.String()}, want: 400},
		{name: "malformed session", body: dto.SendPromptRequest{SessionId: "abc", Prompt: "hi"}, want: 404},
		{name: "unknown session", body: dto.SendPromptRequest{SessionId: uuid.NewString(), Prompt: "hi"}, want: 404},
		{
			name: "generation failed",
			body: dto.SendPromptRequest{SessionId: sessionId.String(), Prompt: "hi"},
			setup: func() {
				fake.ReplyFunc = func([]llm.Message) (string, error) { return "", errors.New("down") }
			},
			want: 502,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			status, raw := doJSON(t, app, http.MethodPost, "/api/chat/v1/prompt", tt.body, nil)
			assert.Equal(t, tt.want, status, string(raw))
		})
	}
}

func TestSessionController_CreateAndList(t *testing.T) {
	app, _ := newTestApp(t)
	first := createSession(t, app, "reg-1", "registered")
	second := createSession(t, app, "reg-1", "registered")

	status, raw := doJSON(t, app, http.MethodGet, "/api/session/v1?owner_id=reg-1", nil, nil)
	require.Equal(t, http.StatusOK, status)

	var res serverutils.BaseResponse[[]dto.SessionResponse]
	require.NoError(t, json.Unmarshal(raw, &res))
	ids := []uuid.UUID{}
	for _, s := range res.Data {
		ids = append(ids, s.Id)
	}
	assert.ElementsMatch(t, []uuid.UUID{first, second}, ids)

	status, _ = doJSON(t, app, http.MethodPost, "/api/session/v1", dto.CreateSessionRequest{OwnerId: "x", OwnerKind: "guest"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIdentityController_Link(t *testing.T) {
	app, _ := newTestApp(t)
	sessionId := createSession(t, app, "anon_1", "anonymous")
	body := dto.LinkIdentityRequest{AnonymousId: "anon_1", RegisteredId: "reg_7"}

	status, _ := doJSON(t, app, http.MethodPost, "/api/identity/v1/link", body, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw := doJSON(t, app, http.MethodPost, "/api/identity/v1/link", body, bearer(t, "reg_7"))
	require.Equal(t, http.StatusOK, status, string(raw))

	var res serverutils.BaseResponse[dto.LinkIdentityResponse]
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, []uuid.UUID{sessionId}, res.Data.Migrated)

	status, _ = doJSON(t, app, http.MethodPost, "/api/identity/v1/link", dto.LinkIdentityRequest{AnonymousId: "same", RegisteredId: "same"}, bearer(t, "reg_7"))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthController(t *testing.T) {
	app, _ := newTestApp(t)

	status, raw := doJSON(t, app, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"store":"ok"`)

	degraded := fiber.New()
	NewHealthController(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}).RegisterRoutes(degraded)
	status, _ = doJSON(t, degraded, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestChatController_StreamRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/api/chat/v1/stream", nil, nil)
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestChatController_StreamOverWebsocket(t *testing.T) {
	app, _ := newTestApp(t)
	sessionId := createSession(t, app, "anon-1", "anonymous")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/chat/v1/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dto.SendPromptRequest{SessionId: sessionId.String(), Prompt: "Hello there"}))

	var fragments []string
	var done dto.StreamFrame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var frame dto.StreamFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == dto.StreamFrameFragment {
			fragments = append(fragments, frame.Content)
			continue
		}
		done = frame
		break
	}

	assert.Equal(t, dto.StreamFrameDone, done.Type)
	assert.Equal(t, "reply to: Hello there", strings.Join(fragments, ""))
	require.NotNil(t, done.Result)
	assert.Equal(t, done.Content, done.Result.Reply)

	require.NoError(t, conn.WriteJSON(dto.SendPromptRequest{SessionId: uuid.NewString(), Prompt: "hi"}))
	var frame dto.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, dto.StreamFrameError, frame.Type)
	assert.Equal(t, http.StatusNotFound, frame.Code)
}
