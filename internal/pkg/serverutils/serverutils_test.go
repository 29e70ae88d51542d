package serverutils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rag-chatbot-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid request", err: fmt.Errorf("%w: prompt is required", rag.ErrInvalidRequest), want: 400},
		{name: "session not found", err: fmt.Errorf("lookup: %w", rag.ErrSessionNotFound), want: 404},
		{name: "generation failed", err: fmt.Errorf("%w: timeout", rag.ErrGenerationFailed), want: 502},
		{name: "persistence failed", err: fmt.Errorf("%w: append", rag.ErrPersistenceFailed), want: 500},
		{name: "partial migration", err: &rag.PartialMigrationError{}, want: 207},
		{name: "fiber error", err: fiber.NewError(fiber.StatusUnauthorized, "nope"), want: 401},
		{name: "unknown", err: errors.New("boom"), want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestErrorHandlerMiddleware_Envelope(t *testing.T) {
	sessionId := uuid.New()
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return fmt.Errorf("lookup: %w", rag.ErrSessionNotFound)
	})
	app.Get("/partial", func(ctx *fiber.Ctx) error {
		return &rag.PartialMigrationError{
			Migrated: []uuid.UUID{uuid.New()},
			Failed:   []rag.MigrationFailure{{SessionId: sessionId, Err: errors.New("locked")}},
		}
	})
	app.Get("/internal", func(ctx *fiber.Ctx) error {
		return errors.New("dsn leaked here")
	})

	t.Run("not found", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
		require.NoError(t, err)
		assert.Equal(t, 404, resp.StatusCode)

		var body BaseResponse[any]
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, 404, body.Code)
	})

	t.Run("partial migration carries ids", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/partial", nil))
		require.NoError(t, err)
		assert.Equal(t, 207, resp.StatusCode)

		var body BaseResponse[partialMigrationBody]
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Len(t, body.Data.Migrated, 1)
		require.Len(t, body.Data.Failed, 1)
		assert.Equal(t, sessionId, body.Data.Failed[0].SessionId)
		assert.Equal(t, "locked", body.Data.Failed[0].Error)
	})

	t.Run("internal errors are not echoed", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal", nil))
		require.NoError(t, err)

		var body BaseResponse[any]
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "internal server error", body.Message)
	})
}

type sampleRequest struct {
	SessionId string `json:"session_id" validate:"required,uuid"`
	Kind      string `json:"kind" validate:"required,oneof=anonymous registered"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{SessionId: uuid.NewString(), Kind: "anonymous"}))

	err := ValidateRequest(sampleRequest{Kind: "guest"})
	require.Error(t, err)
	assert.Equal(t, 400, StatusFor(err))
	assert.Contains(t, err.Error(), "sessionid is required")
	assert.Contains(t, err.Error(), "kind must be one of [anonymous registered]")
}

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/secure", JwtMiddleware("s3cret"), func(ctx *fiber.Ctx) error {
		return ctx.SendString(fmt.Sprint(ctx.Locals("user_id")))
	})

	valid := signedToken(t, "s3cret", jwt.MapClaims{"user_id": "reg_7", "exp": time.Now().Add(time.Hour).Unix()})
	forged := signedToken(t, "other", jwt.MapClaims{"user_id": "reg_7"})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{name: "missing", want: 401},
		{name: "wrong secret", header: "Bearer " + forged, want: 401},
		{name: "header", header: "Bearer " + valid, want: 200},
		{name: "query param", query: "?token=" + valid, want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

// emptyKeyToken is an HS256 token signed with a zero-length key, built by hand
// so the signing library's own key checks do not interfere.
func emptyKeyToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	signingInput := header + "." + enc.EncodeToString(payload)

	mac := hmac.New(sha256.New, []byte{})
	mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestParseToken_EmptySecretRejectsEverything(t *testing.T) {
	token := emptyKeyToken(t, map[string]interface{}{"user_id": "attacker"})

	_, err := ParseToken(token, "")
	assert.ErrorIs(t, err, ErrSigningKeyMissing)

	_, err = ParseToken(token, "s3cret")
	assert.Error(t, err)
}

func TestJwtMiddleware_EmptySecret(t *testing.T) {
	app := fiber.New()
	app.Post("/link", JwtMiddleware(""), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/link", nil)
	req.Header.Set("Authorization", "Bearer "+emptyKeyToken(t, map[string]interface{}{"user_id": "attacker"}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
