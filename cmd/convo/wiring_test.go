package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/dto"
	"convo/internal/domain/user"
	"convo/internal/infra/config"
	ginserver "convo/internal/infra/http/gin"
	"convo/internal/infra/obs"
	"convo/internal/infra/security"
)

const testSecret = "wiring-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	fixtures := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(fixtures, []byte(`[
  {"id": "u-alice", "handle": "alice", "displayName": "Alice"},
  {"id": "u-bob", "handle": "bob", "displayName": "Bob"}
]`), 0o600))
	return config.Config{
		Env:                "test",
		StorageDriver:      config.DriverMemory,
		Broker:             config.BrokerNone,
		OutboxPollInterval: time.Second,
		IdempotencyTTL:     time.Hour,
		JWTSecret:          testSecret,
		JWTIssuer:          "convo",
		UploadMaxBytes:     1 << 20,
		UsersFixtures:      fixtures,
	}
}

func bearer(t *testing.T, id user.ID, handle string) string {
	t.Helper()
	tokens, err := security.NewTokens(testSecret, "convo", time.Hour)
	require.NoError(t, err)
	raw, err := tokens.Issue(id, handle)
	require.NoError(t, err)
	return "Bearer " + raw
}

func call(router http.Handler, method, target, body, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", auth)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestApplication_DirectMessageRoundTrip(t *testing.T) {
	logger := obs.Discard()
	app, err := buildApplication(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer app.close(logger)
	assert.Nil(t, app.consumer)

	router := ginserver.NewRouter("test", obs.Middleware{Logger: logger}, app.health, app.handlers)
	alice := bearer(t, "u-alice", "alice")
	bob := bearer(t, "u-bob", "bob")

	rec := call(router, http.MethodPost, "/api/v1/messages", `{"to":"bob","content":"hi"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent dto.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.ConversationID)

	rec = call(router, http.MethodGet, "/api/v1/conversations", "", bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list dto.ConversationList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, 1, list.Items[0].UnreadCount)
	assert.Equal(t, "Alice", list.Items[0].DisplayName)

	rec = call(router, http.MethodGet, "/api/v1/messages?conversationId="+sent.ConversationID, "", bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page dto.MessagePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hi", page.Messages[0].Content)

	rec = call(router, http.MethodGet, "/api/v1/conversations", "", bob)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Zero(t, list.Items[0].UnreadCount)
}

func TestApplication_RejectsAnonymousCallers(t *testing.T) {
	logger := obs.Discard()
	app, err := buildApplication(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	defer app.close(logger)

	router := ginserver.NewRouter("test", obs.Middleware{Logger: logger}, app.health, app.handlers)
	rec := call(router, http.MethodGet, "/api/v1/conversations", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(router, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
