package chatsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/dto"
	"convo/internal/domain/shared/fault"
)

func TestClientListMessages_SendsCursorAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer alice-token", r.Header.Get("Authorization"))
		assert.Equal(t, "c-1", r.URL.Query().Get("conversationId"))
		assert.Equal(t, dto.FormatCursor(base), r.URL.Query().Get("cursor"))
		assert.Empty(t, r.URL.Query().Get("to"))
		_ = json.NewEncoder(w).Encode(dto.MessagePage{ConversationID: "c-1", Messages: []dto.Message{msg("m1", 1)}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "alice-token")
	page, err := c.ListMessages(context.Background(), Target{ConversationID: "c-1"}, base)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "m1", page.Messages[0].ID)
}

func TestClientSendMessage_PassesIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tmp-1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"to": "bob", "content": "hi"}, body)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.SendResult{ID: "m1", ConversationID: "c-1", CreatedAt: base})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "t").SendMessage(context.Background(), SendRequest{To: "bob", Content: "hi"}, "tmp-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", res.ID)
}

func TestClient_MapsStatusesToFaults(t *testing.T) {
	cases := []struct {
		status int
		kind   fault.Kind
	}{
		{http.StatusUnauthorized, fault.Unauthorized},
		{http.StatusForbidden, fault.Forbidden},
		{http.StatusNotFound, fault.NotFound},
		{http.StatusBadRequest, fault.InvalidRequest},
		{http.StatusConflict, fault.Conflict},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"not a participant"}`))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "t").Leave(context.Background(), "c-1")
			require.Error(t, err)
			assert.Equal(t, tc.kind, fault.KindOf(err))
			assert.Equal(t, "not a participant", fault.Message(err))
		})
	}
}

func TestClient_ServerErrorIsPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").ListConversations(context.Background())
	require.ErrorIs(t, err, errServer)
	assert.Equal(t, fault.Kind(""), fault.KindOf(err))
}

func TestClientRename_SendsNullName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/conversations/c-1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		v, ok := body["name"]
		assert.True(t, ok)
		assert.Nil(t, v)
		_ = json.NewEncoder(w).Encode(dto.MembershipResult{Changed: true})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "t").Rename(context.Background(), "c-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}
