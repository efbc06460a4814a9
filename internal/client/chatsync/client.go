// Package chatsync keeps a local copy of a user's threads in sync with the REST surface
// by polling, with optimistic sends.
package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"convo/internal/app/dto"
	"convo/internal/domain/shared/fault"
)

// Target addresses a thread either by recipient (id or handle) or by conversation id.
type Target struct {
	To             string
	ConversationID string
}

type SendRequest struct {
	To             string     `json:"to,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Content        string     `json:"content,omitempty"`
	ImageURLs      []string   `json:"imageUrls,omitempty"`
	Share          *dto.Share `json:"share,omitempty"`
}

// API is the part of the REST surface the pollers depend on.
type API interface {
	ListMessages(ctx context.Context, target Target, after time.Time) (dto.MessagePage, error)
	SendMessage(ctx context.Context, req SendRequest, idemKey string) (dto.SendResult, error)
	ListConversations(ctx context.Context) (dto.ConversationList, error)
}

// Client is a typed client for /api/v1. Error responses come back as faults of the
// matching kind.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) StartConversation(ctx context.Context, recipients []string) (dto.StartResult, error) {
	var out dto.StartResult
	err := c.do(ctx, http.MethodPost, "/conversations", nil, map[string]any{"recipients": recipients}, nil, &out)
	return out, err
}

func (c *Client) ListConversations(ctx context.Context) (dto.ConversationList, error) {
	var out dto.ConversationList
	err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, nil, &out)
	return out, err
}

func (c *Client) AddParticipants(ctx context.Context, conversationID string, users []string) (dto.MembershipResult, error) {
	var out dto.MembershipResult
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/participants", nil,
		map[string]any{"users": users}, nil, &out)
	return out, err
}

func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userRef string) (dto.MembershipResult, error) {
	var out dto.MembershipResult
	err := c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID)+"/participants", nil,
		map[string]any{"user": userRef}, nil, &out)
	return out, err
}

// Rename sets the group name; nil clears it.
func (c *Client) Rename(ctx context.Context, conversationID string, name *string) (dto.MembershipResult, error) {
	var out dto.MembershipResult
	err := c.do(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(conversationID), nil,
		map[string]any{"name": name}, nil, &out)
	return out, err
}

func (c *Client) Leave(ctx context.Context, conversationID string) (dto.MembershipResult, error) {
	var out dto.MembershipResult
	err := c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil, nil, &out)
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, target Target, after time.Time) (dto.MessagePage, error) {
	q := url.Values{}
	if target.ConversationID != "" {
		q.Set("conversationId", target.ConversationID)
	} else {
		q.Set("to", target.To)
	}
	if cursor := dto.FormatCursor(after); cursor != "" {
		q.Set("cursor", cursor)
	}
	var out dto.MessagePage
	err := c.do(ctx, http.MethodGet, "/messages", q, nil, nil, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, req SendRequest, idemKey string) (dto.SendResult, error) {
	var headers http.Header
	if idemKey != "" {
		headers = http.Header{"Idempotency-Key": []string{idemKey}}
	}
	var out dto.SendResult
	err := c.do(ctx, http.MethodPost, "/messages", nil, req, headers, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, headers http.Header, out any) error {
	endpoint := c.BaseURL + "/api/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

var errServer = errors.New("chatsync: server error")

func decodeError(method, path string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	msg := payload.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if kind := kindFor(resp.StatusCode); kind != "" {
		return fault.New(kind, "chatsync: "+msg)
	}
	return fmt.Errorf("%w: %s %s: %d %s", errServer, method, path, resp.StatusCode, msg)
}

func kindFor(status int) fault.Kind {
	switch status {
	case http.StatusUnauthorized:
		return fault.Unauthorized
	case http.StatusForbidden:
		return fault.Forbidden
	case http.StatusNotFound:
		return fault.NotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return fault.InvalidRequest
	case http.StatusConflict:
		return fault.Conflict
	}
	return ""
}

var _ API = (*Client)(nil)
