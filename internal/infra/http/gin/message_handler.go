package ginserver

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/messages"
	"convo/internal/domain/conversation"
)

const idempotencyHeader = "Idempotency-Key"

type MessageHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type sendMessageRequest struct {
	To             string     `json:"to"`
	ConversationID string     `json:"conversationId"`
	Content        string     `json:"content"`
	ImageURLs      []string   `json:"imageUrls"`
	Share          *dto.Share `json:"share"`
}

// List returns one page of a thread, marking the caller's unread messages as read.
func (h MessageHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	after, ok := parseCursorParam(c, "cursor")
	if !ok {
		return
	}
	before, ok := parseCursorParam(c, "before")
	if !ok {
		return
	}
	cmd := messages.ListMessagesCommand{
		CallerID: caller,
		Target: messages.Target{
			To:             c.Query("to"),
			ConversationID: conversation.ID(c.Query("conversationId")),
		},
		After:  after,
		Before: before,
	}
	page, err := commands.Dispatch[messages.ListMessagesCommand, dto.MessagePage](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "list messages", "caller_id", caller)
		return
	}
	if page.Messages == nil {
		page.Messages = []dto.Message{}
	}
	c.JSON(http.StatusOK, page)
}

func (h MessageHandler) Send(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	cmd := messages.SendMessageCommand{
		CallerID: caller,
		Target: messages.Target{
			To:             req.To,
			ConversationID: conversation.ID(req.ConversationID),
		},
		Content:   req.Content,
		ImageURLs: req.ImageURLs,
		IdemKey:   c.GetHeader(idempotencyHeader),
	}
	if req.Share != nil {
		cmd.Share = &messages.SharePayload{Type: req.Share.Type, ID: req.Share.ID}
	}
	result, err := commands.Dispatch[messages.SendMessageCommand, dto.SendResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "send message", "caller_id", caller)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func parseCursorParam(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	t, err := dto.ParseCursor(raw)
	if err != nil {
		badRequest(c, name+" must be an RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

var _ MessageHTTP = MessageHandler{}
