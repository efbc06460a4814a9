package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"convo/internal/app/commands"
	"convo/internal/app/dto"
	"convo/internal/app/handlers/conversations"
	"convo/internal/app/queries"
	"convo/internal/domain/conversation"
)

type ConversationHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type startConversationRequest struct {
	Recipients []string `json:"recipients"`
}

type addParticipantsRequest struct {
	Users []string `json:"users"`
}

type removeParticipantRequest struct {
	User string `json:"user"`
}

type renameRequest struct {
	Name *string `json:"name"`
}

func (h ConversationHandler) Start(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	result, err := commands.Dispatch[conversations.StartConversationCommand, dto.StartResult](c.Request.Context(), h.Commands, conversations.StartConversationCommand{
		CallerID:   caller,
		Recipients: req.Recipients,
	})
	if err != nil {
		respondError(c, h.Logger, err, "start conversation", "caller_id", caller)
		return
	}
	status := http.StatusCreated
	if result.Existed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h ConversationHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	list, err := queries.Ask[conversations.ListConversationsQuery, dto.ConversationList](c.Request.Context(), h.Queries, conversations.ListConversationsQuery{
		CallerID: caller,
	})
	if err != nil {
		respondError(c, h.Logger, err, "list conversations", "caller_id", caller)
		return
	}
	if list.Items == nil {
		list.Items = []dto.ConversationSummary{}
	}
	c.JSON(http.StatusOK, list)
}

func (h ConversationHandler) AddParticipants(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req addParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	id := conversation.ID(c.Param("id"))
	result, err := commands.Dispatch[conversations.AddParticipantsCommand, dto.MembershipResult](c.Request.Context(), h.Commands, conversations.AddParticipantsCommand{
		CallerID:       caller,
		ConversationID: id,
		Users:          req.Users,
	})
	if err != nil {
		respondError(c, h.Logger, err, "add participants", "caller_id", caller, "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RemoveParticipant accepts the target either as ?user= or as a JSON body.
func (h ConversationHandler) RemoveParticipant(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	target := strings.TrimSpace(c.Query("user"))
	if target == "" && c.Request.ContentLength != 0 {
		var req removeParticipantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		target = req.User
	}
	id := conversation.ID(c.Param("id"))
	result, err := commands.Dispatch[conversations.RemoveParticipantCommand, dto.MembershipResult](c.Request.Context(), h.Commands, conversations.RemoveParticipantCommand{
		CallerID:       caller,
		ConversationID: id,
		User:           target,
	})
	if err != nil {
		respondError(c, h.Logger, err, "remove participant", "caller_id", caller, "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) Rename(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	id := conversation.ID(c.Param("id"))
	result, err := commands.Dispatch[conversations.RenameConversationCommand, dto.MembershipResult](c.Request.Context(), h.Commands, conversations.RenameConversationCommand{
		CallerID:       caller,
		ConversationID: id,
		Name:           req.Name,
	})
	if err != nil {
		respondError(c, h.Logger, err, "rename conversation", "caller_id", caller, "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ConversationHandler) Leave(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id := conversation.ID(c.Param("id"))
	result, err := commands.Dispatch[conversations.LeaveConversationCommand, dto.MembershipResult](c.Request.Context(), h.Commands, conversations.LeaveConversationCommand{
		CallerID:       caller,
		ConversationID: id,
	})
	if err != nil {
		respondError(c, h.Logger, err, "leave conversation", "caller_id", caller, "conversation_id", id)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ConversationHTTP = ConversationHandler{}
