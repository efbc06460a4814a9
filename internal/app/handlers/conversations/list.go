package conversations

import (
	"context"
	"fmt"
	"strings"

	"convo/internal/app/dto"
	"convo/internal/app/handlers/support"
	"convo/internal/app/queries"
	"convo/internal/app/uow"
	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

const (
	listConversationsKey = "conversations.list"
	// ListLimit caps how many conversations one projection loads.
	ListLimit = 200
	// titleMembers is how many labels an unnamed group title shows.
	titleMembers = 3
)

type ListConversationsQuery struct {
	CallerID user.ID
}

func (q ListConversationsQuery) Key() string     { return listConversationsKey }
func (q ListConversationsQuery) Caller() user.ID { return q.CallerID }

// ListConversationsHandler projects the caller's conversations into list rows.
type ListConversationsHandler struct {
	UoWFactory uow.Factory
	Users      user.Directory
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) (dto.ConversationList, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ConversationList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	convs, err := unit.Conversations().ListForParticipant(execCtx, q.CallerID, ListLimit)
	if err != nil {
		return dto.ConversationList{}, err
	}
	if len(convs) == 0 {
		return dto.ConversationList{Items: []dto.ConversationSummary{}}, nil
	}
	ids := make([]conversation.ID, 0, len(convs))
	var members []user.ID
	for _, c := range convs {
		ids = append(ids, c.ID)
		members = append(members, c.Participants...)
	}
	latest, err := unit.Messages().Latest(execCtx, ids)
	if err != nil {
		return dto.ConversationList{}, err
	}
	unread, err := unit.Messages().UnreadCounts(execCtx, ids, q.CallerID)
	if err != nil {
		return dto.ConversationList{}, err
	}
	known, err := h.Users.ByIDs(execCtx, conversation.MemberSet(members))
	if err != nil {
		return dto.ConversationList{}, err
	}

	items := make([]dto.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		item := Summarize(c, q.CallerID, known)
		if m, ok := latest[c.ID]; ok {
			item.LastMessage = &dto.LastMessage{
				Content:       m.Content,
				Kind:          string(m.Kind),
				HasAttachment: m.HasAttachment(),
				SenderIsMe:    m.SenderID == q.CallerID,
				CreatedAt:     m.CreatedAt,
			}
		}
		item.UnreadCount = unread[c.ID]
		items = append(items, item)
	}
	return dto.ConversationList{Items: dto.CollapseDirectThreads(items)}, nil
}

// Summarize builds the list row of c as seen by viewer, without message data.
func Summarize(c *conversation.Conversation, viewer user.ID, known map[user.ID]user.User) dto.ConversationSummary {
	item := dto.ConversationSummary{
		ID:        string(c.ID),
		UpdatedAt: c.UpdatedAt,
		IsGroup:   c.IsGroup(),
		Name:      c.Name,
		Members:   make([]dto.Participant, 0, len(c.Participants)),
	}
	for _, id := range c.Participants {
		item.Members = append(item.Members, dto.MapParticipant(id, known))
	}
	others := c.Others(viewer)
	if !item.IsGroup {
		if len(others) > 0 {
			item.CounterpartID = string(others[0])
			item.DisplayName = label(known, others[0])
		}
		return item
	}
	item.DisplayName = groupTitle(c.Name, others, known)
	return item
}

func groupTitle(name string, others []user.ID, known map[user.ID]user.User) string {
	if name != "" {
		return name
	}
	shown := others
	if len(shown) > titleMembers {
		shown = shown[:titleMembers]
	}
	labels := make([]string, 0, len(shown))
	for _, id := range shown {
		labels = append(labels, label(known, id))
	}
	title := strings.Join(labels, ", ")
	if extra := len(others) - len(shown); extra > 0 {
		title += fmt.Sprintf(" +%d more", extra)
	}
	return title
}

var _ queries.Handler[ListConversationsQuery, dto.ConversationList] = (*ListConversationsHandler)(nil)
