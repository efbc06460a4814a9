package memory

import (
	"context"
	"sort"
	"time"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

type messageRepo struct {
	unit *Unit
}

func (r messageRepo) Append(ctx context.Context, m conversation.Message) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	st := r.unit.state
	if _, ok := st.conversations[m.ConversationID]; !ok {
		return conversation.ErrNotFound
	}
	list := append(st.messages[m.ConversationID], m.Clone())
	sort.SliceStable(list, func(i, j int) bool { return before(list[i], list[j]) })
	st.messages[m.ConversationID] = list
	return nil
}

func (r messageRepo) List(ctx context.Context, conversationID conversation.ID, page conversation.Page) ([]conversation.Message, error) {
	all := r.unit.state.messages[conversationID]
	window := make([]conversation.Message, 0, len(all))
	for _, m := range all {
		if !page.After.IsZero() && !m.CreatedAt.After(page.After) {
			continue
		}
		if !page.Before.IsZero() && !m.CreatedAt.Before(page.Before) {
			continue
		}
		window = append(window, m)
	}
	if page.Limit > 0 && len(window) > page.Limit {
		if page.After.IsZero() {
			window = window[len(window)-page.Limit:]
		} else {
			window = window[:page.Limit]
		}
	}
	out := make([]conversation.Message, len(window))
	for i, m := range window {
		out[i] = m.Clone()
	}
	return out, nil
}

func (r messageRepo) MarkRead(ctx context.Context, conversationID conversation.ID, reader user.ID, at time.Time) (int, error) {
	list := r.unit.state.messages[conversationID]
	pending := 0
	for _, m := range list {
		if m.UnreadBy(reader) {
			pending++
		}
	}
	if pending == 0 {
		return 0, nil
	}
	if err := r.unit.writable(); err != nil {
		return 0, err
	}
	for i := range list {
		if list[i].UnreadBy(reader) {
			stamp := at
			list[i].ReadAt = &stamp
		}
	}
	return pending, nil
}

func (r messageRepo) Latest(ctx context.Context, conversationIDs []conversation.ID) (map[conversation.ID]conversation.Message, error) {
	out := make(map[conversation.ID]conversation.Message, len(conversationIDs))
	for _, id := range conversationIDs {
		list := r.unit.state.messages[id]
		if len(list) > 0 {
			out[id] = list[len(list)-1].Clone()
		}
	}
	return out, nil
}

func (r messageRepo) UnreadCounts(ctx context.Context, conversationIDs []conversation.ID, reader user.ID) (map[conversation.ID]int, error) {
	out := make(map[conversation.ID]int, len(conversationIDs))
	for _, id := range conversationIDs {
		count := 0
		for _, m := range r.unit.state.messages[id] {
			if m.UnreadBy(reader) {
				count++
			}
		}
		out[id] = count
	}
	return out, nil
}

func (r messageRepo) DeleteByConversation(ctx context.Context, conversationID conversation.ID) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	delete(r.unit.state.messages, conversationID)
	return nil
}

func before(a, b conversation.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

var _ conversation.MessageRepository = messageRepo{}
