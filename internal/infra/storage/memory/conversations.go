package memory

import (
	"context"
	"sort"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

type conversationRepo struct {
	unit *Unit
}

func (r conversationRepo) ByID(ctx context.Context, id conversation.ID) (*conversation.Conversation, error) {
	c, ok := r.unit.state.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return c.Clone(), nil
}

func (r conversationRepo) ByDirectKey(ctx context.Context, key string) (*conversation.Conversation, error) {
	id, ok := r.unit.state.directKeys[key]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return r.ByID(ctx, id)
}

func (r conversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	st := r.unit.state
	if c.DirectKey != "" {
		if _, taken := st.directKeys[c.DirectKey]; taken {
			return conversation.ErrDirectKeyTaken
		}
		st.directKeys[c.DirectKey] = c.ID
	}
	stored := c.Clone()
	stored.Version = 1
	st.conversations[c.ID] = stored
	c.Version = stored.Version
	return nil
}

func (r conversationRepo) Save(ctx context.Context, c *conversation.Conversation) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	current, ok := r.unit.state.conversations[c.ID]
	if !ok {
		return conversation.ErrNotFound
	}
	if current.Version != c.Version {
		return conversation.ErrConcurrentUpdate
	}
	stored := c.Clone()
	stored.Version = c.Version + 1
	r.unit.state.conversations[c.ID] = stored
	c.Version = stored.Version
	return nil
}

func (r conversationRepo) Delete(ctx context.Context, id conversation.ID) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	st := r.unit.state
	c, ok := st.conversations[id]
	if !ok {
		return conversation.ErrNotFound
	}
	if c.DirectKey != "" {
		delete(st.directKeys, c.DirectKey)
	}
	delete(st.conversations, id)
	delete(st.messages, id)
	return nil
}

func (r conversationRepo) GroupsWithin(ctx context.Context, members []user.ID) ([]*conversation.Conversation, error) {
	allowed := make(map[user.ID]struct{}, len(members))
	for _, id := range members {
		allowed[id] = struct{}{}
	}
	var out []*conversation.Conversation
	for _, c := range r.unit.state.conversations {
		if !c.IsGroup() {
			continue
		}
		within := true
		for _, id := range c.Participants {
			if _, ok := allowed[id]; !ok {
				within = false
				break
			}
		}
		if within {
			out = append(out, c.Clone())
		}
	}
	sortByRecency(out)
	return out, nil
}

func (r conversationRepo) ListForParticipant(ctx context.Context, userID user.ID, limit int) ([]*conversation.Conversation, error) {
	var out []*conversation.Conversation
	for _, c := range r.unit.state.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	sortByRecency(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByRecency(items []*conversation.Conversation) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

var _ conversation.Repository = conversationRepo{}
