package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

func TestMessageDocument_KeepsMicroseconds(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 1000, time.UTC)
	next := at.Add(time.Microsecond)

	a := newMessageDocument(conversation.Message{ID: "m1", ConversationID: "c", CreatedAt: at})
	b := newMessageDocument(conversation.Message{ID: "m2", ConversationID: "c", CreatedAt: next})

	assert.Less(t, a.CreatedAt, b.CreatedAt)
	assert.True(t, next.Equal(b.toMessage().CreatedAt))
	assert.Nil(t, a.toMessage().ReadAt)
}

func TestMessageDocument_ShareAndRead(t *testing.T) {
	read := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	in := conversation.Message{
		ID:             "m1",
		ConversationID: "c",
		SenderID:       "u-alice",
		Kind:           conversation.KindShare,
		Share:          &conversation.Share{Type: conversation.SharePost, TargetID: "p-1"},
		CreatedAt:      read.Add(-time.Hour),
		ReadAt:         &read,
	}

	out := newMessageDocument(in).toMessage()

	assert.Equal(t, in.Share, out.Share)
	require.NotNil(t, out.ReadAt)
	assert.True(t, read.Equal(*out.ReadAt))
}

func TestConversationDocument_GroupOmitsDirectKey(t *testing.T) {
	group := &conversation.Conversation{
		ID:           "g",
		Kind:         conversation.KindGroup,
		Participants: []user.ID{"a", "b", "c"},
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	raw, err := bson.Marshal(newConversationDocument(group))
	require.NoError(t, err)
	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))

	_, hasKey := fields["direct_key"]
	assert.False(t, hasKey, "the partial unique index must not see groups")
	assert.Equal(t, []user.ID{"a", "b", "c"}, newConversationDocument(group).toAggregate().Participants)
}

func TestBsonKeys_KeepsOrder(t *testing.T) {
	keys := bsonKeys("conversation_id", 1, "created_at", 1, "_id", 1)
	require.Len(t, keys, 3)
	assert.Equal(t, "conversation_id", keys[0].Key)
	assert.Equal(t, "_id", keys[2].Key)
}
