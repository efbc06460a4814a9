package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/app/dto"
)

func row(id, counterpart string, minutes int) dto.ConversationSummary {
	return dto.ConversationSummary{ID: id, CounterpartID: counterpart, UpdatedAt: base.Add(time.Duration(minutes) * time.Minute)}
}

func rowIDs(items []dto.ConversationSummary) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestInboxPoll_ReplacesWholesale(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		api.EXPECT().ListConversations(ctx).Return(dto.ConversationList{Items: []dto.ConversationSummary{row("c-1", "u-bob", 1), row("c-2", "u-carol", 2)}}, nil),
		api.EXPECT().ListConversations(ctx).Return(dto.ConversationList{Items: []dto.ConversationSummary{row("c-1", "u-bob", 3)}}, nil),
	)

	in := NewInbox(api)
	require.NoError(t, in.Poll(ctx))
	assert.Equal(t, []string{"c-2", "c-1"}, rowIDs(in.Items()))
	require.NoError(t, in.Poll(ctx))
	assert.Equal(t, []string{"c-1"}, rowIDs(in.Items()))
}

func TestInbox_OptimisticDirectRowCollapsesIntoServerRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockAPI(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		api.EXPECT().ListConversations(ctx).Return(dto.ConversationList{Items: []dto.ConversationSummary{row("c-9", "u-carol", 1)}}, nil),
		api.EXPECT().ListConversations(ctx).Return(dto.ConversationList{Items: []dto.ConversationSummary{row("c-1", "u-bob", 4), row("c-9", "u-carol", 1)}}, nil),
	)

	in := NewInbox(api)
	in.Upsert(row("tmp-bob", "u-bob", 5))
	require.NoError(t, in.Poll(ctx))
	assert.Equal(t, []string{"tmp-bob", "c-9"}, rowIDs(in.Items()))

	require.NoError(t, in.Poll(ctx))
	assert.Equal(t, []string{"c-1", "c-9"}, rowIDs(in.Items()))
}

func TestInboxUpsert_CollapsesDuplicateDirectRows(t *testing.T) {
	in := NewInbox(nil)
	in.Upsert(row("c-old", "u-bob", 1))
	in.Upsert(row("c-new", "u-bob", 2))
	assert.Equal(t, []string{"c-new"}, rowIDs(in.Items()))
}
