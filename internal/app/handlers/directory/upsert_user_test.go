package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convo/internal/domain/user"
	"convo/internal/infra/storage/memory"
)

func TestUpsertUser_KeepsNewestVersion(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewUserDirectory()
	h := &UpsertUserHandler{Users: dir}
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	u, err := h.Handle(ctx, UpsertUserCommand{ID: "u-1", Handle: "@Alice", DisplayName: " Alice ", UpdatedAt: t1})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Handle)
	assert.Equal(t, "Alice", u.DisplayName)

	_, err = h.Handle(ctx, UpsertUserCommand{ID: "u-1", Handle: "old", UpdatedAt: t1.Add(-time.Hour)})
	require.NoError(t, err)
	got, err := dir.ByHandle(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID("u-1"), got.ID)

	_, err = h.Handle(ctx, UpsertUserCommand{ID: "u-1", Handle: "alicia", UpdatedAt: t1.Add(time.Hour)})
	require.NoError(t, err)
	_, err = dir.ByHandle(ctx, "alice")
	assert.ErrorIs(t, err, user.ErrNotFound)

	assert.ErrorIs(t, UpsertUserCommand{ID: " "}.Validate(), user.ErrIDRequired)
}
