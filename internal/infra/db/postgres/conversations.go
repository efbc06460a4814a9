package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

var conversationColumns = []string{"id", "kind", "name", "direct_key", "created_at", "updated_at", "last_message_at", "version"}

type conversationRow struct {
	ID            string         `db:"id"`
	Kind          string         `db:"kind"`
	Name          string         `db:"name"`
	DirectKey     sql.NullString `db:"direct_key"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastMessageAt sql.NullTime   `db:"last_message_at"`
	Version       int64          `db:"version"`
}

type participantRow struct {
	ConversationID string `db:"conversation_id"`
	UserID         string `db:"user_id"`
}

type ConversationRepository struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ByID locks the row inside write units, serialising sends and membership changes on the
// same conversation.
func (r *ConversationRepository) ByID(ctx context.Context, id conversation.ID) (*conversation.Conversation, error) {
	q := psql.Select(conversationColumns...).From("conversations").Where(sq.Eq{"id": string(id)})
	if lockable(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	return r.one(ctx, q)
}

func (r *ConversationRepository) ByDirectKey(ctx context.Context, key string) (*conversation.Conversation, error) {
	q := psql.Select(conversationColumns...).From("conversations").Where(sq.Eq{"direct_key": key})
	if lockable(ctx) {
		q = q.Suffix("FOR UPDATE")
	}
	return r.one(ctx, q)
}

func (r *ConversationRepository) one(ctx context.Context, q sq.SelectBuilder) (*conversation.Conversation, error) {
	var row conversationRow
	if err := getInto(ctx, conn(ctx, r.db), &row, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, err
	}
	out, err := r.hydrate(ctx, []conversationRow{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Create skips a taken direct key instead of failing the statement, so the transaction
// stays usable for the caller's fallback lookup.
func (r *ConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	db := conn(ctx, r.db)
	var directKey any
	if c.DirectKey != "" {
		directKey = c.DirectKey
	}
	res, err := exec(ctx, db, psql.Insert("conversations").
		Columns(conversationColumns...).
		Values(string(c.ID), string(c.Kind), c.Name, directKey, c.CreatedAt.UTC(), c.UpdatedAt.UTC(), nullTime(c.LastMessageAt), 1).
		Suffix("ON CONFLICT (direct_key) DO NOTHING"))
	if err != nil {
		if isUniqueViolation(err) {
			return conversation.ErrDirectKeyTaken
		}
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return conversation.ErrDirectKeyTaken
	}
	if err := r.writeParticipants(ctx, db, c); err != nil {
		return err
	}
	c.Version = 1
	return nil
}

func (r *ConversationRepository) Save(ctx context.Context, c *conversation.Conversation) error {
	db := conn(ctx, r.db)
	res, err := exec(ctx, db, psql.Update("conversations").
		Set("name", c.Name).
		Set("updated_at", c.UpdatedAt.UTC()).
		Set("last_message_at", nullTime(c.LastMessageAt)).
		Set("version", c.Version+1).
		Where(sq.Eq{"id": string(c.ID), "version": c.Version}))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := getInto(ctx, db, &exists, psql.Select("true").From("conversations").Where(sq.Eq{"id": string(c.ID)})); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return conversation.ErrNotFound
			}
			return err
		}
		return conversation.ErrConcurrentUpdate
	}
	if _, err := exec(ctx, db, psql.Delete("conversation_participants").Where(sq.Eq{"conversation_id": string(c.ID)})); err != nil {
		return err
	}
	if err := r.writeParticipants(ctx, db, c); err != nil {
		return err
	}
	c.Version++
	return nil
}

func (r *ConversationRepository) writeParticipants(ctx context.Context, db executor, c *conversation.Conversation) error {
	if len(c.Participants) == 0 {
		return nil
	}
	insert := psql.Insert("conversation_participants").Columns("conversation_id", "user_id", "position")
	for i, id := range c.Participants {
		insert = insert.Values(string(c.ID), string(id), i)
	}
	_, err := exec(ctx, db, insert)
	return err
}

// Delete removes the conversation; participants and messages follow by cascade.
func (r *ConversationRepository) Delete(ctx context.Context, id conversation.ID) error {
	res, err := exec(ctx, conn(ctx, r.db), psql.Delete("conversations").Where(sq.Eq{"id": string(id)}))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) GroupsWithin(ctx context.Context, members []user.ID) ([]*conversation.Conversation, error) {
	q := psql.Select(prefixed("c", conversationColumns)...).
		From("conversations c").
		Where(sq.Eq{"c.kind": string(conversation.KindGroup)}).
		Where(sq.Expr(`NOT EXISTS (SELECT 1 FROM conversation_participants p WHERE p.conversation_id = c.id AND NOT (p.user_id = ANY(?)))`,
			pq.StringArray(toStrings(members)))).
		OrderBy("c.updated_at DESC", "c.id DESC")
	return r.many(ctx, q)
}

func (r *ConversationRepository) ListForParticipant(ctx context.Context, userID user.ID, limit int) ([]*conversation.Conversation, error) {
	q := psql.Select(prefixed("c", conversationColumns)...).
		From("conversations c").
		Join("conversation_participants p ON p.conversation_id = c.id").
		Where(sq.Eq{"p.user_id": string(userID)}).
		OrderBy("c.updated_at DESC", "c.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.many(ctx, q)
}

func (r *ConversationRepository) many(ctx context.Context, q sq.SelectBuilder) ([]*conversation.Conversation, error) {
	var rows []conversationRow
	if err := selectInto(ctx, conn(ctx, r.db), &rows, q); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rows)
}

// hydrate loads the membership of rows in one query and keeps the row order.
func (r *ConversationRepository) hydrate(ctx context.Context, rows []conversationRow) ([]*conversation.Conversation, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var members []participantRow
	q := psql.Select("conversation_id", "user_id").
		From("conversation_participants").
		Where("conversation_id = ANY(?)", pq.StringArray(ids)).
		OrderBy("conversation_id", "position")
	if err := selectInto(ctx, conn(ctx, r.db), &members, q); err != nil {
		return nil, err
	}
	byConversation := make(map[string][]user.ID, len(rows))
	for _, m := range members {
		byConversation[m.ConversationID] = append(byConversation[m.ConversationID], user.ID(m.UserID))
	}
	out := make([]*conversation.Conversation, len(rows))
	for i, row := range rows {
		out[i] = &conversation.Conversation{
			ID:            conversation.ID(row.ID),
			Kind:          conversation.Kind(row.Kind),
			Name:          row.Name,
			DirectKey:     row.DirectKey.String,
			Participants:  byConversation[row.ID],
			CreatedAt:     row.CreatedAt.UTC(),
			UpdatedAt:     row.UpdatedAt.UTC(),
			LastMessageAt: fromNullTime(row.LastMessageAt),
			Version:       row.Version,
		}
	}
	return out, nil
}

func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return out
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

var _ conversation.Repository = (*ConversationRepository)(nil)
