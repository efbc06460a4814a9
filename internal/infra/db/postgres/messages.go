package postgres

import (
	"context"
	"database/sql"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

var messageColumns = []string{"id", "conversation_id", "sender_id", "kind", "content", "image_urls", "share_type", "share_target", "created_at", "read_at"}

type messageRow struct {
	ID             string         `db:"id"`
	ConversationID string         `db:"conversation_id"`
	SenderID       string         `db:"sender_id"`
	Kind           string         `db:"kind"`
	Content        string         `db:"content"`
	ImageURLs      pq.StringArray `db:"image_urls"`
	ShareType      sql.NullString `db:"share_type"`
	ShareTarget    sql.NullString `db:"share_target"`
	CreatedAt      time.Time      `db:"created_at"`
	ReadAt         sql.NullTime   `db:"read_at"`
}

func (row messageRow) toMessage() conversation.Message {
	m := conversation.Message{
		ID:             conversation.MessageID(row.ID),
		ConversationID: conversation.ID(row.ConversationID),
		SenderID:       user.ID(row.SenderID),
		Kind:           conversation.MessageKind(row.Kind),
		Content:        row.Content,
		CreatedAt:      row.CreatedAt.UTC(),
	}
	if len(row.ImageURLs) > 0 {
		m.ImageURLs = []string(row.ImageURLs)
	}
	if row.ShareType.Valid {
		m.Share = &conversation.Share{Type: conversation.ShareType(row.ShareType.String), TargetID: row.ShareTarget.String}
	}
	if row.ReadAt.Valid {
		at := row.ReadAt.Time.UTC()
		m.ReadAt = &at
	}
	return m
}

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, m conversation.Message) error {
	var shareType, shareTarget sql.NullString
	if m.Share != nil {
		shareType = sql.NullString{String: string(m.Share.Type), Valid: true}
		shareTarget = sql.NullString{String: m.Share.TargetID, Valid: true}
	}
	var readAt sql.NullTime
	if m.ReadAt != nil {
		readAt = nullTime(*m.ReadAt)
	}
	images := pq.StringArray(m.ImageURLs)
	if images == nil {
		images = pq.StringArray{}
	}
	_, err := exec(ctx, conn(ctx, r.db), psql.Insert("messages").
		Columns(messageColumns...).
		Values(string(m.ID), string(m.ConversationID), string(m.SenderID), string(m.Kind), m.Content,
			images, shareType, shareTarget, m.CreatedAt.UTC(), readAt))
	return err
}

func (r *MessageRepository) List(ctx context.Context, conversationID conversation.ID, page conversation.Page) ([]conversation.Message, error) {
	q := psql.Select(messageColumns...).From("messages").Where(sq.Eq{"conversation_id": string(conversationID)})
	if !page.After.IsZero() {
		q = q.Where(sq.Gt{"created_at": page.After.UTC()}).OrderBy("created_at ASC", "id ASC")
	} else {
		q = q.OrderBy("created_at DESC", "id DESC")
	}
	if !page.Before.IsZero() {
		q = q.Where(sq.Lt{"created_at": page.Before.UTC()})
	}
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	var rows []messageRow
	if err := selectInto(ctx, conn(ctx, r.db), &rows, q); err != nil {
		return nil, err
	}
	out := make([]conversation.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toMessage())
	}
	if page.After.IsZero() {
		slices.Reverse(out)
	}
	return out, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID conversation.ID, reader user.ID, at time.Time) (int, error) {
	res, err := exec(ctx, conn(ctx, r.db), psql.Update("messages").
		Set("read_at", at.UTC()).
		Where(sq.Eq{"conversation_id": string(conversationID), "read_at": nil}).
		Where(sq.NotEq{"sender_id": string(reader)}))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *MessageRepository) Latest(ctx context.Context, conversationIDs []conversation.ID) (map[conversation.ID]conversation.Message, error) {
	out := make(map[conversation.ID]conversation.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	q := psql.Select(messageColumns...).
		Options("DISTINCT ON (conversation_id)").
		From("messages").
		Where("conversation_id = ANY(?)", pq.StringArray(toStrings(conversationIDs))).
		OrderBy("conversation_id", "created_at DESC", "id DESC")
	var rows []messageRow
	if err := selectInto(ctx, conn(ctx, r.db), &rows, q); err != nil {
		return nil, err
	}
	for _, row := range rows {
		m := row.toMessage()
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *MessageRepository) UnreadCounts(ctx context.Context, conversationIDs []conversation.ID, reader user.ID) (map[conversation.ID]int, error) {
	out := make(map[conversation.ID]int, len(conversationIDs))
	for _, id := range conversationIDs {
		out[id] = 0
	}
	if len(conversationIDs) == 0 {
		return out, nil
	}
	q := psql.Select("conversation_id", "COUNT(*) AS unread").
		From("messages").
		Where("conversation_id = ANY(?)", pq.StringArray(toStrings(conversationIDs))).
		Where(sq.Eq{"read_at": nil}).
		Where(sq.NotEq{"sender_id": string(reader)}).
		GroupBy("conversation_id")
	var rows []struct {
		ConversationID string `db:"conversation_id"`
		Unread         int    `db:"unread"`
	}
	if err := selectInto(ctx, conn(ctx, r.db), &rows, q); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[conversation.ID(row.ConversationID)] = row.Unread
	}
	return out, nil
}

func (r *MessageRepository) DeleteByConversation(ctx context.Context, conversationID conversation.ID) error {
	_, err := exec(ctx, conn(ctx, r.db), psql.Delete("messages").Where(sq.Eq{"conversation_id": string(conversationID)}))
	return err
}

var _ conversation.MessageRepository = (*MessageRepository)(nil)
