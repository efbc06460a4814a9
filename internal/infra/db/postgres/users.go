package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"convo/internal/domain/user"
)

type userRow struct {
	ID          string         `db:"id"`
	Handle      sql.NullString `db:"handle"`
	DisplayName string         `db:"display_name"`
	AvatarURL   string         `db:"avatar_url"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:          user.ID(row.ID),
		Handle:      row.Handle.String,
		DisplayName: row.DisplayName,
		AvatarURL:   row.AvatarURL,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

// UserRepository is the directory projection table.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

var userColumns = []string{"id", "handle", "display_name", "avatar_url", "updated_at"}

func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	return r.one(ctx, sq.Eq{"id": string(id)})
}

func (r *UserRepository) ByHandle(ctx context.Context, handle string) (*user.User, error) {
	handle = user.NormalizeHandle(handle)
	if handle == "" {
		return nil, user.ErrNotFound
	}
	return r.one(ctx, sq.Eq{"handle": handle})
}

func (r *UserRepository) one(ctx context.Context, where sq.Eq) (*user.User, error) {
	var row userRow
	if err := getInto(ctx, r.db, &row, psql.Select(userColumns...).From("users").Where(where)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	u := row.toUser()
	return &u, nil
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []user.ID) (map[user.ID]user.User, error) {
	out := make(map[user.ID]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []userRow
	q := psql.Select(userColumns...).From("users").Where("id = ANY(?)", pq.StringArray(toStrings(ids)))
	if err := selectInto(ctx, r.db, &rows, q); err != nil {
		return nil, err
	}
	for _, row := range rows {
		u := row.toUser()
		out[u.ID] = u
	}
	return out, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	var handle sql.NullString
	if u.Handle != "" {
		handle = sql.NullString{String: u.Handle, Valid: true}
	}
	_, err := exec(ctx, r.db, psql.Insert("users").
		Columns(userColumns...).
		Values(string(u.ID), handle, u.DisplayName, u.AvatarURL, u.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle, display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url, updated_at = EXCLUDED.updated_at`))
	if isUniqueViolation(err) {
		return user.ErrHandleUsed
	}
	return err
}

var _ user.Store = (*UserRepository)(nil)
