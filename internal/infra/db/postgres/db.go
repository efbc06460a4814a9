package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const uniqueViolation = pq.ErrorCode("23505")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Open connects with lib/pq and applies the schema.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

type txKey struct{}

type boundTx struct {
	tx       *sqlx.Tx
	readOnly bool
}

// executor is the query surface shared by *sqlx.DB and *sqlx.Tx.
type executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// conn returns the transaction bound to ctx, or db outside a unit.
func conn(ctx context.Context, db *sqlx.DB) executor {
	if bound, ok := ctx.Value(txKey{}).(boundTx); ok {
		return bound.tx
	}
	return db
}

// lockable reports whether ctx carries a write transaction, where rows may be locked.
func lockable(ctx context.Context) bool {
	bound, ok := ctx.Value(txKey{}).(boundTx)
	return ok && !bound.readOnly
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func exec(ctx context.Context, db executor, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build query: %w", err)
	}
	return db.ExecContext(ctx, query, args...)
}

func selectInto(ctx context.Context, db executor, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build query: %w", err)
	}
	return db.SelectContext(ctx, dest, query, args...)
}

func getInto(ctx context.Context, db executor, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build query: %w", err)
	}
	return db.GetContext(ctx, dest, query, args...)
}
