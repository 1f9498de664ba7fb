package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"festreg/internal/catalog"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// EnsureTables creates the registration table for every configured catalog
// event. Each table carries the fixed nine-column row shape.
func (d *DB) EnsureTables(ctx context.Context, cat *catalog.Catalog) error {
	for _, evt := range cat.Events() {
		if evt.Table == "" {
			continue
		}
		stmt := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				ts          TIMESTAMPTZ NOT NULL,
				full_name   TEXT NOT NULL DEFAULT '',
				email       TEXT NOT NULL,
				phone       TEXT NOT NULL DEFAULT '',
				college     TEXT NOT NULL DEFAULT '',
				department  TEXT NOT NULL DEFAULT '',
				year        TEXT NOT NULL DEFAULT '',
				event_title TEXT NOT NULL DEFAULT '',
				event_id    TEXT NOT NULL DEFAULT ''
			)
		`, quoteIdent(evt.Table))
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table %s: %w", evt.Table, err)
		}
	}
	return nil
}

// quoteIdent quotes a dynamic table name; table names come from the static
// catalog, never from request input.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
