package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"festreg/internal/catalog"
	"festreg/internal/registration"
)

// PostgresStore persists registration rows, one table per event.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a record store over an open connection.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db.Client}
}

const rowColumns = "ts, full_name, email, phone, college, department, year, event_title, event_id"

// HasRegistration reports whether the table holds a row for email.
func (s *PostgresStore) HasRegistration(ctx context.Context, table, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE lower(email) = $1)`, quoteIdent(table))
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, catalog.NormalizeEmail(email)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Append writes a new row to the table.
func (s *PostgresStore) Append(ctx context.Context, table string, row registration.Row) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, quoteIdent(table), rowColumns)
	_, err := s.db.ExecContext(ctx, query,
		row.Timestamp, row.FullName, row.Email, row.Phone,
		row.College, row.Department, row.Year, row.EventTitle, row.EventID)
	return err
}

// FirstMatch returns the earliest row for email in the table, or nil.
func (s *PostgresStore) FirstMatch(ctx context.Context, table, email string) (*registration.Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(email) = $1 ORDER BY ts ASC LIMIT 1`, rowColumns, quoteIdent(table))
	row := s.db.QueryRowContext(ctx, query, catalog.NormalizeEmail(email))
	var out registration.Row
	if err := scanRow(row.Scan, &out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

// Rows returns every row in the table in insertion order.
func (s *PostgresStore) Rows(ctx context.Context, table string) ([]registration.Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY ts ASC`, rowColumns, quoteIdent(table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registration.Row
	for rows.Next() {
		var r registration.Row
		if err := scanRow(rows.Scan, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRow(scan func(dest ...any) error, r *registration.Row) error {
	return scan(&r.Timestamp, &r.FullName, &r.Email, &r.Phone,
		&r.College, &r.Department, &r.Year, &r.EventTitle, &r.EventID)
}
