package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type SqliteStore struct {
	db *sql.DB
}

func OpenSqliteStore(path string) (SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return SqliteStore{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	store, err := NewSqliteStore(db)
	if err != nil {
		db.Close()
		return SqliteStore{}, err
	}
	return store, nil
}

// NewSqliteStore takes ownership of `db`, creating the schema if needed.
func NewSqliteStore(db *sql.DB) (SqliteStore, error) {
	_, err := db.Exec(Schema)
	if err != nil {
		return SqliteStore{}, fmt.Errorf("%w: create schema: %w", ErrStorage, err)
	}
	return SqliteStore{db: db}, nil
}

func (s SqliteStore) Load(ctx context.Context) (Records, error) {
	rows, err := s.db.QueryContext(ctx, "select identity from download_history order by id")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	defer rows.Close()

	records := Records{}
	for rows.Next() {
		var identity string
		err := rows.Scan(&identity)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		records = append(records, identity)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return records, nil
}

// Append ignores an identity that is already recorded.
func (s SqliteStore) Append(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(
		ctx,
		"insert into download_history(identity, recorded_at) values (?, ?) on conflict(identity) do nothing",
		identity, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (s SqliteStore) Close() error {
	return s.db.Close()
}
