package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps entries in the cache_entries table.
// MySQL, PostgreSQL and SQLite are supported.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) schema() string {
	switch s.db.DriverName() {
	case "mysql":
		return `CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key VARCHAR(255) NOT NULL PRIMARY KEY,
	value MEDIUMTEXT NOT NULL
)`
	default:
		return `CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key VARCHAR(255) NOT NULL PRIMARY KEY,
	value TEXT NOT NULL
)`
	}
}

func (s *SQLStore) upsertQuery() string {
	switch s.db.DriverName() {
	case "mysql":
		return `INSERT INTO cache_entries (cache_key, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`
	default:
		return s.db.Rebind(`INSERT INTO cache_entries (cache_key, value) VALUES (?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value`)
	}
}

// Migrate creates the cache_entries table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema()); err != nil {
		return fmt.Errorf("db.ExecContext(create cache_entries) > %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind("SELECT value FROM cache_entries WHERE cache_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(cache_entry) > %w", err)
	}
	return []byte(value), nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, string(value)); err != nil {
		return fmt.Errorf("db.ExecContext(upsert cache_entry) > %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM cache_entries WHERE cache_key = ?"), key); err != nil {
		return fmt.Errorf("db.ExecContext(delete cache_entry) > %w", err)
	}
	return nil
}

func (s *SQLStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys,
		s.db.Rebind("SELECT cache_key FROM cache_entries WHERE cache_key LIKE ? ESCAPE '!' ORDER BY cache_key"),
		escapeLike(prefix)+"%",
	); err != nil {
		return nil, fmt.Errorf("db.SelectContext(cache_entries) > %w", err)
	}
	return keys, nil
}

// escapeLike escapes LIKE wildcards in a literal prefix with the '!' escape character.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '!':
			out = append(out, '!')
		}
		out = append(out, s[i])
	}
	return string(out)
}
