// Package sqliteblob implements domain.FileStore as rows of a single SQLite
// table, for deployments that prefer one database file to a directory.
package sqliteblob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Store keeps files in the files table.
type Store struct {
	db *sql.DB
}

var _ domain.FileStore = (*Store)(nil)

// Open opens (or creates) the database at path and runs migrations. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqliteblob: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteblob: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteblob: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			name       TEXT PRIMARY KEY,
			data       BLOB NOT NULL,
			size       INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	return err
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM files WHERE name = ?`, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sqliteblob: exists %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM files WHERE name = ?`, name).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("sqliteblob: read %s: %w", name, domain.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("sqliteblob: read %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (name, data, size, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, size = excluded.size, updated_at = excluded.updated_at
	`, name, data, len(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqliteblob: write %s: %w", name, err)
	}
	return nil
}

// List returns files whose name starts with prefix, sorted by name.
func (s *Store) List(ctx context.Context, prefix string) ([]domain.FileInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, size, updated_at FROM files WHERE substr(name, 1, ?) = ? ORDER BY name`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("sqliteblob: list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []domain.FileInfo
	for rows.Next() {
		var (
			info      domain.FileInfo
			updatedAt int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqliteblob: list scan: %w", err)
		}
		info.LastModified = time.UnixMilli(updatedAt)
		if strings.HasPrefix(info.Name, prefix) {
			out = append(out, info)
		}
	}
	return out, rows.Err()
}
