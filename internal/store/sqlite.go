package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/loykin/sigsift/internal/registry"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path. An empty path
// uses an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS node_configs(
		node_id INTEGER PRIMARY KEY,
		mode TEXT NOT NULL,
		quality_sensitive INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	qs := 0
	if rec.QualitySensitive {
		qs = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO node_configs(node_id, mode, quality_sensitive, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET mode=excluded.mode,
			quality_sensitive=excluded.quality_sensitive,
			updated_at=excluded.updated_at`,
		int64(rec.NodeID), string(rec.Mode), qs, rec.UpdatedAt.UTC())
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id registry.NodeID) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT node_id, mode, quality_sensitive, updated_at
		FROM node_configs WHERE node_id = ?`, int64(id))
	return scanRecord(row.Scan)
}

func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id, mode, quality_sensitive, updated_at
		FROM node_configs ORDER BY node_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id registry.NodeID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM node_configs WHERE node_id = ?`, int64(id))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var rec Record
	var id int64
	var mode string
	var qs int
	if err := scan(&id, &mode, &qs, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.NodeID = registry.NodeID(id)
	rec.Mode = registry.Mode(mode)
	rec.QualitySensitive = qs != 0
	return rec, nil
}
