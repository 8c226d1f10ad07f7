package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"modelsync/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	metaFormatVersion = "format_version"
	metaSavedAt       = "saved_at"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cached_modules (
			build_id TEXT NOT NULL,
			path TEXT NOT NULL,
			position INTEGER NOT NULL,
			facts BLOB NOT NULL,
			PRIMARY KEY (build_id, path)
		);`,
		`CREATE TABLE IF NOT EXISTS cached_project (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			facts BLOB NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces every stored record in a single transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"cache_meta", "cached_modules", "cached_project"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	metaStmt, err := tx.PrepareContext(ctx, `INSERT INTO cache_meta (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer metaStmt.Close()
	if _, err := metaStmt.ExecContext(ctx, metaFormatVersion, strconv.Itoa(snap.FormatVersion)); err != nil {
		return err
	}
	if _, err := metaStmt.ExecContext(ctx, metaSavedAt, savedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	if snap.Project != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO cached_project (id, facts) VALUES (1, ?)`, snap.Project); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cached_modules (build_id, path, position, facts) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range snap.Modules {
		if _, err := stmt.ExecContext(ctx, m.Key.BuildID, m.Key.Path, i, m.Facts); err != nil {
			return fmt.Errorf("save module %s: %w", m.Key, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot returns nil without error when no snapshot was ever saved.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	rawVersion, ok := meta[metaFormatVersion]
	if !ok {
		return nil, nil
	}

	snap := &Snapshot{}
	snap.FormatVersion, err = strconv.Atoi(rawVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid format version %q: %w", rawVersion, err)
	}
	if raw, ok := meta[metaSavedAt]; ok {
		snap.SavedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}

	row := s.db.QueryRowContext(ctx, "SELECT facts FROM cached_project WHERE id = 1")
	if err := row.Scan(&snap.Project); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load project facts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT build_id, path, facts FROM cached_modules ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec ModuleRecord
		if err := rows.Scan(&rec.Key.BuildID, &rec.Key.Path, &rec.Facts); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		snap.Modules = append(snap.Modules, rec)
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM cache_meta")
	if err != nil {
		return nil, fmt.Errorf("failed to query cache meta: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// ModuleKeys lists the cached module keys in saved order.
func (s *SQLiteStore) ModuleKeys(ctx context.Context) ([]model.ModuleKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT build_id, path FROM cached_modules ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []model.ModuleKey
	for rows.Next() {
		var k model.ModuleKey
		if err := rows.Scan(&k.BuildID, &k.Path); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
