package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps every version in a single-file database and suits local
// development, the CLI and single-process editors. WAL mode is enabled so
// listings do not block behind a save.
//
// Schema:
//   - flow_versions: one row per (app_id, id); the graph is stored as JSON
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store.
//
// The path may be a file such as "./flows.db" or ":memory:" for a database
// that lives only as long as the store.
//
//	s, err := store.NewSQLiteStore("./flows.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time; a single connection also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		sqlStore: sqlStore{
			db:  db,
			now: time.Now,
			upsert: `
				INSERT INTO flow_versions (id, app_id, title, graph, is_published, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(app_id, id) DO UPDATE SET
					title = excluded.title,
					graph = excluded.graph,
					is_published = excluded.is_published,
					created_at = excluded.created_at
			`,
		},
		path: path,
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	versionsTable := `
		CREATE TABLE IF NOT EXISTS flow_versions (
			id TEXT NOT NULL,
			app_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			graph TEXT NOT NULL,
			is_published INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (app_id, id)
		)
	`
	if _, err := s.db.ExecContext(ctx, versionsTable); err != nil {
		return fmt.Errorf("failed to create flow_versions table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_flow_versions_app_created ON flow_versions(app_id, created_at)"); err != nil {
		return fmt.Errorf("failed to create idx_flow_versions_app_created: %w", err)
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}
