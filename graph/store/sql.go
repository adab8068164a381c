package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// sqlStore holds the query logic shared by the SQLite and MySQL stores.
// The dialects differ only in schema DDL and upsert syntax.
type sqlStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
	upsert string
}

const selectVersion = `
	SELECT id, app_id, title, graph, is_published, created_at
	FROM flow_versions
`

func (s *sqlStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveVersion implements Store.
func (s *sqlStore) SaveVersion(ctx context.Context, v Version) (Version, error) {
	if err := s.check(); err != nil {
		return Version{}, err
	}
	v, err := prepare(v, s.now)
	if err != nil {
		return Version{}, err
	}
	data, err := encodeGraph(v.Graph)
	if err != nil {
		return Version{}, fmt.Errorf("failed to marshal graph: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.upsert,
		v.ID, v.AppID, v.Title, data, v.IsPublished, v.CreatedAt.UnixNano())
	if err != nil {
		return Version{}, fmt.Errorf("failed to save version: %w", err)
	}
	return v, nil
}

// LoadVersion implements Store.
func (s *sqlStore) LoadVersion(ctx context.Context, appID, id string) (Version, error) {
	if err := s.check(); err != nil {
		return Version{}, err
	}
	row := s.db.QueryRowContext(ctx, selectVersion+" WHERE app_id = ? AND id = ?", appID, id)
	return scanVersion(row)
}

// LatestVersion implements Store.
func (s *sqlStore) LatestVersion(ctx context.Context, appID string) (Version, error) {
	if err := s.check(); err != nil {
		return Version{}, err
	}
	row := s.db.QueryRowContext(ctx,
		selectVersion+" WHERE app_id = ? ORDER BY created_at DESC, id DESC LIMIT 1", appID)
	return scanVersion(row)
}

// ListVersions implements Store.
func (s *sqlStore) ListVersions(ctx context.Context, appID string, limit int) ([]Version, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	query := selectVersion + " WHERE app_id = ? ORDER BY created_at DESC, id DESC"
	args := []any{appID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}
	return out, nil
}

// DeleteVersion implements Store.
func (s *sqlStore) DeleteVersion(ctx context.Context, appID, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM flow_versions WHERE app_id = ? AND id = ?", appID, id)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database. Double-close is a no-op.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (Version, error) {
	var (
		v         Version
		data      string
		createdAt int64
	)
	err := row.Scan(&v.ID, &v.AppID, &v.Title, &data, &v.IsPublished, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("failed to load version: %w", err)
	}

	v.Graph, err = decodeGraph(data)
	if err != nil {
		return Version{}, fmt.Errorf("failed to unmarshal graph: %w", err)
	}
	v.CreatedAt = time.Unix(0, createdAt).UTC()
	return v, nil
}
