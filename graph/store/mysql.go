package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// It is the shared backend for multi-user deployments where several editor
// processes save versions for the same apps.
//
// Schema:
//   - flow_versions: one row per (app_id, id); the graph is stored as JSON text
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore connects to MySQL and creates the schema if needed.
//
// The DSN follows the go-sql-driver format:
//
//	user:password@tcp(localhost:3306)/flows
//
// Never hardcode credentials; read the DSN from configuration
// (FLOWCTL_STORE_DSN for the CLI).
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{
		sqlStore: sqlStore{
			db:  db,
			now: time.Now,
			upsert: `
				INSERT INTO flow_versions (id, app_id, title, graph, is_published, created_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					title = VALUES(title),
					graph = VALUES(graph),
					is_published = VALUES(is_published),
					created_at = VALUES(created_at)
			`,
		},
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	versionsTable := `
		CREATE TABLE IF NOT EXISTS flow_versions (
			id VARCHAR(64) NOT NULL,
			app_id VARCHAR(255) NOT NULL,
			title VARCHAR(512) NOT NULL DEFAULT '',
			graph LONGTEXT NOT NULL,
			is_published TINYINT(1) NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (app_id, id),
			INDEX idx_app_created (app_id, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, versionsTable); err != nil {
		return fmt.Errorf("failed to create flow_versions table: %w", err)
	}
	return nil
}
