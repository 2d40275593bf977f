package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"zenith/internal/log"
)

// DefaultCollection is the row/key name the transaction collection is stored under.
const DefaultCollection = "zenith-txns"

// SQLitePersister stores the collection as one row of the collections table.
type SQLitePersister struct {
	db     *sql.DB
	name   string
	logger *log.Logger
}

func NewSQLitePersister(dbPath string, logger *log.Logger) (*SQLitePersister, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLitePersister{
		db:     db,
		name:   DefaultCollection,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (p *SQLitePersister) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM collections WHERE name = ?`, p.name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return payload, nil
}

// Save upserts the whole collection in a single statement.
func (p *SQLitePersister) Save(ctx context.Context, data []byte) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO collections (name, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		p.name, data)
	if err != nil {
		return fmt.Errorf("save collection: %w", err)
	}

	p.logger.DebugContext(ctx, "Collection saved to SQLite", "name", p.name, "bytes", len(data))
	return nil
}

func (p *SQLitePersister) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
