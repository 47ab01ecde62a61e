package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Database owns the SQLite connection used for job history.
//
// Usage:
//
//	database, err := db.Open(ctx, "/home/user/.diffusionto/history.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	repo := db.NewRepository(database)
type Database struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates the database file and its parent directories if needed,
// applies pending migrations, and returns a ready Database.
func Open(ctx context.Context, path string) (*Database, error) {
	return OpenWithConfig(ctx, DefaultConnectionConfig(path))
}

// OpenWithConfig is Open with a custom connection configuration.
func OpenWithConfig(ctx context.Context, config ConnectionConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dir := filepath.Dir(config.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// golang-migrate closes the connection it is given.
	migrateConn, err := OpenSQLite(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(migrateConn); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	conn, err := OpenSQLite(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Database{conn: conn, path: config.Path}, nil
}

// DB returns the underlying connection. Close the Database, not the
// returned handle.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conn
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. Calling Close twice is harmless.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	d.conn = nil
	return nil
}

func (d *Database) live() (*sql.DB, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return nil, fmt.Errorf("database connection is closed")
	}
	return d.conn, nil
}
