// Package db persists the predictor's training log in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dreamup/ui-locator/internal/frame"
	"github.com/dreamup/ui-locator/internal/predictor"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Database is an append-only SQLite training store. It implements predictor.Store.
type Database struct {
	db   *sql.DB
	path string
}

var _ predictor.Store = (*Database)(nil)

// New opens (creating if needed) the database at dbPath and initializes the schema
func New(dbPath string) (*Database, error) {
	dsn := MemoryPath
	if dbPath != MemoryPath {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// Pragmas in the DSN apply to every pooled connection
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == MemoryPath {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db, path: dbPath}, nil
}

// initSchema creates the necessary tables
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS training_samples (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		element_type TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_key ON training_samples(element_type, width, height, seq DESC);
	`

	_, err := db.Exec(schema)
	return err
}

// Path returns the path the database was opened with
func (d *Database) Path() string {
	return d.path
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database is reachable
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Append inserts a sample. A single INSERT is atomic, so a crash never leaves a partial row.
func (d *Database) Append(ctx context.Context, s predictor.Sample) error {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO training_samples (id, element_type, x, y, width, height, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.ElementType, s.Coords.X, s.Coords.Y, s.Resolution.Width, s.Resolution.Height, s.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples for the key, newest first
func (d *Database) Recent(ctx context.Context, elementType string, res frame.Resolution, limit int) ([]predictor.Sample, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, element_type, x, y, width, height, created_at
		FROM training_samples
		WHERE element_type = ? AND width = ? AND height = ?
		ORDER BY seq DESC
		LIMIT ?
	`, elementType, res.Width, res.Height, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []predictor.Sample
	for rows.Next() {
		var s predictor.Sample
		if err := rows.Scan(&s.ID, &s.ElementType, &s.Coords.X, &s.Coords.Y,
			&s.Resolution.Width, &s.Resolution.Height, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Stats counts samples per (element type, resolution)
func (d *Database) Stats(ctx context.Context) ([]predictor.KeyStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT element_type, width, height, COUNT(*)
		FROM training_samples
		GROUP BY element_type, width, height
		ORDER BY element_type, width, height
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	var stats []predictor.KeyStats
	for rows.Next() {
		var ks predictor.KeyStats
		if err := rows.Scan(&ks.ElementType, &ks.Resolution.Width, &ks.Resolution.Height, &ks.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, ks)
	}
	return stats, rows.Err()
}

// CountSamples returns the total number of stored samples
func (d *Database) CountSamples(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM training_samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// Compact keeps only the newest keepPerKey samples of every key and returns
// how many rows were removed. Samples outside the predictor window no longer
// affect predictions, so compacting to at least that window is lossless.
func (d *Database) Compact(ctx context.Context, keepPerKey int) (int64, error) {
	if keepPerKey < 1 {
		return 0, fmt.Errorf("keepPerKey must be positive, got %d", keepPerKey)
	}

	res, err := d.db.ExecContext(ctx, `
		DELETE FROM training_samples
		WHERE seq NOT IN (
			SELECT seq FROM (
				SELECT seq, ROW_NUMBER() OVER (
					PARTITION BY element_type, width, height ORDER BY seq DESC
				) AS rn
				FROM training_samples
			) WHERE rn <= ?
		)
	`, keepPerKey)
	if err != nil {
		return 0, fmt.Errorf("failed to compact samples: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if removed > 0 {
		if _, err := d.db.ExecContext(ctx, `VACUUM`); err != nil {
			return removed, fmt.Errorf("failed to vacuum: %w", err)
		}
	}
	return removed, nil
}

// Snapshot writes a consistent copy of the database to dest
func (d *Database) Snapshot(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot destination %s already exists", dest)
	}
	if _, err := d.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}
