package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Catalog indexes saved runs in SQLite so they can be queried without
// walking the run directories.
type Catalog struct {
	db *sql.DB
}

func OpenCatalog(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	c := &Catalog{db: db}
	if err := c.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) init(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			preset TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			size INTEGER NOT NULL,
			grids INTEGER NOT NULL,
			rule TEXT NOT NULL,
			errors INTEGER NOT NULL,
			metrics_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS runs_preset ON runs(preset, created_at);`,
	}
	for _, s := range stmts {
		if _, err := c.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("catalog init: %w", err)
		}
	}
	return nil
}

func (c *Catalog) Record(meta RunMetadata) error {
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO runs (id, preset, created_at, seed, ticks, size, grids, rule, errors, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Preset, meta.Timestamp.UnixMilli(), meta.Seed, meta.Ticks,
		meta.Size, meta.Grids, meta.Rule, len(meta.Errors), string(metrics),
	)
	return err
}

type Query struct {
	Preset string
	Limit  int
}

// List returns catalogued runs, newest first.
func (c *Catalog) List(ctx context.Context, q Query) ([]RunMetadata, error) {
	sqlText := `SELECT id, preset, created_at, seed, ticks, size, grids, rule, metrics_json FROM runs`
	var args []any
	if q.Preset != "" {
		sqlText += ` WHERE preset = ?`
		args = append(args, q.Preset)
	}
	sqlText += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		sqlText += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := c.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunMetadata
	for rows.Next() {
		var (
			m       RunMetadata
			created int64
			metrics string
		)
		if err := rows.Scan(&m.ID, &m.Preset, &created, &m.Seed, &m.Ticks, &m.Size, &m.Grids, &m.Rule, &metrics); err != nil {
			return nil, err
		}
		m.Timestamp = time.UnixMilli(created)
		if err := json.Unmarshal([]byte(metrics), &m.Metrics); err != nil {
			return nil, fmt.Errorf("run %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
