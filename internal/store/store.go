// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists lint diagnostics in a SQLite database so runs
// can be compared and queried after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openlint/biolint/pkg/types"
)

// Store manages the diagnostics SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at cfg.Path and ensures the schema
// exists.
func Open(cfg types.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("empty database path")
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			time TEXT NOT NULL,
			run_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			code TEXT NOT NULL,
			location TEXT,
			text TEXT,
			level INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_tool ON messages(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_code ON messages(code)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_run ON messages(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// NewRunID returns a fresh identifier grouping the messages of one lint
// invocation.
func NewRunID() string {
	return uuid.NewString()
}

// ReplaceTool atomically swaps the stored messages of one tool for the
// diagnostics of the latest run. Internal markers are never persisted.
func (s *Store) ReplaceTool(ctx context.Context, run, tool string, diags []types.Diagnostic) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE tool = ?`, tool); err != nil {
		return fmt.Errorf("deleting old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (id, time, run_id, tool, code, location, text, level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, d := range diags {
		if d.Severity == types.SeverityInternal {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			uuid.NewString(), now, run, tool, d.Code, d.Location, d.Body, int(d.Severity),
		)
		if err != nil {
			return fmt.Errorf("inserting message for %s: %w", tool, err)
		}
	}

	return tx.Commit()
}

// Messages returns the stored diagnostics for one tool, oldest first.
func (s *Store) Messages(ctx context.Context, tool string) ([]types.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, location, text, level FROM messages WHERE tool = ? ORDER BY time, id`, tool)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var diags []types.Diagnostic
	for rows.Next() {
		var d types.Diagnostic
		var level int
		if err := rows.Scan(&d.Code, &d.Location, &d.Body, &level); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		d.Severity = types.Severity(level)
		d.Tool = tool
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

// Stats summarizes the stored messages.
type Stats struct {
	Messages int            `json:"messages" yaml:"messages"`
	Tools    int            `json:"tools" yaml:"tools"`
	ByCode   map[string]int `json:"by_code" yaml:"by_code"`
	ByLevel  map[string]int `json:"by_level" yaml:"by_level"`
}

// Counts aggregates message totals by code and severity level.
func (s *Store) Counts(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByCode:  map[string]int{},
		ByLevel: map[string]int{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), count(DISTINCT tool) FROM messages`,
	).Scan(&stats.Messages, &stats.Tools)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT code, count(*) FROM messages GROUP BY code`)
	if err != nil {
		return nil, fmt.Errorf("counting by code: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("scanning code count: %w", err)
		}
		stats.ByCode[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	levelRows, err := s.db.QueryContext(ctx, `SELECT level, count(*) FROM messages GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("counting by level: %w", err)
	}
	defer levelRows.Close()
	for levelRows.Next() {
		var level, n int
		if err := levelRows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scanning level count: %w", err)
		}
		stats.ByLevel[types.Severity(level).String()] = n
	}
	return stats, levelRows.Err()
}
