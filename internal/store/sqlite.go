// Package store records verification runs in SQLite so later runs can be
// compared against earlier ones.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/problem"
)

// Run is one stored verification of a plugin against a host
type Run struct {
	ID            int64         `json:"id"`
	PluginID      string        `json:"pluginId"`
	PluginVersion string        `json:"pluginVersion,omitempty"`
	HostVersion   string        `json:"hostVersion"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Classes       int           `json:"classes"`
	Errors        int           `json:"errors"`
	Warnings      int           `json:"warnings"`
	// Failure is the fatal error that stopped verification, if any
	Failure      string   `json:"failure,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens the database at path
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
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
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_id TEXT NOT NULL,
			plugin_version TEXT,
			host_version TEXT NOT NULL,
			started_at INTEGER,
			duration_ns INTEGER,
			classes INTEGER,
			errors INTEGER,
			warnings INTEGER,
			failure TEXT,
			dependencies JSON
		);`,
		`CREATE TABLE IF NOT EXISTS problems (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			kind TEXT,
			severity TEXT,
			class TEXT,
			member TEXT,
			target TEXT,
			description TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_plugin ON runs(plugin_id, host_version, id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Save stores the outcome with its problems and returns the new run id
func (s *SQLiteStore) Save(ctx context.Context, o *pipeline.Outcome) (int64, error) {
	var failure string
	if o.Err != nil {
		failure = o.Err.Error()
	}
	var dependencies []string
	if o.Graph != nil {
		for _, p := range o.Graph.Transitive() {
			dependencies = append(dependencies, p.String())
		}
	}
	deps, _ := json.Marshal(dependencies)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (plugin_id, plugin_version, host_version, started_at, duration_ns, classes, errors, warnings, failure, dependencies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.Task.Plugin.ID(), o.Task.Plugin.Version(), o.Task.Host.Version(), o.Started.UnixNano(), int64(o.Duration),
		o.Classes, len(o.Problems.Errors()), len(o.Problems.Warnings()), failure, deps)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO problems (run_id, seq, kind, severity, class, member, target, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, p := range o.Problems.All() {
		if _, err := stmt.ExecContext(ctx, runID, i, p.Kind.String(), p.Severity.String(),
			p.Location.Class, p.Location.Member, p.Target, p.Description); err != nil {
			return 0, fmt.Errorf("failed to insert problem: %w", err)
		}
	}

	return runID, tx.Commit()
}

// Latest returns up to n runs of a plugin, newest first. An empty hostVersion
// matches every host.
func (s *SQLiteStore) Latest(ctx context.Context, pluginID, hostVersion string, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plugin_id, plugin_version, host_version, started_at, duration_ns, classes, errors, warnings, failure, dependencies
		FROM runs
		WHERE plugin_id = ? AND (? = '' OR host_version = ?)
		ORDER BY id DESC
		LIMIT ?
	`, pluginID, hostVersion, hostVersion, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, duration int64
		var version, failure sql.NullString
		var deps []byte
		if err := rows.Scan(&r.ID, &r.PluginID, &version, &r.HostVersion, &started, &duration,
			&r.Classes, &r.Errors, &r.Warnings, &failure, &deps); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.PluginVersion = version.String
		r.Failure = failure.String
		r.Started = time.Unix(0, started)
		r.Duration = time.Duration(duration)
		if len(deps) > 0 {
			if err := json.Unmarshal(deps, &r.Dependencies); err != nil {
				return nil, fmt.Errorf("failed to read run %d: %w", r.ID, err)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Problems returns the problems of a run in their recorded order
func (s *SQLiteStore) Problems(ctx context.Context, runID int64) ([]problem.Problem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, severity, class, member, target, description
		FROM problems WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var out []problem.Problem
	for rows.Next() {
		var p problem.Problem
		var kind, severity string
		if err := rows.Scan(&kind, &severity, &p.Location.Class, &p.Location.Member, &p.Target, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		if p.Kind, err = problem.ParseKind(kind); err != nil {
			return nil, err
		}
		if err := p.Severity.UnmarshalText([]byte(severity)); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep runs of every plugin and host pair
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY plugin_id, host_version ORDER BY id DESC) AS rn
				FROM runs
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
