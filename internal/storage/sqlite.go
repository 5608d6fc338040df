package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := CheckLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; keeps the per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		// Inventory: read-only for dispatch, written by the seed import.
		`CREATE TABLE IF NOT EXISTS environments (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS connector_confs (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  name             TEXT NOT NULL UNIQUE,
  kind             TEXT NOT NULL,
  transport        TEXT NOT NULL DEFAULT 'local',
  address          TEXT NOT NULL DEFAULT '',
  port             INTEGER NOT NULL DEFAULT 22,
  user             TEXT NOT NULL DEFAULT '',
  password         TEXT NOT NULL DEFAULT '',
  private_key_path TEXT NOT NULL DEFAULT '',
  known_hosts_path TEXT NOT NULL DEFAULT '',
  inventory_path   TEXT NOT NULL DEFAULT '',
  work_dir         TEXT NOT NULL DEFAULT ''
);`,
		`CREATE TABLE IF NOT EXISTS environment_connectors (
  environment_id INTEGER NOT NULL REFERENCES environments(id) ON DELETE CASCADE,
  conf_id        INTEGER NOT NULL REFERENCES connector_confs(id) ON DELETE CASCADE,
  position       INTEGER NOT NULL,
  PRIMARY KEY (environment_id, conf_id)
);`,
		`CREATE TABLE IF NOT EXISTS servers (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  hostname       TEXT NOT NULL UNIQUE,
  ip             TEXT NOT NULL DEFAULT '',
  environment_id INTEGER NOT NULL REFERENCES environments(id)
);`,
		`CREATE TABLE IF NOT EXISTS applications (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS server_applications (
  server_id      INTEGER NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
  application_id INTEGER NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
  PRIMARY KEY (server_id, application_id)
);`,
		`CREATE TABLE IF NOT EXISTS inventory_groups (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  name    TEXT NOT NULL UNIQUE,
  conf_id INTEGER REFERENCES connector_confs(id) ON DELETE SET NULL
);`,
		`CREATE TABLE IF NOT EXISTS group_applications (
  group_id       INTEGER NOT NULL REFERENCES inventory_groups(id) ON DELETE CASCADE,
  application_id INTEGER NOT NULL REFERENCES applications(id) ON DELETE CASCADE,
  PRIMARY KEY (group_id, application_id)
);`,
		`CREATE TABLE IF NOT EXISTS playbooks (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  path TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE IF NOT EXISTS group_playbooks (
  group_id    INTEGER NOT NULL REFERENCES inventory_groups(id) ON DELETE CASCADE,
  playbook_id INTEGER NOT NULL REFERENCES playbooks(id) ON DELETE CASCADE,
  PRIMARY KEY (group_id, playbook_id)
);`,
		`CREATE TABLE IF NOT EXISTS inventory_imports (
  source      TEXT PRIMARY KEY,
  digest      TEXT NOT NULL,
  imported_at TEXT NOT NULL
);`,
		// Jobs.
		`CREATE TABLE IF NOT EXISTS jobs (
  id             TEXT PRIMARY KEY,
  action         TEXT NOT NULL,
  params         JSON,
  status         TEXT NOT NULL,
  submitted_by   TEXT NOT NULL,
  created_at     TEXT NOT NULL,
  claimed_by     TEXT,
  started_at     TEXT,
  completed_at   TEXT,
  result_status  TEXT,
  result_message TEXT,
  last_error     TEXT
);`,
		`CREATE TABLE IF NOT EXISTS job_servers (
  job_id    TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  server_id INTEGER NOT NULL REFERENCES servers(id),
  position  INTEGER NOT NULL,
  PRIMARY KEY (job_id, server_id)
);`,
		`CREATE TABLE IF NOT EXISTS job_progress (
  id         INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
  message    TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS jobs_status_created_at_idx ON jobs(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS job_progress_job_id_idx ON job_progress(job_id, id);`,
		`CREATE INDEX IF NOT EXISTS environment_connectors_position_idx ON environment_connectors(environment_id, position);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
