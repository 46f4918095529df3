package cache

import (
	"database/sql"
	"fmt"
)

const SchemaVersion = 2

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS entries (
  cache_key TEXT PRIMARY KEY,
  primary_file TEXT NOT NULL,
  format TEXT NOT NULL,
  output TEXT NOT NULL,
  record_count INTEGER NOT NULL DEFAULT 0,
  created_at_utc TEXT NOT NULL,
  last_hit_utc TEXT NOT NULL DEFAULT '',
  hit_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS diagnostics (
  cache_key TEXT NOT NULL REFERENCES entries(cache_key) ON DELETE CASCADE,
  seq INTEGER NOT NULL,
  severity INTEGER NOT NULL,
  kind TEXT NOT NULL,
  file TEXT NOT NULL DEFAULT '',
  line INTEGER NOT NULL DEFAULT 0,
  col INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL,
  declaration TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (cache_key, seq)
);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at_utc);
CREATE INDEX IF NOT EXISTS idx_entries_primary_file ON entries(primary_file);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS directive_counts (
  cache_key TEXT NOT NULL REFERENCES entries(cache_key) ON DELETE CASCADE,
  directive TEXT NOT NULL,
  count INTEGER NOT NULL,
  PRIMARY KEY (cache_key, directive)
);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
