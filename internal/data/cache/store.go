// Package cache stores generated descriptor text keyed by the content hash of
// the input dump and the output-affecting configuration. A hit replays the
// stored output and diagnostics without walking.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflscan/internal/engine/diagnostic"
	"reflscan/internal/shared/observability"
	"reflscan/internal/shared/util"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Entry struct {
	Key         string
	PrimaryFile string
	Format      string
	Output      string
	Records     int
	Counts      map[string]int // records per directive
	Diagnostics []diagnostic.Diagnostic
	CreatedAt   time.Time
	HitCount    int
}

// Key derives the cache key of one run.
func Key(input []byte, fingerprint string) string {
	return util.HashBytes(input, []byte{0}, []byte(fingerprint))
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL keep concurrent generate and watch runs from failing on locks.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get looks up key and bumps its hit counter. The boolean is false on a miss.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		entry     Entry
		createdTS string
	)
	err := s.withRetry("load entry", func() error {
		return s.db.QueryRowContext(ctx, `
SELECT cache_key, primary_file, format, output, record_count, created_at_utc, hit_count
FROM entries WHERE cache_key = ?`, key).Scan(
			&entry.Key,
			&entry.PrimaryFile,
			&entry.Format,
			&entry.Output,
			&entry.Records,
			&createdTS,
			&entry.HitCount,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		observability.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return Entry{}, false, nil
	}
	if err != nil {
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		return Entry{}, false, err
	}

	created, err := time.Parse(time.RFC3339Nano, createdTS)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse entry timestamp %q: %w", createdTS, err)
	}
	entry.CreatedAt = created.UTC()

	diags, err := s.loadDiagnostics(ctx, key)
	if err != nil {
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		return Entry{}, false, err
	}
	entry.Diagnostics = diags

	counts, err := s.loadCounts(ctx, key)
	if err != nil {
		observability.CacheLookupsTotal.WithLabelValues("error").Inc()
		return Entry{}, false, err
	}
	entry.Counts = counts

	if err := s.withRetry("record hit", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE entries SET hit_count = hit_count + 1, last_hit_utc = ? WHERE cache_key = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), key)
		return err
	}); err != nil {
		return Entry{}, false, err
	}
	entry.HitCount++

	observability.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry, true, nil
}

func (s *Store) loadDiagnostics(ctx context.Context, key string) ([]diagnostic.Diagnostic, error) {
	var rows *sql.Rows
	err := s.withRetry("load diagnostics", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT severity, kind, file, line, col, message, declaration
FROM diagnostics WHERE cache_key = ? ORDER BY seq ASC`, key)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diags []diagnostic.Diagnostic
	for rows.Next() {
		var (
			d        diagnostic.Diagnostic
			severity int
			kind     string
		)
		if err := rows.Scan(&severity, &kind, &d.File, &d.Line, &d.Column, &d.Message, &d.Declaration); err != nil {
			return nil, fmt.Errorf("scan diagnostic row: %w", err)
		}
		d.Severity = diagnostic.Severity(severity)
		d.Kind = diagnostic.Kind(kind)
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostic rows: %w", err)
	}
	return diags, nil
}

func (s *Store) loadCounts(ctx context.Context, key string) (map[string]int, error) {
	var rows *sql.Rows
	err := s.withRetry("load directive counts", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `SELECT directive, count FROM directive_counts WHERE cache_key = ?`, key)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			directive string
			n         int
		)
		if err := rows.Scan(&directive, &n); err != nil {
			return nil, fmt.Errorf("scan directive count row: %w", err)
		}
		counts[directive] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate directive count rows: %w", err)
	}
	return counts, nil
}

// Put stores or replaces an entry together with its diagnostics.
func (s *Store) Put(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(entry.Key) == "" {
		return fmt.Errorf("cache key must not be empty")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	return s.withRetry("save entry", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
INSERT INTO entries (cache_key, primary_file, format, output, record_count, created_at_utc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
  primary_file=excluded.primary_file,
  format=excluded.format,
  output=excluded.output,
  record_count=excluded.record_count,
  created_at_utc=excluded.created_at_utc
`,
			entry.Key,
			entry.PrimaryFile,
			entry.Format,
			entry.Output,
			entry.Records,
			entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM diagnostics WHERE cache_key = ?`, entry.Key); err != nil {
			return err
		}
		for i, d := range entry.Diagnostics {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO diagnostics (cache_key, seq, severity, kind, file, line, col, message, declaration)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				entry.Key, i, int(d.Severity), string(d.Kind), d.File, d.Line, d.Column, d.Message, d.Declaration,
			); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM directive_counts WHERE cache_key = ?`, entry.Key); err != nil {
			return err
		}
		for _, directive := range util.SortedStringKeys(entry.Counts) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO directive_counts (cache_key, directive, count) VALUES (?, ?, ?)`,
				entry.Key, directive, entry.Counts[directive],
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Prune keeps the newest keep entries and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := s.withRetry("prune entries", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM entries WHERE cache_key NOT IN (
  SELECT cache_key FROM entries ORDER BY created_at_utc DESC, cache_key ASC LIMIT ?
)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.withRetry("count entries", func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	})
	return n, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// IsCorruptError reports errors that mean the cache file should be discarded.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
