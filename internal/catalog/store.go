package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO

	weberrors "github.com/Aman-CERP/webkb/internal/errors"
)

// Store is a SQLite-backed URL Catalog. It is the sole owner of
// CatalogEntry lifecycle (spec §3): claim/mark operations run one at a
// time under mu over a single-writer connection pool, mirroring the
// teacher's SQLiteBM25Index posture for concurrent access.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks a catalog database for corruption before
// opening it, mirroring the teacher's validateSQLiteIntegrity pattern.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='catalog_entries'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("catalog_entries table missing")
	}

	return nil
}

// Open opens (creating if absent) the catalog database at path. An empty
// path opens an in-memory catalog, used by tests.
func Open(path string) (*Store, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, weberrors.Corruption("failed to create catalog directory", err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("catalog_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, weberrors.Corruption("catalog corrupted and cannot be removed", removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("catalog_cleared", slog.String("path", path), slog.String("reason", "corruption detected"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, weberrors.Corruption("failed to open catalog database", err)
	}

	// Single writer; SQLite serializes writes, bursty concurrent writers
	// just queue behind busy_timeout instead of erroring out.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, weberrors.Corruption("failed to set catalog pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, weberrors.Corruption("failed to initialize catalog schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_entries (
		url_hash        TEXT PRIMARY KEY,
		url             TEXT NOT NULL,
		kind            TEXT NOT NULL,
		status          TEXT NOT NULL,
		priority        INTEGER NOT NULL DEFAULT 50,
		discovered_from TEXT,
		title           TEXT,
		added_at        TEXT NOT NULL,
		last_fetched_at TEXT,
		next_refresh_at TEXT,
		retry_count     INTEGER NOT NULL DEFAULT 0,
		last_error      TEXT,
		refresh_policy  TEXT NOT NULL DEFAULT 'days:30'
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_status_priority
		ON catalog_entries(status, priority DESC, added_at ASC);

	CREATE INDEX IF NOT EXISTS idx_catalog_refresh
		ON catalog_entries(status, next_refresh_at);

	CREATE TABLE IF NOT EXISTS api_call_log (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		api_name        TEXT NOT NULL,
		timestamp       TEXT NOT NULL,
		success         INTEGER NOT NULL,
		latency_ms      INTEGER NOT NULL,
		remaining_quota INTEGER
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InsertIfAbsent inserts each entry whose url_hash isn't already present.
// It never updates an existing row via this path (spec §4.1). entries
// must already have URLHash, URL, Kind, Priority, RefreshPolicy, AddedAt
// populated; Status defaults to pending.
func (s *Store) InsertIfAbsent(ctx context.Context, entries []Entry) (InsertCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return InsertCounts{}, fmt.Errorf("catalog is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertCounts{}, weberrors.Transient("failed to begin catalog transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO catalog_entries
			(url_hash, url, kind, status, priority, discovered_from, title,
			 added_at, last_fetched_at, next_refresh_at, retry_count, last_error, refresh_policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)
	`)
	if err != nil {
		return InsertCounts{}, weberrors.Transient("failed to prepare insert", err)
	}
	defer stmt.Close()

	var counts InsertCounts
	for _, e := range entries {
		status := e.Status
		if status == "" {
			status = StatusPending
		}
		addedAt := e.AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now().UTC()
		}

		res, err := stmt.ExecContext(ctx,
			e.URLHash, e.URL, string(e.Kind), string(status), e.Priority,
			nullIfEmpty(e.DiscoveredFrom), nullIfEmpty(e.Title),
			formatTime(addedAt), formatTimePtr(e.LastFetchedAt), formatTimePtr(e.NextRefreshAt),
			e.RefreshPolicy.String(),
		)
		if err != nil {
			return InsertCounts{}, weberrors.Transient("failed to insert catalog entry", err)
		}
		n, _ := res.RowsAffected()
		if n > 0 {
			counts.Added++
		} else {
			counts.SkippedDuplicate++
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertCounts{}, weberrors.Transient("failed to commit catalog insert", err)
	}
	return counts, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ClaimBatch returns up to n pending entries ordered by priority DESC,
// added_at ASC (spec §4.1). The query runs under the Store's mutex, but
// it only reads: the returned entries stay pending until MarkFetched or
// MarkFailed changes them, and there is no "in-flight" status. A second
// ClaimBatch call made before then returns the same entries again, so
// two concurrent workers can claim the same entry.
func (s *Store) ClaimBatch(ctx context.Context, n int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url_hash, url, kind, status, priority, discovered_from, title,
		       added_at, last_fetched_at, next_refresh_at, retry_count, last_error, refresh_policy
		FROM catalog_entries
		WHERE status = ?
		ORDER BY priority DESC, added_at ASC
		LIMIT ?
	`, string(StatusPending), n)
	if err != nil {
		return nil, weberrors.Transient("failed to query claim batch", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, weberrors.Corruption("failed to scan catalog entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, weberrors.Transient("claim batch query iteration failed", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var kind, status, refreshPolicy string
	var discoveredFrom, title, lastError sql.NullString
	var addedAt string
	var lastFetchedAt, nextRefreshAt sql.NullString

	if err := rows.Scan(
		&e.URLHash, &e.URL, &kind, &status, &e.Priority, &discoveredFrom, &title,
		&addedAt, &lastFetchedAt, &nextRefreshAt, &e.RetryCount, &lastError, &refreshPolicy,
	); err != nil {
		return Entry{}, err
	}

	e.Kind = Kind(kind)
	e.Status = Status(status)
	e.DiscoveredFrom = discoveredFrom.String
	e.Title = title.String
	e.AddedAt = parseTime(addedAt)
	e.LastFetchedAt = parseTimePtr(lastFetchedAt)
	e.NextRefreshAt = parseTimePtr(nextRefreshAt)
	e.LastError = lastError.String
	e.RefreshPolicy = ParseRefreshPolicy(refreshPolicy)

	return e, nil
}

// MarkFetched transitions an entry to fetched, recording when it was
// fetched and when it is next due for refresh.
func (s *Store) MarkFetched(ctx context.Context, urlHash string, when time.Time, nextRefreshAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE catalog_entries
		SET status = ?, last_fetched_at = ?, next_refresh_at = ?, last_error = NULL
		WHERE url_hash = ?
	`, string(StatusFetched), formatTime(when), formatTimePtr(nextRefreshAt), urlHash)
	if err != nil {
		return weberrors.Transient("failed to mark fetched", err)
	}
	return nil
}

// MarkFailed increments retry_count and records the error; transitions to
// failed once retry_count exceeds maxRetries, otherwise returns to pending
// so the Queue Processor can retry it later.
func (s *Store) MarkFailed(ctx context.Context, urlHash string, errText string, when time.Time, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return weberrors.Transient("failed to begin mark-failed transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var retryCount int
	if err := tx.QueryRowContext(ctx, `SELECT retry_count FROM catalog_entries WHERE url_hash = ?`, urlHash).Scan(&retryCount); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown url_hash: %s", urlHash)
		}
		return weberrors.Transient("failed to read retry count", err)
	}

	retryCount++
	status := StatusPending
	if retryCount > maxRetries {
		status = StatusFailed
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE catalog_entries
		SET status = ?, retry_count = ?, last_error = ?
		WHERE url_hash = ?
	`, string(status), retryCount, errText, urlHash); err != nil {
		return weberrors.Transient("failed to mark failed", err)
	}

	return tx.Commit()
}

// DueForRefresh returns up to limit fetched entries whose refresh policy
// is not "never" and whose next_refresh_at has passed.
func (s *Store) DueForRefresh(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT url_hash, url, kind, status, priority, discovered_from, title,
		       added_at, last_fetched_at, next_refresh_at, retry_count, last_error, refresh_policy
		FROM catalog_entries
		WHERE status = ? AND refresh_policy != 'never' AND next_refresh_at IS NOT NULL AND next_refresh_at <= ?
		ORDER BY next_refresh_at ASC
		LIMIT ?
	`, string(StatusFetched), formatTime(now), limit)
	if err != nil {
		return nil, weberrors.Transient("failed to query due-for-refresh", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, weberrors.Corruption("failed to scan catalog entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear bulk-deletes entries matching the given status filter. Fetched
// entries are never touched by this path (spec §4.1).
func (s *Store) Clear(ctx context.Context, filter StatusFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("catalog is closed")
	}

	var statuses []string
	if filter.Pending {
		statuses = append(statuses, string(StatusPending))
	}
	if filter.Failed {
		statuses = append(statuses, string(StatusFailed))
	}
	if len(statuses) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, st := range statuses {
		placeholders[i] = "?"
		args[i] = st
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM catalog_entries WHERE status IN (%s)`, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return 0, weberrors.Transient("failed to clear catalog entries", err)
	}
	return res.RowsAffected()
}

// DeleteAll wipes the catalog entirely. Callers must pair this with a
// Vector Index wipe (spec §4.1).
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog is closed")
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM catalog_entries`)
	if err != nil {
		return weberrors.Transient("failed to delete all catalog entries", err)
	}
	return nil
}

// Get returns a single entry by url_hash, or false if absent.
func (s *Store) Get(ctx context.Context, urlHash string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Entry{}, false, fmt.Errorf("catalog is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT url_hash, url, kind, status, priority, discovered_from, title,
		       added_at, last_fetched_at, next_refresh_at, retry_count, last_error, refresh_policy
		FROM catalog_entries WHERE url_hash = ?
	`, urlHash)

	var e Entry
	var kind, status, refreshPolicy string
	var discoveredFrom, title, lastError sql.NullString
	var addedAt string
	var lastFetchedAt, nextRefreshAt sql.NullString

	err := row.Scan(&e.URLHash, &e.URL, &kind, &status, &e.Priority, &discoveredFrom, &title,
		&addedAt, &lastFetchedAt, &nextRefreshAt, &e.RetryCount, &lastError, &refreshPolicy)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, weberrors.Transient("failed to get catalog entry", err)
	}

	e.Kind = Kind(kind)
	e.Status = Status(status)
	e.DiscoveredFrom = discoveredFrom.String
	e.Title = title.String
	e.AddedAt = parseTime(addedAt)
	e.LastFetchedAt = parseTimePtr(lastFetchedAt)
	e.NextRefreshAt = parseTimePtr(nextRefreshAt)
	e.LastError = lastError.String
	e.RefreshPolicy = ParseRefreshPolicy(refreshPolicy)
	return e, true, nil
}

// Count returns counts of entries by status, for the status operation.
func (s *Store) Count(ctx context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM catalog_entries GROUP BY status`)
	if err != nil {
		return nil, weberrors.Transient("failed to count catalog entries", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, weberrors.Corruption("failed to scan status count", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// CountByKind returns counts of entries by kind, for the status
// operation's "catalog counts by status and kind" (spec §6).
func (s *Store) CountByKind(ctx context.Context) (map[Kind]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM catalog_entries GROUP BY kind`)
	if err != nil {
		return nil, weberrors.Transient("failed to count catalog entries by kind", err)
	}
	defer rows.Close()

	counts := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, weberrors.Corruption("failed to scan kind count", err)
		}
		counts[Kind(kind)] = n
	}
	return counts, rows.Err()
}

// RecordAPICall appends a row to api_call_log, used only for quota
// surfacing (spec §3 ApiCall) — never consulted on the hot path.
func (s *Store) RecordAPICall(ctx context.Context, apiName string, when time.Time, success bool, latencyMS int64, remainingQuota *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("catalog is closed")
	}

	var quota sql.NullInt64
	if remainingQuota != nil {
		quota = sql.NullInt64{Int64: int64(*remainingQuota), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_call_log (api_name, timestamp, success, latency_ms, remaining_quota)
		VALUES (?, ?, ?, ?, ?)
	`, apiName, formatTime(when), boolToInt(success), latencyMS, quota)
	if err != nil {
		return weberrors.Transient("failed to record api call", err)
	}
	return nil
}

// QuotaSnapshot returns the most recently recorded remaining_quota for
// every api_name that has ever reported one, for the status operation
// (spec §6: "status() -> {..., quota snapshot}"). APIs that never
// reported a remaining quota are omitted.
func (s *Store) QuotaSnapshot(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("catalog is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT api_name, remaining_quota FROM api_call_log AS a
		WHERE remaining_quota IS NOT NULL
		AND id = (
			SELECT MAX(id) FROM api_call_log AS b
			WHERE b.api_name = a.api_name AND b.remaining_quota IS NOT NULL
		)
	`)
	if err != nil {
		return nil, weberrors.Transient("failed to query quota snapshot", err)
	}
	defer rows.Close()

	snapshot := make(map[string]int)
	for rows.Next() {
		var name string
		var quota int
		if err := rows.Scan(&name, &quota); err != nil {
			return nil, weberrors.Corruption("failed to scan quota snapshot row", err)
		}
		snapshot[name] = quota
	}
	return snapshot, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Close closes the catalog database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
