package store

import (
	"context"
	"database/sql"
	"encoding/json"
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

// Filter constrains a chunk search by metadata equality (spec §4.2).
// Zero-value fields are ignored.
type Filter struct {
	Kind   string
	Domain string
}

func (f Filter) matches(c *Chunk) bool {
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Domain != "" && c.Domain != f.Domain {
		return false
	}
	return true
}

// SearchHit is one result of ChunkIndex.Search: a chunk plus its distance
// and derived similarity (spec §4.2: similarity = 1/(1+distance)).
type SearchHit struct {
	Chunk      *Chunk
	Distance   float32
	Similarity float32
}

// Stats summarizes the chunk index for the status operation (spec §6).
type Stats struct {
	ChunkCount    int
	DocumentCount int
	VectorCount   int
}

// ChunkIndex is the spec's Vector Index (§4.2): chunk metadata persisted in
// SQLite, embeddings held in a VectorStore, plus an optional BM25Index kept
// in lockstep for hybrid retrieval. It owns atomicity of delete_by_source_url
// across both stores.
type ChunkIndex struct {
	mu      sync.RWMutex
	db      *sql.DB
	vectors VectorStore
	lexical BM25Index
	path    string
	closed  bool
}

func validateChunkDBIntegrity(path string) error {
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
	return nil
}

// OpenChunkIndex opens the chunk metadata database at metaPath (empty for
// in-memory, used by tests) and wires it to vectors and an optional
// lexical index.
func OpenChunkIndex(metaPath string, vectors VectorStore, lexical BM25Index) (*ChunkIndex, error) {
	var dsn string
	if metaPath == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(metaPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, weberrors.Corruption("failed to create chunk store directory", err)
		}

		if validErr := validateChunkDBIntegrity(metaPath); validErr != nil {
			slog.Warn("chunk_store_corrupted", slog.String("path", metaPath), slog.String("error", validErr.Error()))
			if removeErr := os.Remove(metaPath); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, weberrors.Corruption("chunk store corrupted and cannot be removed", removeErr)
			}
			_ = os.Remove(metaPath + "-wal")
			_ = os.Remove(metaPath + "-shm")
			slog.Info("chunk_store_cleared", slog.String("path", metaPath), slog.String("reason", "corruption detected"))
		}

		dsn = metaPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, weberrors.Corruption("failed to open chunk store database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, weberrors.Corruption("failed to set chunk store pragma", err)
		}
	}

	idx := &ChunkIndex{db: db, vectors: vectors, lexical: lexical, path: metaPath}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, weberrors.Corruption("failed to initialize chunk store schema", err)
	}
	return idx, nil
}

func (c *ChunkIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunk_meta (
		id                 TEXT PRIMARY KEY,
		document_id        TEXT NOT NULL,
		chunk_index        INTEGER NOT NULL,
		total_chunks       INTEGER NOT NULL,
		text               TEXT NOT NULL,
		source_url         TEXT NOT NULL,
		kind               TEXT NOT NULL,
		domain             TEXT NOT NULL,
		content_hash       TEXT,
		http_last_modified TEXT,
		http_etag          TEXT,
		commit_id          TEXT,
		topics             TEXT,
		keywords           TEXT,
		summary            TEXT,
		concepts           TEXT,
		difficulty         TEXT,
		languages          TEXT,
		frameworks         TEXT,
		fetched_at         TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunk_meta_source_url ON chunk_meta(source_url);
	CREATE INDEX IF NOT EXISTS idx_chunk_meta_document_id ON chunk_meta(document_id);
	`
	_, err := c.db.Exec(schema)
	return err
}

func jsonList(items []string) sql.NullString {
	if len(items) == 0 {
		return sql.NullString{}
	}
	b, _ := json.Marshal(items)
	return sql.NullString{String: string(b), Valid: true}
}

func parseJSONList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(ns.String), &out)
	return out
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Add inserts or replaces chunks: metadata in SQLite, vectors in the
// VectorStore, and (if configured) text in the lexical index. A chunk
// whose ID already exists is fully replaced (spec §4.2 add is upsert-like
// for re-fetches of the same document).
func (c *ChunkIndex) Add(ctx context.Context, chunks []*Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(ctx, chunks)
}

// addLocked is Add's body, callable while c.mu is already held (by
// ReplaceBySourceURL, which needs delete-then-add to appear atomic to
// searchers).
func (c *ChunkIndex) addLocked(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if c.closed {
		return fmt.Errorf("chunk index is closed")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return weberrors.Transient("failed to begin chunk store transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunk_meta
			(id, document_id, chunk_index, total_chunks, text, source_url, kind, domain,
			 content_hash, http_last_modified, http_etag, commit_id,
			 topics, keywords, summary, concepts, difficulty, languages, frameworks, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return weberrors.Transient("failed to prepare chunk insert", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	docs := make([]*Document, 0, len(chunks))

	for _, ch := range chunks {
		_, err := stmt.ExecContext(ctx,
			ch.ID, ch.DocumentID, ch.ChunkIndex, ch.TotalChunks, ch.Text, ch.SourceURL, ch.Kind, ch.Domain,
			nullStr(ch.ContentHash), nullStr(ch.HTTPLastModified), nullStr(ch.HTTPETag), nullStr(ch.CommitID),
			jsonList(ch.Topics), jsonList(ch.Keywords), nullStr(ch.Summary), jsonList(ch.Concepts),
			nullStr(string(ch.Difficulty)), jsonList(ch.Languages), jsonList(ch.Frameworks),
			ch.FetchedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return weberrors.Transient("failed to insert chunk", err)
		}
		ids = append(ids, ch.ID)
		vectors = append(vectors, ch.Embedding)
		docs = append(docs, &Document{ID: ch.ID, Content: ch.Text})
	}

	if err := tx.Commit(); err != nil {
		return weberrors.Transient("failed to commit chunk metadata", err)
	}

	if err := c.vectors.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	if c.lexical != nil {
		if err := c.lexical.Index(ctx, docs); err != nil {
			return fmt.Errorf("index lexical: %w", err)
		}
	}
	return nil
}

// DeleteBySourceURL atomically removes every chunk belonging to url from
// metadata, the vector store, and the lexical index (spec §4.2).
func (c *ChunkIndex) DeleteBySourceURL(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteBySourceURLLocked(ctx, url)
}

// deleteBySourceURLLocked is DeleteBySourceURL's body, callable while
// c.mu is already held (see addLocked).
func (c *ChunkIndex) deleteBySourceURLLocked(ctx context.Context, url string) error {
	if c.closed {
		return fmt.Errorf("chunk index is closed")
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id FROM chunk_meta WHERE source_url = ?`, url)
	if err != nil {
		return weberrors.Transient("failed to query chunks for deletion", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return weberrors.Corruption("failed to scan chunk id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil
	}

	if _, err := c.db.ExecContext(ctx, `DELETE FROM chunk_meta WHERE source_url = ?`, url); err != nil {
		return weberrors.Transient("failed to delete chunk metadata", err)
	}
	if err := c.vectors.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if c.lexical != nil {
		if err := c.lexical.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete lexical: %w", err)
		}
	}
	return nil
}

// ReplaceBySourceURL atomically swaps every chunk for url: the prior set
// is deleted and the new set is added under a single lock acquisition,
// so a concurrent Search never observes url with zero chunks (spec §5:
// "delete_by_source_url then add must appear atomic to searchers").
func (c *ChunkIndex) ReplaceBySourceURL(ctx context.Context, url string, chunks []*Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deleteBySourceURLLocked(ctx, url); err != nil {
		return err
	}
	return c.addLocked(ctx, chunks)
}

// Search returns the k nearest chunks to queryVector, narrowed by filter
// and converted to similarity per spec §4.2 (similarity = 1/(1+distance)).
// Filtering happens after retrieval from the VectorStore, not inside it.
func (c *ChunkIndex) Search(ctx context.Context, queryVector []float32, k int, filter Filter) ([]*SearchHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}

	// Over-fetch to compensate for post-retrieval filtering.
	fetchK := k
	if filter.Kind != "" || filter.Domain != "" {
		fetchK = k * 4
		if fetchK < k+20 {
			fetchK = k + 20
		}
	}

	raw, err := c.vectors.Search(ctx, queryVector, fetchK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]*SearchHit, 0, k)
	for _, r := range raw {
		ch, ok, err := c.getChunk(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !filter.matches(ch) {
			continue
		}
		distance := r.Distance
		similarity := 1.0 / (1.0 + distance)
		hits = append(hits, &SearchHit{Chunk: ch, Distance: distance, Similarity: similarity})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// SearchVectorRaw exposes the underlying VectorStore's unfiltered,
// unhydrated nearest-neighbor search, for callers (the Retrieval Engine,
// spec §4.11) that need ranked IDs to feed Reciprocal Rank Fusion before
// deciding which hits to hydrate into full Chunk records.
func (c *ChunkIndex) SearchVectorRaw(ctx context.Context, queryVector []float32, k int) ([]*VectorResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}
	return c.vectors.Search(ctx, queryVector, k)
}

// SearchLexicalRaw exposes the configured BM25Index's ranked matches for
// query, or (nil, nil) if no lexical index is configured (spec §4.11:
// "missing lexical index ⇒ silently fall back to semantic-only").
func (c *ChunkIndex) SearchLexicalRaw(ctx context.Context, query string, k int) ([]*BM25Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}
	if c.lexical == nil {
		return nil, nil
	}
	return c.lexical.Search(ctx, query, k)
}

// GetByID returns a single chunk by id, hydrating a fused search hit
// (identified only by ChunkID) back into its full record.
func (c *ChunkIndex) GetByID(ctx context.Context, id string) (*Chunk, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, false, fmt.Errorf("chunk index is closed")
	}
	return c.getChunk(ctx, id)
}

// GetBySourceURL returns every chunk for url, ordered by chunk index.
func (c *ChunkIndex) GetBySourceURL(ctx context.Context, url string) ([]*Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}

	rows, err := c.db.QueryContext(ctx, chunkSelectColumns+` WHERE source_url = ? ORDER BY chunk_index ASC`, url)
	if err != nil {
		return nil, weberrors.Transient("failed to query chunks by source url", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// Count returns the total number of indexed chunks.
func (c *ChunkIndex) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, fmt.Errorf("chunk index is closed")
	}

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_meta`).Scan(&n); err != nil {
		return 0, weberrors.Transient("failed to count chunks", err)
	}
	return n, nil
}

// Stats reports aggregate index size for the status operation.
func (c *ChunkIndex) Stats(ctx context.Context) (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return Stats{}, fmt.Errorf("chunk index is closed")
	}

	var chunkCount, docCount int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_meta`).Scan(&chunkCount); err != nil {
		return Stats{}, weberrors.Transient("failed to count chunks", err)
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT document_id) FROM chunk_meta`).Scan(&docCount); err != nil {
		return Stats{}, weberrors.Transient("failed to count documents", err)
	}
	return Stats{ChunkCount: chunkCount, DocumentCount: docCount, VectorCount: c.vectors.Count()}, nil
}

// Close releases the underlying database and stores.
func (c *ChunkIndex) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.db.Close(); err != nil {
		return err
	}
	return c.vectors.Close()
}

const chunkSelectColumns = `SELECT
	id, document_id, chunk_index, total_chunks, text, source_url, kind, domain,
	content_hash, http_last_modified, http_etag, commit_id,
	topics, keywords, summary, concepts, difficulty, languages, frameworks, fetched_at
	FROM chunk_meta`

type scannable interface {
	Scan(dest ...any) error
}

func scanChunk(rows scannable) (*Chunk, error) {
	var (
		ch                                                   Chunk
		contentHash, lastModified, etag, commitID             sql.NullString
		topics, keywords, concepts, languages, frameworks     sql.NullString
		summary, difficulty                                   sql.NullString
		fetchedAt                                              string
	)
	if err := rows.Scan(
		&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.TotalChunks, &ch.Text, &ch.SourceURL, &ch.Kind, &ch.Domain,
		&contentHash, &lastModified, &etag, &commitID,
		&topics, &keywords, &summary, &concepts, &difficulty, &languages, &frameworks, &fetchedAt,
	); err != nil {
		return nil, weberrors.Corruption("failed to scan chunk row", err)
	}

	ch.ContentHash = contentHash.String
	ch.HTTPLastModified = lastModified.String
	ch.HTTPETag = etag.String
	ch.CommitID = commitID.String
	ch.Topics = parseJSONList(topics)
	ch.Keywords = parseJSONList(keywords)
	ch.Summary = summary.String
	ch.Concepts = parseJSONList(concepts)
	ch.Difficulty = Difficulty(difficulty.String)
	ch.Languages = parseJSONList(languages)
	ch.Frameworks = parseJSONList(frameworks)
	if t, err := time.Parse(time.RFC3339Nano, fetchedAt); err == nil {
		ch.FetchedAt = t
	}
	return &ch, nil
}

func (c *ChunkIndex) getChunk(ctx context.Context, id string) (*Chunk, bool, error) {
	row := c.db.QueryRowContext(ctx, chunkSelectColumns+` WHERE id = ?`, id)
	ch, err := scanChunk(row)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") || err == sql.ErrNoRows {
			return nil, false, nil
		}
		// sql.Row.Scan wraps sql.ErrNoRows without surfacing it directly
		// through scanChunk's weberrors wrapping, so also check the cause.
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return ch, true, nil
}

func isNoRows(err error) bool {
	for err != nil {
		if err == sql.ErrNoRows {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
