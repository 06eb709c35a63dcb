package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"patternguard/internal/logging"
)

// SQLiteStore persists cache entries under <root>/.patternguard/cache.db so
// repeated sessions over the same project skip re-extraction. Payloads are
// zstd-compressed JSON. Any decode failure is a miss, never a hard error.
type SQLiteStore struct {
	conn    *sql.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	logger  *logging.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS evidence_cache (
	path         TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	payload      BLOB NOT NULL,
	extracted_at TEXT NOT NULL,
	PRIMARY KEY (path, fingerprint)
);
`

// OpenStore opens or creates the persistent cache database for a project.
func OpenStore(root string, logger *logging.Logger) (*SQLiteStore, error) {
	dir := filepath.Join(root, ".patternguard")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .patternguard directory: %w", err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(storeSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &SQLiteStore{
		conn:    conn,
		encoder: encoder,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Get retrieves an entry. Corrupt or undecodable rows are deleted and
// reported as a miss.
func (s *SQLiteStore) Get(path, fingerprint string) (*Entry, bool) {
	var payload []byte
	var extractedAt string

	err := s.conn.QueryRow(`
		SELECT payload, extracted_at
		FROM evidence_cache
		WHERE path = ? AND fingerprint = ?
	`, path, fingerprint).Scan(&payload, &extractedAt)

	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Debug("Cache store lookup failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return nil, false
	}

	raw, err := s.decoder.DecodeAll(payload, nil)
	if err != nil {
		s.dropCorrupt(path, fingerprint, err)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.dropCorrupt(path, fingerprint, err)
		return nil, false
	}
	if entry.Fingerprint != fingerprint {
		s.dropCorrupt(path, fingerprint, fmt.Errorf("fingerprint mismatch"))
		return nil, false
	}

	if t, err := time.Parse(time.RFC3339, extractedAt); err == nil {
		entry.ExtractedAt = t
	}
	return &entry, true
}

// Put stores an entry, replacing any prior fingerprint for the same path.
func (s *SQLiteStore) Put(entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	payload := s.encoder.EncodeAll(raw, nil)

	// One row per path: a changed fingerprint replaces the old entry
	// rather than accumulating history.
	if _, err := s.conn.Exec("DELETE FROM evidence_cache WHERE path = ?", entry.Path); err != nil {
		return fmt.Errorf("failed to clear prior cache entry: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT OR REPLACE INTO evidence_cache (path, fingerprint, payload, extracted_at)
		VALUES (?, ?, ?, ?)
	`, entry.Path, entry.Fingerprint, payload, entry.ExtractedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Stats returns entry count and total payload bytes.
func (s *SQLiteStore) Stats() (entries int, bytes int64, err error) {
	err = s.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0)
		FROM evidence_cache
	`).Scan(&entries, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get cache stats: %w", err)
	}
	return entries, bytes, nil
}

// Close closes the database and codec resources.
func (s *SQLiteStore) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.conn.Close()
}

func (s *SQLiteStore) dropCorrupt(path, fingerprint string, cause error) {
	s.logger.Warn("Dropping corrupt cache entry", map[string]interface{}{
		"path":  path,
		"error": cause.Error(),
	})
	_, _ = s.conn.Exec("DELETE FROM evidence_cache WHERE path = ? AND fingerprint = ?", path, fingerprint)
}
