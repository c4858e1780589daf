// Package store persists the citation counts that clients push to the
// server, so they survive restarts and can be consumed by the embedding
// application.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no citation count is stored for the entry.
var ErrNotFound = errors.New("citation count not found")

// CitationCount is one entry's citation count as last reported by a client.
type CitationCount struct {
	EntryID   string
	Count     int
	SourceURL string
	UpdatedAt time.Time
}

// DB wraps the SQLite database holding received citation counts.
type DB struct {
	conn *sql.DB
}

// Open opens the database at path, creating the schema if necessary.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS citation_counts (
	entry_id       TEXT PRIMARY KEY,
	citation_count INTEGER NOT NULL,
	source_url     TEXT NOT NULL DEFAULT '',
	updated_at     INTEGER NOT NULL
)`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertCitationCount records the latest count for an entry. Last write
// wins.
func (db *DB) UpsertCitationCount(entryID string, count int, sourceURL string) error {
	_, err := db.conn.Exec(`
		INSERT INTO citation_counts (entry_id, citation_count, source_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET
			citation_count = excluded.citation_count,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`,
		entryID, count, sourceURL, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert citation count: %w", err)
	}
	return nil
}

// GetCitationCount returns the stored count for an entry, or ErrNotFound.
func (db *DB) GetCitationCount(entryID string) (*CitationCount, error) {
	row := db.conn.QueryRow(`
		SELECT entry_id, citation_count, source_url, updated_at
		FROM citation_counts WHERE entry_id = ?`, entryID)

	cc, err := scanCitationCount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get citation count: %w", err)
	}
	return cc, nil
}

// ListCitationCounts returns all stored counts ordered by entry id.
func (db *DB) ListCitationCounts() ([]*CitationCount, error) {
	rows, err := db.conn.Query(`
		SELECT entry_id, citation_count, source_url, updated_at
		FROM citation_counts ORDER BY entry_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list citation counts: %w", err)
	}
	defer rows.Close()

	var counts []*CitationCount
	for rows.Next() {
		cc, err := scanCitationCount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan citation count: %w", err)
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCitationCount(row scanner) (*CitationCount, error) {
	var cc CitationCount
	var updatedAt int64
	if err := row.Scan(&cc.EntryID, &cc.Count, &cc.SourceURL, &updatedAt); err != nil {
		return nil, err
	}
	cc.UpdatedAt = time.UnixMilli(updatedAt)
	return &cc, nil
}
