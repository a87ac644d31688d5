// Package inventory keeps a local SQLite catalog of uploaded archives.
//
// The catalog is a convenience mirror: the vault's own inventory is the
// source of truth, but Glacier inventory jobs take hours, so the operator
// queries the local copy and refreshes it on demand.
package inventory

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS archives (
	archive_id  TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_archives_description ON archives(description);
`

// Row is one cataloged archive.
type Row struct {
	ArchiveID   string
	Description string
	Size        int64
	UploadedAt  time.Time
}

// Catalog wraps a sql.DB with archive-catalog operations.
type Catalog struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database and applies the schema.
func Open(dsn string) (*Catalog, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("inventory: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("inventory: apply schema: %w", err)
	}
	return &Catalog{conn: conn}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// Record upserts one archive, keyed by archive ID.
func (c *Catalog) Record(archiveID, description string, size int64, uploadedAt time.Time) error {
	_, err := c.conn.Exec(`
		INSERT INTO archives (archive_id, description, size, uploaded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(archive_id) DO UPDATE SET
			description = excluded.description,
			size        = excluded.size,
			uploaded_at = excluded.uploaded_at
	`, archiveID, description, size, uploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("inventory: record %s: %w", archiveID, err)
	}
	return nil
}

// List returns every cataloged archive, newest upload first.
func (c *Catalog) List() ([]Row, error) {
	rows, err := c.conn.Query(`
		SELECT archive_id, description, size, uploaded_at
		FROM archives
		ORDER BY uploaded_at DESC, archive_id
	`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ArchiveID, &r.Description, &r.Size, &r.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Replace swaps the whole catalog for the given rows within a transaction,
// used after a remote inventory refresh.
func (c *Catalog) Replace(rows []Row) error {
	tx, err := c.conn.Begin()
	if err != nil {
		return fmt.Errorf("inventory: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM archives`); err != nil {
		return fmt.Errorf("inventory: clear: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO archives (archive_id, description, size, uploaded_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("inventory: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.ArchiveID, r.Description, r.Size, r.UploadedAt.UTC()); err != nil {
			return fmt.Errorf("inventory: insert %s: %w", r.ArchiveID, err)
		}
	}
	return tx.Commit()
}
