package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/chunkstore/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		metadata TEXT,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		char_count INTEGER NOT NULL DEFAULT 0,
		source_path TEXT,
		source_mtime INTEGER,
		source_size INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_source_path ON documents(source_path);

	CREATE TABLE IF NOT EXISTS document_entries (
		entry_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_entries_document ON document_entries(document_id, position);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocument inserts or extends a document and its entry ids in one transaction.
func (s *SQLiteLedger) RecordDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, metadata, chunk_count, char_count, source_path, source_mtime, source_size, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			metadata = excluded.metadata,
			chunk_count = documents.chunk_count + excluded.chunk_count,
			char_count = documents.char_count + excluded.char_count,
			source_path = excluded.source_path,
			source_mtime = excluded.source_mtime,
			source_size = excluded.source_size,
			updated_at = excluded.updated_at`,
		doc.ID, string(metadataJSON), doc.ChunkCount, doc.CharCount,
		nullString(doc.SourcePath), doc.SourceMtime, doc.SourceSize, doc.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}

	var base int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_entries WHERE document_id = ?`, doc.ID,
	).Scan(&base); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_entries (entry_id, document_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, id := range doc.EntryIDs {
		if _, err := stmt.ExecContext(ctx, id, doc.ID, base+i); err != nil {
			return fmt.Errorf("failed to record entry %s: %w", id, err)
		}
	}
	return tx.Commit()
}

const documentColumns = `id, metadata, chunk_count, char_count, COALESCE(source_path, ''),
	COALESCE(source_mtime, 0), COALESCE(source_size, 0), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var metadataJSON sql.NullString
	if err := row.Scan(&doc.ID, &metadataJSON, &doc.ChunkCount, &doc.CharCount,
		&doc.SourcePath, &doc.SourceMtime, &doc.SourceSize, &doc.CreatedAt); err != nil {
		return nil, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// GetDocument returns a document and its entry ids. Unknown ids yield models.ErrNotFound.
func (s *SQLiteLedger) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if doc.EntryIDs, err = s.entryIDs(ctx, id); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentBySource returns the most recently updated document ingested from path.
func (s *SQLiteLedger) GetDocumentBySource(ctx context.Context, path string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source_path = ?
		 ORDER BY updated_at DESC LIMIT 1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", models.ErrNotFound, path)
	}
	return doc, err
}

func (s *SQLiteLedger) entryIDs(ctx context.Context, docID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry_id FROM document_entries WHERE document_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDocuments returns documents, newest first, with offset and limit. Entry ids are not loaded.
func (s *SQLiteLedger) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteLedger) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of recorded index entries.
func (s *SQLiteLedger) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Ledger = (*SQLiteLedger)(nil)
