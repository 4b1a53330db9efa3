// internal/output/sqlite.go
package output

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/steltix/newsgrab/pkg/types"
)

// SQLiteWriter upserts results keyed by URL into a local database file.
type SQLiteWriter struct {
	db    *sql.DB
	table string
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	title TEXT,
	author TEXT,
	author_raw TEXT,
	publish_date TEXT,
	content TEXT,
	extraction_method TEXT,
	http_status INTEGER,
	proxy_used INTEGER,
	extracted_at TEXT
)`

// NewSQLiteWriter opens or creates the database and ensures the table.
func NewSQLiteWriter(cfg Config) (*SQLiteWriter, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("sqlite output requires a file path")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.File+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(sqliteSchema, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &SQLiteWriter{db: db, table: table}, nil
}

func (w *SQLiteWriter) Write(results []*types.ArticleResult) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT OR REPLACE INTO %s
		 (url, title, author, author_raw, publish_date, content, extraction_method, http_status, proxy_used, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, w.table))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		var publishDate any
		if r.PublishDate != nil {
			publishDate = r.PublishDate.Format(time.RFC3339)
		}
		_, err := stmt.Exec(
			r.URL, r.Title, r.Author, r.AuthorRaw, publishDate, r.Content,
			r.Metadata.ExtractionMethod, r.Metadata.HTTPStatus, r.Metadata.ProxyUsed,
			r.ExtractedAt.Format(time.RFC3339),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", r.URL, err)
		}
	}
	return tx.Commit()
}

func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
