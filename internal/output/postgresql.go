// internal/output/postgresql.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/steltix/newsgrab/pkg/types"
)

// PostgresWriter upserts results keyed by URL.
type PostgresWriter struct {
	db    *sql.DB
	table string
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	title TEXT,
	author TEXT,
	author_raw TEXT,
	publish_date TIMESTAMPTZ,
	content TEXT,
	extraction_method TEXT,
	http_status INTEGER,
	proxy_used BOOLEAN,
	extracted_at TIMESTAMPTZ
)`

// NewPostgresWriter connects and ensures the table.
func NewPostgresWriter(cfg Config) (*PostgresWriter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgresql output requires a dsn")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgresql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgresql: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(postgresSchema, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &PostgresWriter{db: db, table: table}, nil
}

func (w *PostgresWriter) Write(results []*types.ArticleResult) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s
		 (url, title, author, author_raw, publish_date, content, extraction_method, http_status, proxy_used, extracted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (url) DO UPDATE SET
		   title = EXCLUDED.title,
		   author = EXCLUDED.author,
		   author_raw = EXCLUDED.author_raw,
		   publish_date = EXCLUDED.publish_date,
		   content = EXCLUDED.content,
		   extraction_method = EXCLUDED.extraction_method,
		   http_status = EXCLUDED.http_status,
		   proxy_used = EXCLUDED.proxy_used,
		   extracted_at = EXCLUDED.extracted_at`, w.table))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		var publishDate *time.Time
		if r.PublishDate != nil {
			publishDate = r.PublishDate
		}
		_, err := stmt.Exec(
			r.URL, r.Title, r.Author, r.AuthorRaw, publishDate, r.Content,
			r.Metadata.ExtractionMethod, r.Metadata.HTTPStatus, r.Metadata.ProxyUsed,
			r.ExtractedAt,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", r.URL, err)
		}
	}
	return tx.Commit()
}

func (w *PostgresWriter) Close() error {
	return w.db.Close()
}
