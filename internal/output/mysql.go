// internal/output/mysql.go
package output

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/steltix/newsgrab/pkg/types"
)

// MySQLWriter upserts results keyed by URL.
type MySQLWriter struct {
	db    *sql.DB
	table string
}

const mysqlSchema = `CREATE TABLE IF NOT EXISTS %s (
	url VARCHAR(2048) NOT NULL,
	url_hash CHAR(64) AS (SHA2(url, 256)) STORED,
	title TEXT,
	author TEXT,
	author_raw TEXT,
	publish_date DATETIME NULL,
	content LONGTEXT,
	extraction_method VARCHAR(32),
	http_status INT,
	proxy_used BOOLEAN,
	extracted_at DATETIME,
	PRIMARY KEY (url_hash)
)`

// NewMySQLWriter connects and ensures the table. URLs exceed MySQL's
// index length limit, so the primary key is a stored hash column.
func NewMySQLWriter(cfg Config) (*MySQLWriter, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql output requires a dsn")
	}
	table := cfg.Table
	if table == "" {
		table = "articles"
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf(mysqlSchema, table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &MySQLWriter{db: db, table: table}, nil
}

func (w *MySQLWriter) Write(results []*types.ArticleResult) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s
		 (url, title, author, author_raw, publish_date, content, extraction_method, http_status, proxy_used, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   title = VALUES(title),
		   author = VALUES(author),
		   author_raw = VALUES(author_raw),
		   publish_date = VALUES(publish_date),
		   content = VALUES(content),
		   extraction_method = VALUES(extraction_method),
		   http_status = VALUES(http_status),
		   proxy_used = VALUES(proxy_used),
		   extracted_at = VALUES(extracted_at)`, w.table))
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

func (w *MySQLWriter) Close() error {
	return w.db.Close()
}
