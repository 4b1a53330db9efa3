// internal/output/types.go

// Package output persists extraction results. Every writer consumes the
// same flattened row shape, so adding a sink never touches the pipeline.
package output

import (
	"strconv"
	"time"

	"github.com/steltix/newsgrab/pkg/types"
)

// Format identifies an output sink.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatExcel    Format = "excel"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgresql"
	FormatMySQL    Format = "mysql"
	FormatMongoDB  Format = "mongodb"
)

// Config selects and parameterizes a sink. File applies to file formats,
// DSN to databases.
type Config struct {
	Format Format `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`

	DSN        string `yaml:"dsn" json:"dsn"`
	Table      string `yaml:"table" json:"table"`
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
}

// Writer is one result sink. Write may be called repeatedly before Close.
type Writer interface {
	Write(results []*types.ArticleResult) error
	Close() error
}

// columns is the flattened schema shared by the tabular sinks.
var columns = []string{
	"url",
	"title",
	"author",
	"author_raw",
	"publish_date",
	"content",
	"extraction_method",
	"http_status",
	"proxy_used",
	"extracted_at",
}

// row flattens one result in columns order.
func row(r *types.ArticleResult) []string {
	publishDate := ""
	if r.PublishDate != nil {
		publishDate = r.PublishDate.Format(time.RFC3339)
	}
	return []string{
		r.URL,
		r.Title,
		r.Author,
		r.AuthorRaw,
		publishDate,
		r.Content,
		r.Metadata.ExtractionMethod,
		strconv.Itoa(r.Metadata.HTTPStatus),
		strconv.FormatBool(r.Metadata.ProxyUsed),
		r.ExtractedAt.Format(time.RFC3339),
	}
}
