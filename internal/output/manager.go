// internal/output/manager.go
package output

import (
	"fmt"

	"github.com/steltix/newsgrab/pkg/types"
)

// Manager resolves the configured sink and fans results into it.
type Manager struct {
	cfg Config
}

// NewManager validates the configuration up front so a bad sink fails at
// startup rather than after the first batch.
func NewManager(cfg Config) (*Manager, error) {
	switch cfg.Format {
	case FormatJSON, FormatCSV, FormatExcel:
		if cfg.File == "" {
			return nil, fmt.Errorf("%s output requires a file path", cfg.Format)
		}
	case FormatSQLite:
		if cfg.File == "" {
			return nil, fmt.Errorf("sqlite output requires a file path")
		}
	case FormatPostgres, FormatMySQL, FormatMongoDB:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("%s output requires a dsn", cfg.Format)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %q", cfg.Format)
	}
	return &Manager{cfg: cfg}, nil
}

// NewWriter opens a writer for the configured sink.
func (m *Manager) NewWriter() (Writer, error) {
	switch m.cfg.Format {
	case FormatJSON:
		return NewJSONWriter(m.cfg.File)
	case FormatCSV:
		return NewCSVWriter(m.cfg.File)
	case FormatExcel:
		return NewExcelWriter(m.cfg.File)
	case FormatSQLite:
		return NewSQLiteWriter(m.cfg)
	case FormatPostgres:
		return NewPostgresWriter(m.cfg)
	case FormatMySQL:
		return NewMySQLWriter(m.cfg)
	case FormatMongoDB:
		return NewMongoWriter(m.cfg)
	default:
		return nil, fmt.Errorf("unsupported output format: %q", m.cfg.Format)
	}
}

// Write opens the sink, writes one batch, and closes it.
func (m *Manager) Write(results []*types.ArticleResult) error {
	writer, err := m.NewWriter()
	if err != nil {
		return err
	}
	defer writer.Close()

	if err := writer.Write(results); err != nil {
		return fmt.Errorf("write %d results: %w", len(results), err)
	}
	return nil
}
