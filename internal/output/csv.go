// internal/output/csv.go
package output

import (
	"encoding/csv"
	"os"

	"github.com/steltix/newsgrab/pkg/types"
)

// CSVWriter writes flattened rows with a header line.
type CSVWriter struct {
	file        *os.File
	writer      *csv.Writer
	wroteHeader bool
}

// NewCSVWriter creates (truncating) the target file.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{file: file, writer: csv.NewWriter(file)}, nil
}

func (w *CSVWriter) Write(results []*types.ArticleResult) error {
	if !w.wroteHeader {
		if err := w.writer.Write(columns); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	for _, r := range results {
		if err := w.writer.Write(row(r)); err != nil {
			return err
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

func (w *CSVWriter) Close() error {
	if w.file == nil {
		return nil
	}
	w.writer.Flush()
	err := w.file.Close()
	w.file = nil
	if flushErr := w.writer.Error(); flushErr != nil {
		return flushErr
	}
	return err
}
