// internal/output/json.go
package output

import (
	"encoding/json"
	"os"

	"github.com/steltix/newsgrab/pkg/types"
)

// JSONWriter appends results to a file as one indented JSON array per
// Write call. The full result record survives here, provenance included;
// the tabular sinks flatten.
type JSONWriter struct {
	filename string
	file     *os.File
}

// NewJSONWriter creates (truncating) the target file.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{filename: filename, file: file}, nil
}

func (w *JSONWriter) Write(results []*types.ArticleResult) error {
	encoder := json.NewEncoder(w.file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func (w *JSONWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
