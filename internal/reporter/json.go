package reporter

import (
	"bufio"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/afero"

	"webvulnscan/internal/models"
)

// JSONExporter writes the report as indented JSON.
type JSONExporter struct {
	fs         afero.Fs
	OutputPath string
}

// NewJSONExporter creates the output directory and returns the exporter.
func NewJSONExporter(fs afero.Fs, outputPath string) (*JSONExporter, error) {
	if err := ensureDir(fs, outputPath); err != nil {
		return nil, err
	}
	return &JSONExporter{fs: fs, OutputPath: outputPath}, nil
}

func (e *JSONExporter) Path() string { return e.OutputPath }

// Export generates and saves the JSON report.
func (e *JSONExporter) Export(res *models.ScanResult) error {
	file, err := e.fs.Create(e.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON report file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := json.MarshalWrite(w, NewReport(res), json.Deterministic(true), jsontext.WithIndent("  ")); err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	saved("json", e.OutputPath)
	return nil
}
