// Package reporter writes a finished ScanResult to disk.
package reporter

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"webvulnscan/internal/models"
)

// ScanSummary provides a high-level overview of the scan results.
type ScanSummary struct {
	TargetURL     string                  `json:"target_url"`
	State         models.ScanState        `json:"state"`
	ScanStartTime time.Time               `json:"scan_start_time"`
	ScanEndTime   time.Time               `json:"scan_end_time"`
	TotalDuration string                  `json:"total_duration"`
	URLsVisited   int                     `json:"urls_visited"`
	FindingsFound int                     `json:"findings_found"`
	BySeverity    map[models.Severity]int `json:"by_severity"`
}

// Report is the top-level structure of an exported report.
type Report struct {
	Summary ScanSummary        `json:"summary"`
	Result  *models.ScanResult `json:"result"`
}

// NewReport wraps a frozen result with its summary.
func NewReport(res *models.ScanResult) Report {
	return Report{
		Summary: ScanSummary{
			TargetURL:     res.Target,
			State:         res.State,
			ScanStartTime: res.StartedAt,
			ScanEndTime:   res.FinishedAt,
			TotalDuration: res.Duration.Round(time.Millisecond).String(),
			URLsVisited:   res.URLsVisited,
			FindingsFound: len(res.Findings),
			BySeverity:    res.SeverityCounts(),
		},
		Result: res,
	}
}

// Exporter writes a report for one result.
type Exporter interface {
	Export(res *models.ScanResult) error
	Path() string
}

// New returns the exporter for format ("json" or "txt") writing to path.
func New(fs afero.Fs, format, path string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONExporter(fs, path)
	case "txt", "text":
		return NewTxtExporter(fs, path)
	}
	return nil, fmt.Errorf("unsupported report format %q", format)
}

// DefaultPath names a report file inside dir after the scan ID.
func DefaultPath(dir, format string, res *models.ScanResult) string {
	ext := "json"
	if f := strings.ToLower(format); f == "txt" || f == "text" {
		ext = "txt"
	}
	return filepath.Join(dir, fmt.Sprintf("scan-%s.%s", res.ID, ext))
}

func ensureDir(fs afero.Fs, path string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

func saved(format, path string) {
	log.Info().Str("path", path).Str("format", format).Msg("Report saved")
}
