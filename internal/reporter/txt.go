package reporter

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/afero"

	"webvulnscan/internal/models"
)

const rule = "===================================\n"

// TxtExporter writes a plain-text report.
type TxtExporter struct {
	fs         afero.Fs
	OutputPath string
}

// NewTxtExporter creates the output directory and returns the exporter.
func NewTxtExporter(fs afero.Fs, outputPath string) (*TxtExporter, error) {
	if err := ensureDir(fs, outputPath); err != nil {
		return nil, err
	}
	return &TxtExporter{fs: fs, OutputPath: outputPath}, nil
}

func (e *TxtExporter) Path() string { return e.OutputPath }

// Export generates and saves the TXT report.
func (e *TxtExporter) Export(res *models.ScanResult) error {
	file, err := e.fs.Create(e.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create TXT report file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	WriteText(w, res)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write TXT report: %w", err)
	}
	saved("txt", e.OutputPath)
	return nil
}

// WriteText renders the plain-text report to w.
func WriteText(w io.Writer, res *models.ScanResult) {
	report := NewReport(res)
	summary := report.Summary

	fmt.Fprint(w, "Scan Report\n", rule)
	fmt.Fprint(w, "Summary\n", "-----------------------------------\n")
	fmt.Fprintf(w, "Target URL:        %s\n", summary.TargetURL)
	fmt.Fprintf(w, "State:             %s\n", summary.State)
	if res.Error != "" {
		fmt.Fprintf(w, "Error:             %s\n", res.Error)
	}
	fmt.Fprintf(w, "Scan Start Time:   %s\n", summary.ScanStartTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Scan End Time:     %s\n", summary.ScanEndTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Total Duration:    %s\n", summary.TotalDuration)
	fmt.Fprintf(w, "URLs Visited:      %d\n", summary.URLsVisited)
	fmt.Fprintf(w, "Checks Executed:   %d\n", res.ChecksExecuted)
	fmt.Fprintf(w, "Requests:          %d\n", res.Stats.Requests)
	fmt.Fprintf(w, "Findings:          %d\n", summary.FindingsFound)
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo} {
		if n := summary.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", sev+":", n)
		}
	}
	fmt.Fprint(w, rule)

	if len(res.Modules) > 0 {
		fmt.Fprint(w, "Modules\n", "-----------------------------------\n")
		names := make([]string, 0, len(res.Modules))
		for name := range res.Modules {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := res.Modules[name]
			fmt.Fprintf(w, "%-18s runs=%d findings=%d errors=%d\n", name, m.Executions, m.Findings, m.Errors)
		}
		fmt.Fprint(w, rule)
	}

	fmt.Fprint(w, "Findings\n", "-----------------------------------\n")
	if len(res.Findings) == 0 {
		fmt.Fprint(w, "\nNo findings.\n")
		return
	}
	for _, f := range res.Findings {
		fmt.Fprint(w, "\n")
		fmt.Fprintf(w, "Severity:     %s (confidence %.2f)\n", f.Severity, f.Confidence)
		fmt.Fprintf(w, "Type:         %s\n", f.Type)
		fmt.Fprintf(w, "URL:          %s\n", f.URL)
		fmt.Fprintf(w, "Description:  %s\n", f.Description)
		if f.Evidence != "" {
			fmt.Fprintf(w, "Evidence:     %s\n", f.Evidence)
		}
		if f.Remediation != "" {
			fmt.Fprintf(w, "Remediation:  %s\n", f.Remediation)
		}
		fmt.Fprint(w, "-----------------------------------\n")
	}
}
