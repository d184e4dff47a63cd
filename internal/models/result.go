package models

import "time"

// ScanState is the orchestrator state machine position.
type ScanState string

const (
	StateIdle      ScanState = "idle"
	StateRunning   ScanState = "running"
	StateCompleted ScanState = "completed"
	StateFailed    ScanState = "failed"
	StateTimedOut  ScanState = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s ScanState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// ModuleSummary aggregates one check or provider's activity over a scan.
type ModuleSummary struct {
	Executions int `json:"executions"`
	Findings   int `json:"findings"`
	Errors     int `json:"errors"`
}

// ScanStats records per-request outcomes absorbed during a scan.
type ScanStats struct {
	Requests            int               `json:"requests"`
	Errors              map[ErrorKind]int `json:"errors,omitempty"`
	RateLimited         int               `json:"rate_limited"`
	FilteredFindings    int               `json:"filtered_findings"`
	DuplicateFindings   int               `json:"duplicate_findings"`
	SimilarPagesSkipped int               `json:"similar_pages_skipped"`
}

// Service is one open port reported by a recon provider.
type Service struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol,omitempty"`
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
}

// HostReport is one host reported by a recon provider.
type HostReport struct {
	Address  string    `json:"address"`
	Status   string    `json:"status,omitempty"`
	Services []Service `json:"services,omitempty"`
}

// ReconReport is merged into the scan result without interpretation.
type ReconReport struct {
	Hosts []HostReport `json:"hosts"`
}

// ScanResult is the frozen outcome of one scan. It holds plain data only.
type ScanResult struct {
	ID             string                   `json:"id"`
	Target         string                   `json:"target"`
	State          ScanState                `json:"state"`
	Error          string                   `json:"error,omitempty"`
	Findings       []Finding                `json:"findings"`
	VisitedURLs    []string                 `json:"visited_urls"`
	URLsVisited    int                      `json:"urls_visited"`
	ChecksExecuted int                      `json:"checks_executed"`
	StartedAt      time.Time                `json:"started_at"`
	FinishedAt     time.Time                `json:"finished_at"`
	Duration       time.Duration            `json:"duration,format:nano"`
	Modules        map[string]ModuleSummary `json:"modules"`
	Stats          ScanStats                `json:"stats"`
	Recon          *ReconReport             `json:"recon,omitempty"`
}

// SeverityCounts tallies findings per severity.
func (r *ScanResult) SeverityCounts() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
