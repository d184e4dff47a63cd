package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Severity is the risk level of a finding, totally ordered by Rank.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Rank returns 5 for Critical down to 1 for Info, 0 for unknown values.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// ParseSeverity accepts any casing of the five severity names.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo} {
		if strings.EqualFold(s, string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Finding types produced by the built-in checks and providers.
const (
	TypeMissingSecurityHeader = "Missing-Security-Header"
	TypeCSRF                  = "CSRF"
	TypeXSS                   = "XSS"
	TypeInformationDisclosure = "Information-Disclosure"
	TypeTechnologyFingerprint = "Technology-Fingerprint"
	TypeWeakCredentials       = "Weak-Credentials"
)

// Finding is a single reported potential vulnerability. It is never mutated after creation.
type Finding struct {
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence"`
	Remediation string    `json:"remediation"`
	Confidence  float64   `json:"confidence"`
	Module      string    `json:"module"`
	Timestamp   time.Time `json:"timestamp"`
}

// FindingKey is the deduplication identity of a finding.
type FindingKey struct {
	Type     string
	URL      string
	Severity Severity
}

// Key returns the (type, URL, severity) identity.
func (f Finding) Key() FindingKey {
	return FindingKey{Type: f.Type, URL: f.URL, Severity: f.Severity}
}

// ClampConfidence bounds c to [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
