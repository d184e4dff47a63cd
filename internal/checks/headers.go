package checks

import (
	"strings"

	"webvulnscan/internal/models"
)

var expectedHeaders = []string{
	"Strict-Transport-Security",
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Content-Security-Policy",
	"X-XSS-Protection",
}

// SecurityHeaders reports the hardening headers a response does not set.
type SecurityHeaders struct{}

func (SecurityHeaders) Name() string { return "security_headers" }

func (SecurityHeaders) Applies(fr *models.FetchResult) bool { return fr.Header != nil }

func (SecurityHeaders) Run(fr *models.FetchResult) ([]models.Finding, error) {
	var missing []string
	for _, h := range expectedHeaders {
		if strings.TrimSpace(fr.Header.Get(h)) == "" {
			missing = append(missing, h)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	return []models.Finding{{
		Type:        models.TypeMissingSecurityHeader,
		URL:         fr.URL,
		Severity:    models.SeverityMedium,
		Description: "Response is missing security headers: " + strings.Join(missing, ", "),
		Evidence:    "Missing: " + strings.Join(missing, ", "),
		Remediation: "Configure the server to send " + strings.Join(missing, ", "),
		Confidence:  0.9,
	}}, nil
}
