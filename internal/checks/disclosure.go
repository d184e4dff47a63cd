package checks

import (
	"fmt"
	"regexp"
	"strings"

	"webvulnscan/internal/models"
)

type disclosurePattern struct {
	name       string
	re         *regexp.Regexp
	confidence float64
}

// Ordered most specific first so the strongest match survives deduplication.
var disclosurePatterns = []disclosurePattern{
	{"aws_key", regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`), 0.9},
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token)["']?\s*[:=]\s*["']?([a-zA-Z0-9]{32,})`), 0.8},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.7},
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), 0.7},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), 0.5},
}

var disclosureHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-AspNetMvc-Version"}

const maxMatchesShown = 3

// InfoDisclosure looks for sensitive data in the body and version banners in headers.
type InfoDisclosure struct{}

func (InfoDisclosure) Name() string { return "info_disclosure" }

func (InfoDisclosure) Applies(fr *models.FetchResult) bool {
	return fr.HasBody || len(fr.Header) > 0
}

func (InfoDisclosure) Run(fr *models.FetchResult) ([]models.Finding, error) {
	var findings []models.Finding

	if fr.HasBody {
		for _, p := range disclosurePatterns {
			matches := p.re.FindAllString(fr.Body, maxMatchesShown)
			if len(matches) == 0 {
				continue
			}
			findings = append(findings, models.Finding{
				Type:        models.TypeInformationDisclosure,
				URL:         fr.URL,
				Severity:    models.SeverityMedium,
				Description: fmt.Sprintf("Found potential %s disclosure", p.name),
				Evidence:    truncate(strings.Join(matches, ", "), maxEvidence),
				Remediation: "Remove or mask sensitive information",
				Confidence:  p.confidence,
			})
		}
	}

	var banners []string
	for _, h := range disclosureHeaders {
		if v := fr.Header.Get(h); v != "" {
			banners = append(banners, h+": "+v)
		}
	}
	if len(banners) > 0 {
		findings = append(findings, models.Finding{
			Type:        models.TypeInformationDisclosure,
			URL:         fr.URL,
			Severity:    models.SeverityLow,
			Description: "Server information disclosed in response headers",
			Evidence:    strings.Join(banners, "; "),
			Remediation: "Remove or customize server information headers",
			Confidence:  0.9,
		})
	}
	return findings, nil
}
