package checks

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"webvulnscan/internal/models"
)

const (
	// Values shorter than this reflect by coincidence too often to be trusted.
	minReflectedLen = 4
	scriptableTags  = "a, script, img"
)

var scriptableAttrs = []string{"src", "href", "onerror", "onload"}

// ReflectedParams flags query parameter values echoed verbatim in the page and
// markup carrying javascript: URLs.
type ReflectedParams struct{}

func (ReflectedParams) Name() string { return "reflected_params" }

func (ReflectedParams) Applies(fr *models.FetchResult) bool { return fr.HasBody && fr.IsHTML() }

func (ReflectedParams) Run(fr *models.FetchResult) ([]models.Finding, error) {
	var findings []models.Finding

	if u, err := url.Parse(fr.URL); err == nil {
		query := u.Query()
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, value := range query[name] {
				if value == "" || !strings.Contains(fr.Body, value) {
					continue
				}
				confidence := 0.75
				if len(value) < minReflectedLen {
					confidence = 0.4
				}
				findings = append(findings, models.Finding{
					Type:        models.TypeXSS,
					URL:         fr.URL,
					Severity:    models.SeverityHigh,
					Description: fmt.Sprintf("Query parameter %q is reflected in the response", name),
					Evidence:    truncate(fmt.Sprintf("%s=%s", name, value), maxEvidence),
					Remediation: "Encode user-controlled values for the HTML context they are written into",
					Confidence:  confidence,
				})
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fr.Body))
	if err != nil {
		return findings, err
	}
	doc.Find(scriptableTags).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range scriptableAttrs {
			v, ok := s.Attr(attr)
			if !ok || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), "javascript:") {
				continue
			}
			findings = append(findings, models.Finding{
				Type:        models.TypeXSS,
				URL:         fr.URL,
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("Unsafe %s attribute with a javascript: URL", attr),
				Evidence:    snippet(s),
				Remediation: "Remove javascript: URLs and inline handlers, or sanitize them",
				Confidence:  0.7,
			})
			return false
		}
		return true
	})
	return findings, nil
}
