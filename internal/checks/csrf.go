package checks

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"webvulnscan/internal/models"
)

var csrfFieldHints = []string{"csrf", "token", "_token", "nonce"}

// CSRF flags POST forms without an anti-forgery field.
type CSRF struct{}

func (CSRF) Name() string { return "csrf" }

func (CSRF) Applies(fr *models.FetchResult) bool { return fr.HasBody && fr.IsHTML() }

func (CSRF) Run(fr *models.FetchResult) ([]models.Finding, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fr.Body))
	if err != nil {
		return nil, err
	}

	var findings []models.Finding
	doc.Find("form").Each(func(i int, form *goquery.Selection) {
		method, _ := form.Attr("method")
		if !strings.EqualFold(strings.TrimSpace(method), "post") {
			return
		}
		protected := false
		form.Find("input[name]").EachWithBreak(func(_ int, input *goquery.Selection) bool {
			name, _ := input.Attr("name")
			name = strings.ToLower(name)
			for _, hint := range csrfFieldHints {
				if strings.Contains(name, hint) {
					protected = true
					return false
				}
			}
			return true
		})
		if protected {
			return
		}

		action, _ := form.Attr("action")
		findings = append(findings, models.Finding{
			Type:        models.TypeCSRF,
			URL:         fr.URL,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("POST form #%d (action %q) has no CSRF token field", i+1, action),
			Evidence:    snippet(form),
			Remediation: "Add a per-session anti-CSRF token to every state-changing form and verify it server-side",
			Confidence:  0.8,
		})
	})
	return findings, nil
}

const maxEvidence = 300

func snippet(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return truncate(html, maxEvidence)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
