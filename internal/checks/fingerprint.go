package checks

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"webvulnscan/internal/models"
)

var techSignatures = map[string][]string{
	"WordPress": {"/wp-content/", "/wp-includes/", "wp-json", "wp-login.php"},
	"Drupal":    {"Drupal.settings", "/sites/default/", "drupal.js"},
	"Django":    {"csrfmiddlewaretoken", "__admin__", "django-debug-toolbar"},
	"Flask":     {"Werkzeug", "flask.pocoo.org"},
	"Laravel":   {"laravel_session", "/vendor/laravel/", "Laravel"},
}

var jsLibraries = []string{"jquery", "angular", "react", "vue"}

// Fingerprint reports the server software, frameworks and script libraries a page reveals.
type Fingerprint struct{}

func (Fingerprint) Name() string { return "fingerprint" }

func (Fingerprint) Applies(fr *models.FetchResult) bool { return fr.OK() }

func (Fingerprint) Run(fr *models.FetchResult) ([]models.Finding, error) {
	found := make(map[string]struct{})
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			found[s] = struct{}{}
		}
	}

	add(fr.Header.Get("Server"))
	add(fr.Header.Get("X-Powered-By"))

	haystack := fr.Body
	for _, ck := range fr.Header.Values("Set-Cookie") {
		haystack += "\n" + ck
	}
	haystack += "\n" + fr.Header.Get("Server") + "\n" + fr.Header.Get("X-Powered-By")
	for tech, sigs := range techSignatures {
		for _, sig := range sigs {
			if strings.Contains(haystack, sig) {
				add(tech)
				break
			}
		}
	}

	if fr.HasBody && fr.IsHTML() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fr.Body))
		if err != nil {
			return nil, err
		}
		if gen, ok := doc.Find(`meta[name="generator"]`).First().Attr("content"); ok {
			add(gen)
		}
		doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			src = strings.ToLower(src)
			for _, lib := range jsLibraries {
				if strings.Contains(src, lib) {
					add(lib)
				}
			}
		})
	}

	if len(found) == 0 {
		return nil, nil
	}
	techs := make([]string, 0, len(found))
	for t := range found {
		techs = append(techs, t)
	}
	sort.Strings(techs)

	return []models.Finding{{
		Type:        models.TypeTechnologyFingerprint,
		URL:         fr.URL,
		Severity:    models.SeverityInfo,
		Description: "Detected technologies: " + strings.Join(techs, ", "),
		Evidence:    strings.Join(techs, ", "),
		Remediation: "Remove version banners and framework-identifying artifacts where possible",
		Confidence:  0.8,
	}}, nil
}
