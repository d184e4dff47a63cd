// Package util holds the URL helpers shared by the crawler and the checks.
package util

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// ResolveURL resolves href against base. Empty hrefs, bare fragments and
// anything that is not http(s) after resolution yield nil.
func ResolveURL(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}

	rel, err := url.Parse(href)
	if err != nil {
		log.Debug().Str("href", href).Err(err).Msg("Failed to parse href")
		return nil
	}

	resolved := base.ResolveReference(rel)
	scheme := strings.ToLower(resolved.Scheme)
	if _, ok := defaultPorts[scheme]; !ok || resolved.Host == "" {
		return nil
	}
	return resolved
}

// Canonicalize returns a copy of u with a lowercase scheme and host, the
// default port and fragment removed, and an empty path replaced by "/".
func Canonicalize(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	c.Fragment = ""
	c.RawFragment = ""
	c.User = nil

	host := strings.ToLower(c.Hostname())
	port := c.Port()
	if port == defaultPorts[c.Scheme] {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		c.Host = host + ":" + port
	} else {
		c.Host = host
	}

	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return &c
}

// CanonicalString parses raw and returns its canonical string form.
func CanonicalString(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if _, ok := defaultPorts[strings.ToLower(u.Scheme)]; !ok || u.Host == "" {
		return "", fmt.Errorf("unsupported url %q", raw)
	}
	return Canonicalize(u).String(), nil
}

// Origin returns scheme://host[:port] with default ports elided.
func Origin(u *url.URL) string {
	c := Canonicalize(u)
	if c == nil {
		return ""
	}
	return c.Scheme + "://" + c.Host
}

// SameOrigin reports whether a and b share scheme, host and effective port.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return Origin(a) == Origin(b)
}

// PathFilter rejects URLs whose request URI matches one of its patterns.
type PathFilter struct {
	patterns []*regexp.Regexp
}

// NewPathFilter compiles the given patterns.
func NewPathFilter(patterns []string) (*PathFilter, error) {
	f := &PathFilter{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid excluded path %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Excluded reports whether u matches any pattern.
func (f *PathFilter) Excluded(u *url.URL) bool {
	if f == nil || u == nil {
		return false
	}
	uri := u.RequestURI()
	for _, re := range f.patterns {
		if re.MatchString(uri) {
			return true
		}
	}
	return false
}
