// Package models contains the data structures shared by the scanner components.
package models

import (
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies the outcome of a single HTTP exchange. Fetch failures are
// carried as values so downstream code always has a result to inspect.
type ErrorKind string

const (
	ErrNone              ErrorKind = ""
	ErrNetwork           ErrorKind = "network"
	ErrTLS               ErrorKind = "tls"
	ErrTimeout           ErrorKind = "timeout"
	ErrDNS               ErrorKind = "dns"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrHTTPStatus        ErrorKind = "http_status"
	ErrRedirectLoop      ErrorKind = "redirect_loop"
	ErrTooManyRedirects  ErrorKind = "too_many_redirects"
	ErrOffOriginRedirect ErrorKind = "off_origin_redirect"
	ErrInvalidURL        ErrorKind = "invalid_url"
	ErrCanceled          ErrorKind = "canceled"
)

// Unreachable reports whether the kind means the target could not be contacted at all.
func (k ErrorKind) Unreachable() bool {
	switch k {
	case ErrNetwork, ErrTLS, ErrDNS, ErrInvalidURL:
		return true
	}
	return false
}

// FetchResult is the immutable outcome of one fetch.
type FetchResult struct {
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url"`
	StatusCode int           `json:"status_code"`
	Kind       ErrorKind     `json:"error_kind,omitempty"`
	Err        string        `json:"error,omitempty"`
	Header     http.Header   `json:"headers,omitempty"`
	Body       string        `json:"-"`
	HasBody    bool          `json:"has_body"`
	Elapsed    time.Duration `json:"elapsed,format:nano"`
	Timestamp  time.Time     `json:"timestamp"`
}

// OK reports whether the exchange completed with a 2xx or 3xx status.
func (r *FetchResult) OK() bool {
	return r.Kind == ErrNone && r.StatusCode >= 200 && r.StatusCode < 400
}

// ContentType returns the media type of the response without parameters.
func (r *FetchResult) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsHTML reports whether the response carries an HTML document.
func (r *FetchResult) IsHTML() bool {
	ct := r.ContentType()
	if ct == "" {
		return r.HasBody && looksLikeHTML(r.Body)
	}
	return ct == "text/html" || ct == "application/xhtml+xml"
}

func looksLikeHTML(body string) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	head = strings.ToLower(strings.TrimSpace(head))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// IsTextual reports whether a media type is worth keeping as body text.
func IsTextual(contentType string) bool {
	if contentType == "" || strings.HasPrefix(contentType, "text/") {
		return true
	}
	for _, suffix := range []string{"json", "xml", "javascript", "ecmascript", "x-www-form-urlencoded"} {
		if strings.Contains(contentType, suffix) {
			return true
		}
	}
	return false
}
