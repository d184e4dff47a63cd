// Package requester performs single HTTP exchanges on behalf of the crawler.
// Every request passes the shared rate limiter, picks up a proxy and carries
// the configured credentials; failures come back as FetchResult values.
package requester

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"webvulnscan/internal/auth"
	"webvulnscan/internal/config"
	"webvulnscan/internal/models"
	"webvulnscan/internal/proxy"
	"webvulnscan/internal/ratelimit"
	"webvulnscan/internal/util"
)

// Observer is told about every completed fetch.
type Observer func(*models.FetchResult)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithObserver registers a callback invoked after each fetch.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) {
		f.observers = append(f.observers, o)
	}
}

// Fetcher issues GET requests and follows redirects itself so every hop is
// rate limited and checked for loops.
type Fetcher struct {
	timeout      time.Duration
	maxRedirects int
	maxBody      int64
	userAgent    string
	verifyTLS    bool

	limiter *ratelimit.Limiter
	rotator *proxy.Rotator
	auth    *auth.Provider

	mu      sync.Mutex
	clients map[string]*http.Client

	observers []Observer
}

// NewFetcher builds a fetcher from the scan configuration. limiter, rotator and
// authProvider may be nil.
func NewFetcher(cfg *config.ScanConfig, limiter *ratelimit.Limiter, rotator *proxy.Rotator, authProvider *auth.Provider, opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:      cfg.RequestTimeout,
		maxRedirects: cfg.MaxRedirects,
		maxBody:      cfg.MaxBodyBytes,
		userAgent:    cfg.UserAgent,
		verifyTLS:    cfg.VerifyTLS,
		limiter:      limiter,
		rotator:      rotator,
		auth:         authProvider,
		clients:      make(map[string]*http.Client),
	}
	if f.timeout <= 0 {
		f.timeout = 10 * time.Second
	}
	if f.maxBody <= 0 {
		f.maxBody = 5 << 20
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. It never returns nil.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *models.FetchResult {
	return f.FetchFollowing(ctx, rawURL, nil)
}

// FetchFollowing is Fetch with a hook consulted before every redirect hop.
// follow receives the canonical next URL; when it returns false the 3xx
// response is returned as the result. Redirects leaving the origin of rawURL
// are never followed.
func (f *Fetcher) FetchFollowing(ctx context.Context, rawURL string, follow func(next string) bool) *models.FetchResult {
	start := time.Now()
	fr := &models.FetchResult{URL: rawURL, Timestamp: start}
	defer func() {
		fr.Elapsed = time.Since(start)
		for _, o := range f.observers {
			o(fr)
		}
	}()

	origin, err := url.Parse(rawURL)
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		fr.Kind = models.ErrInvalidURL
		fr.Err = fmt.Sprintf("invalid url %q", rawURL)
		return fr
	}

	current := origin
	seen := make(map[string]struct{})
	for hop := 0; ; hop++ {
		key := util.Canonicalize(current).String()
		if _, dup := seen[key]; dup {
			fr.Kind = models.ErrRedirectLoop
			fr.Err = "redirect loop at " + key
			return fr
		}
		seen[key] = struct{}{}
		fr.FinalURL = current.String()

		resp, kind, err := f.do(ctx, current, util.SameOrigin(current, origin))
		if err != nil {
			fr.Kind = kind
			fr.Err = err.Error()
			return fr
		}

		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			f.fill(fr, resp)
			return fr
		}

		drain(resp)
		stop := func(kind models.ErrorKind, msg string) *models.FetchResult {
			fr.StatusCode = resp.StatusCode
			fr.Header = resp.Header
			fr.Kind = kind
			fr.Err = msg
			return fr
		}

		next, perr := current.Parse(location)
		if perr == nil && next.Scheme != "http" && next.Scheme != "https" {
			perr = fmt.Errorf("unsupported scheme %q", next.Scheme)
		}
		switch {
		case perr != nil:
			return stop(models.ErrInvalidURL, fmt.Sprintf("invalid redirect location %q", location))
		case !util.SameOrigin(next, origin):
			return stop(models.ErrOffOriginRedirect, "redirect leaves origin for "+util.Origin(next))
		case hop >= f.maxRedirects:
			return stop(models.ErrTooManyRedirects, fmt.Sprintf("stopped after %d redirects", f.maxRedirects))
		}

		next.Fragment = ""
		if follow != nil && !follow(util.Canonicalize(next).String()) {
			log.Debug().Str("from", current.String()).Str("to", next.String()).Msg("Redirect target already claimed")
			return stop(models.ErrNone, "")
		}
		log.Debug().Str("from", current.String()).Str("to", next.String()).Msg("Following redirect")
		current = next
	}
}

// do sends one GET request for u, with credentials only when withAuth is set.
// On failure the returned kind classifies err.
func (f *Fetcher) do(ctx context.Context, u *url.URL, withAuth bool) (*http.Response, models.ErrorKind, error) {
	if f.limiter != nil && !f.limiter.Acquire(ctx, f.timeout) {
		if ctx.Err() != nil {
			return nil, models.ErrCanceled, ctx.Err()
		}
		return nil, models.ErrRateLimited, errors.New("rate limiter denied request")
	}

	client, err := f.clientFor(f.rotator.Next())
	if err != nil {
		return nil, models.ErrNetwork, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, models.ErrInvalidURL, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if withAuth && f.auth.Enabled() {
		f.auth.Credentials().Apply(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classify(ctx, err), err
	}
	return resp, models.ErrNone, nil
}

func (f *Fetcher) fill(fr *models.FetchResult, resp *http.Response) {
	defer resp.Body.Close()

	fr.StatusCode = resp.StatusCode
	fr.Header = resp.Header
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		fr.Kind = models.ErrHTTPStatus
		fr.Err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	if !models.IsTextual(fr.ContentType()) {
		io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBody))
		return
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		log.Debug().Err(err).Str("url", fr.FinalURL).Msg("Failed to read response body")
	}
	fr.Body = string(body)
	fr.HasBody = len(body) > 0
}

func (f *Fetcher) clientFor(p *models.Proxy) (*http.Client, error) {
	key := "direct"
	if p != nil {
		key = p.URL().String()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[key]; ok {
		return c, nil
	}

	transport, err := proxy.NewTransport(p, proxy.TransportOptions{
		DialTimeout:        f.timeout,
		InsecureSkipVerify: !f.verifyTLS,
	})
	if err != nil {
		return nil, err
	}
	c := &http.Client{
		Transport: transport,
		Timeout:   f.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	f.clients[key] = c
	return c, nil
}

// Close releases idle connections held by every transport.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		c.CloseIdleConnections()
	}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func classify(ctx context.Context, err error) models.ErrorKind {
	if ctx.Err() != nil {
		return models.ErrCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.ErrDNS
	}

	var (
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownCA) || errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr) || errors.As(err, &recordErr) || strings.Contains(err.Error(), "tls: ") {
		return models.ErrTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrTimeout
	}
	return models.ErrNetwork
}
