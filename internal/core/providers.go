package core

import (
	"context"
	"net"
	"net/url"
	"strconv"

	"webvulnscan/internal/checks"
	"webvulnscan/internal/config"
	"webvulnscan/internal/crawler"
	"webvulnscan/internal/metrics"
	"webvulnscan/internal/models"
)

// ReconProvider probes a host for open ports and services. Its report is
// attached to the result as-is.
type ReconProvider interface {
	Recon(ctx context.Context, host, ports string) (*models.ReconReport, error)
}

// BruteForceProvider tries a password list against one login service and
// returns a Weak-Credentials finding per accepted password.
type BruteForceProvider interface {
	BruteForce(ctx context.Context, host string, port int, username string, passwords []string) ([]models.Finding, error)
}

// ReconFunc adapts a function to ReconProvider.
type ReconFunc func(ctx context.Context, host, ports string) (*models.ReconReport, error)

func (f ReconFunc) Recon(ctx context.Context, host, ports string) (*models.ReconReport, error) {
	return f(ctx, host, ports)
}

// BruteForceFunc adapts a function to BruteForceProvider.
type BruteForceFunc func(ctx context.Context, host string, port int, username string, passwords []string) ([]models.Finding, error)

func (f BruteForceFunc) BruteForce(ctx context.Context, host string, port int, username string, passwords []string) ([]models.Finding, error) {
	return f(ctx, host, port, username, passwords)
}

// Option configures a Session.
type Option func(*Session)

// WithRecon sets the provider used when recon.enabled is set.
func WithRecon(p ReconProvider) Option {
	return func(s *Session) { s.recon = p }
}

// WithBruteForce sets the provider used when brute_force.enabled is set.
func WithBruteForce(p BruteForceProvider) Option {
	return func(s *Session) { s.bruteForce = p }
}

// WithChecks appends checks after the built-in ones.
func WithChecks(extra ...checks.Check) Option {
	return func(s *Session) { s.extraChecks = append(s.extraChecks, extra...) }
}

// WithMetrics records fetches, findings and skipped pages into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithVisitedStore mirrors the crawl into store instead of the configured Redis.
func WithVisitedStore(store crawler.VisitedStore) Option {
	return func(s *Session) { s.store = store }
}

// targetHost picks the provider host: the configured override, else the
// scan target's hostname.
func targetHost(override, target string) string {
	if override != "" {
		return override
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func bruteForceURL(cfg config.BruteForceConfig, host string) string {
	return "ssh://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}
