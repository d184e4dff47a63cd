package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

// ConfigError reports an invalid or missing configuration field. It is fatal
// and always surfaces before any network activity.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var supportedProxyProtocols = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// NormalizeTarget defaults a scheme-less target to https://.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if !strings.Contains(target, "://") {
		return "https://" + target
	}
	return target
}

// Validate normalizes the target and checks every field, returning all
// problems combined. Individual problems are *ConfigError values.
func (c *ScanConfig) Validate() error {
	var err error
	fail := func(field, reason string, args ...any) {
		err = multierr.Append(err, &ConfigError{Field: field, Reason: fmt.Sprintf(reason, args...)})
	}

	c.Target = NormalizeTarget(c.Target)
	if c.Target == "" {
		fail("target", "must not be empty")
	} else if u, perr := url.Parse(c.Target); perr != nil {
		fail("target", "cannot parse: %v", perr)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		fail("target", "unsupported scheme %q", u.Scheme)
	} else if u.Hostname() == "" {
		fail("target", "missing host")
	}

	if c.MaxDepth < 0 {
		fail("max_depth", "must be >= 0, got %d", c.MaxDepth)
	}
	if c.MaxURLs < 1 {
		fail("max_urls", "must be >= 1, got %d", c.MaxURLs)
	}
	if c.Concurrency < 1 {
		fail("concurrency", "must be >= 1, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond <= 0 {
		fail("requests_per_second", "must be > 0, got %v", c.RequestsPerSecond)
	}
	if c.Burst < 1 {
		fail("burst", "must be >= 1, got %d", c.Burst)
	}
	if c.RequestTimeout <= 0 {
		fail("request_timeout", "must be > 0")
	}
	if c.ScanTimeout <= 0 {
		fail("scan_timeout", "must be > 0")
	}
	if c.MaxRedirects < 0 {
		fail("max_redirects", "must be >= 0, got %d", c.MaxRedirects)
	}
	if c.MaxBodyBytes <= 0 {
		fail("max_body_bytes", "must be > 0")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		fail("min_confidence", "must be within [0,1], got %v", c.MinConfidence)
	}
	if c.SkipSimilarPages && (c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1) {
		fail("similarity_threshold", "must be within (0,1], got %v", c.SimilarityThreshold)
	}
	if c.AdaptiveRate.Enabled {
		if c.AdaptiveRate.Factor <= 0 || c.AdaptiveRate.Factor >= 1 {
			fail("adaptive_rate.factor", "must be within (0,1), got %v", c.AdaptiveRate.Factor)
		}
		if c.AdaptiveRate.Threshold < 1 || c.AdaptiveRate.Window < 1 {
			fail("adaptive_rate", "threshold and window must be >= 1")
		}
	}

	for i, pattern := range c.ExcludedPaths {
		if _, rerr := regexp.Compile(pattern); rerr != nil {
			fail(fmt.Sprintf("excluded_paths[%d]", i), "invalid pattern: %v", rerr)
		}
	}

	for i := range c.Proxies {
		p := &c.Proxies[i]
		field := fmt.Sprintf("proxies[%d]", i)
		if p.Protocol == "" {
			p.Protocol = "http"
		}
		p.Protocol = strings.ToLower(p.Protocol)
		if p.Host == "" {
			fail(field+".host", "must not be empty")
		}
		if p.Port < 1 || p.Port > 65535 {
			fail(field+".port", "out of range: %d", p.Port)
		}
		if !supportedProxyProtocols[p.Protocol] {
			fail(field+".protocol", "unsupported protocol %q", p.Protocol)
		}
	}
	if len(c.Proxies) > 0 && c.ProxyVerify.OnStart && c.ProxyVerify.Timeout <= 0 {
		fail("proxy_verify.timeout", "must be > 0")
	}

	for _, aerr := range c.Auth.validate() {
		err = multierr.Append(err, aerr)
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		fail("redis.url", "required when redis is enabled")
	}
	if c.BruteForce.Enabled {
		if len(c.BruteForce.Passwords) == 0 {
			fail("brute_force.passwords", "required when brute force is enabled")
		}
		if c.BruteForce.Username == "" {
			fail("brute_force.username", "required when brute force is enabled")
		}
	}
	return err
}

// Errors splits a Validate result into its individual problems.
func Errors(err error) []error {
	return multierr.Errors(err)
}
