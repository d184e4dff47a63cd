// Package auth produces request credentials for the configured authentication strategy.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"webvulnscan/internal/config"
)

// AuthError reports a failed login or a strategy missing the fields it needs.
type AuthError struct {
	Strategy config.AuthKind
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %s: %v", e.Strategy, e.Reason, e.Err)
	}
	return fmt.Sprintf("auth %s: %s", e.Strategy, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Credentials is the material attached to every outgoing request.
type Credentials struct {
	Header  http.Header
	Cookies []*http.Cookie
}

// Empty reports whether there is nothing to attach.
func (c Credentials) Empty() bool {
	return len(c.Header) == 0 && len(c.Cookies) == 0
}

// Apply sets the credential headers and cookies on req.
func (c Credentials) Apply(req *http.Request) {
	for k, vs := range c.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, ck := range c.Cookies {
		req.AddCookie(ck)
	}
}

// Strategy is implemented by the four built-in login flows only.
type Strategy interface {
	Kind() config.AuthKind
	authenticate(ctx context.Context, client *http.Client) (Credentials, error)
}

// Provider runs a Strategy and caches the credentials it produced. There is no
// expiry; callers decide when to Refresh.
type Provider struct {
	strategy Strategy
	client   *http.Client

	mu     sync.RWMutex
	creds  Credentials
	cached bool
}

// New builds the provider for cfg. A nil client gets a default with a 30s timeout.
// With no strategy configured the provider is valid and yields empty credentials.
func New(cfg config.AuthConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	p := &Provider{client: client}

	switch cfg.Type {
	case config.AuthNone:
	case config.AuthBasic:
		p.strategy = &basicStrategy{username: cfg.Username, password: cfg.Password}
	case config.AuthForm:
		p.strategy = newFormStrategy(cfg)
	case config.AuthToken:
		p.strategy = &tokenStrategy{token: cfg.Token, tokenURL: cfg.TokenURL, username: cfg.Username, password: cfg.Password}
	case config.AuthOAuth:
		p.strategy = &oauthStrategy{
			token:        cfg.Token,
			tokenURL:     cfg.TokenURL,
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			scopes:       cfg.Scopes,
		}
	default:
		return nil, &AuthError{Strategy: cfg.Type, Reason: "unsupported strategy"}
	}
	return p, nil
}

// Enabled reports whether a strategy is configured.
func (p *Provider) Enabled() bool {
	return p != nil && p.strategy != nil
}

// Kind returns the configured strategy kind.
func (p *Provider) Kind() config.AuthKind {
	if !p.Enabled() {
		return config.AuthNone
	}
	return p.strategy.Kind()
}

// Authenticate returns cached credentials, logging in first if nothing is cached.
func (p *Provider) Authenticate(ctx context.Context) (Credentials, error) {
	if !p.Enabled() {
		return Credentials{}, nil
	}
	p.mu.RLock()
	if p.cached {
		creds := p.creds
		p.mu.RUnlock()
		return creds, nil
	}
	p.mu.RUnlock()
	return p.Refresh(ctx)
}

// Refresh logs in again and replaces the cached credentials. A failure leaves
// the previous credentials untouched and is never retried.
func (p *Provider) Refresh(ctx context.Context) (Credentials, error) {
	if !p.Enabled() {
		return Credentials{}, nil
	}
	creds, err := p.strategy.authenticate(ctx, p.client)
	if err != nil {
		log.Error().Err(err).Str("strategy", string(p.strategy.Kind())).Msg("Authentication failed")
		return Credentials{}, err
	}

	p.mu.Lock()
	p.creds = creds
	p.cached = true
	p.mu.Unlock()

	log.Info().Str("strategy", string(p.strategy.Kind())).Msg("Authenticated")
	return creds, nil
}

// Credentials returns the cached credentials without contacting the network.
func (p *Provider) Credentials() Credentials {
	if p == nil {
		return Credentials{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creds
}

func missingField(kind config.AuthKind, field string) *AuthError {
	return &AuthError{Strategy: kind, Reason: field + " is required"}
}

func bearer(token string) Credentials {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	return Credentials{Header: h}
}
