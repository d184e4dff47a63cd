package config

import (
	"fmt"
	"strings"
)

// AuthKind is the closed set of supported authentication strategies.
type AuthKind string

const (
	AuthNone  AuthKind = ""
	AuthBasic AuthKind = "basic"
	AuthForm  AuthKind = "form"
	AuthToken AuthKind = "jwt"
	AuthOAuth AuthKind = "oauth"
)

// ParseAuthKind maps a configuration string onto an AuthKind.
func ParseAuthKind(s string) (AuthKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AuthNone, nil
	case "basic":
		return AuthBasic, nil
	case "form":
		return AuthForm, nil
	case "jwt", "token", "bearer":
		return AuthToken, nil
	case "oauth", "oauth2", "client_credentials":
		return AuthOAuth, nil
	}
	return AuthNone, fmt.Errorf("unsupported auth type %q", s)
}

// AuthConfig specifies the authentication details for the target.
type AuthConfig struct {
	Type          AuthKind `mapstructure:"type"`
	Required      bool     `mapstructure:"required"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	Token         string   `mapstructure:"token"`
	LoginURL      string   `mapstructure:"login_url"`
	TokenURL      string   `mapstructure:"token_url"`
	ClientID      string   `mapstructure:"client_id"`
	ClientSecret  string   `mapstructure:"client_secret"`
	Scopes        []string `mapstructure:"scopes"`
	UsernameField string   `mapstructure:"username_field"`
	PasswordField string   `mapstructure:"password_field"`
}

// Enabled reports whether any strategy is selected.
func (a AuthConfig) Enabled() bool {
	return a.Type != AuthNone
}

func (a AuthConfig) validate() []error {
	var errs []error
	missing := func(field string) {
		errs = append(errs, &ConfigError{Field: "auth." + field, Reason: fmt.Sprintf("required for %s authentication", a.Type)})
	}
	switch a.Type {
	case AuthNone:
	case AuthBasic:
		if a.Username == "" {
			missing("username")
		}
		if a.Password == "" {
			missing("password")
		}
	case AuthForm:
		if a.LoginURL == "" {
			missing("login_url")
		}
		if a.Username == "" {
			missing("username")
		}
		if a.Password == "" {
			missing("password")
		}
	case AuthToken:
		if a.Token == "" && a.TokenURL == "" {
			errs = append(errs, &ConfigError{Field: "auth.token", Reason: "either token or token_url is required for jwt authentication"})
		}
		if a.Token == "" && a.TokenURL != "" && (a.Username == "" || a.Password == "") {
			missing("username/password")
		}
	case AuthOAuth:
		if a.Token == "" {
			if a.ClientID == "" {
				missing("client_id")
			}
			if a.ClientSecret == "" {
				missing("client_secret")
			}
			if a.TokenURL == "" {
				missing("token_url")
			}
		}
	default:
		errs = append(errs, &ConfigError{Field: "auth.type", Reason: fmt.Sprintf("unsupported auth type %q", a.Type)})
	}
	return errs
}
