package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"webvulnscan/internal/config"
)

var (
	csrfMetaNames  = []string{"csrf-token", "_csrf_token"}
	csrfInputNames = []string{"csrf_token", "_csrf_token"}
)

type formStrategy struct {
	loginURL      string
	username      string
	password      string
	usernameField string
	passwordField string
}

func newFormStrategy(cfg config.AuthConfig) *formStrategy {
	s := &formStrategy{
		loginURL:      cfg.LoginURL,
		username:      cfg.Username,
		password:      cfg.Password,
		usernameField: cfg.UsernameField,
		passwordField: cfg.PasswordField,
	}
	if s.usernameField == "" {
		s.usernameField = "username"
	}
	if s.passwordField == "" {
		s.passwordField = "password"
	}
	return s
}

func (s *formStrategy) Kind() config.AuthKind { return config.AuthForm }

func (s *formStrategy) authenticate(ctx context.Context, base *http.Client) (Credentials, error) {
	switch {
	case s.loginURL == "":
		return Credentials{}, missingField(config.AuthForm, "login_url")
	case s.username == "":
		return Credentials{}, missingField(config.AuthForm, "username")
	case s.password == "":
		return Credentials{}, missingField(config.AuthForm, "password")
	}
	loginURL, err := url.Parse(s.loginURL)
	if err != nil {
		return Credentials{}, &AuthError{Strategy: config.AuthForm, Reason: "invalid login_url", Err: err}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return Credentials{}, &AuthError{Strategy: config.AuthForm, Reason: "cookie jar", Err: err}
	}
	client := *base
	client.Jar = jar
	client.CheckRedirect = nil

	tokenField, token, err := s.fetchCSRFToken(ctx, &client)
	if err != nil {
		return Credentials{}, err
	}

	form := url.Values{}
	form.Set(s.usernameField, s.username)
	form.Set(s.passwordField, s.password)
	if token != "" {
		form.Set(tokenField, token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, &AuthError{Strategy: config.AuthForm, Reason: "build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return Credentials{}, &AuthError{Strategy: config.AuthForm, Reason: "login request", Err: err}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Credentials{}, &AuthError{Strategy: config.AuthForm, Reason: fmt.Sprintf("login returned status %d", resp.StatusCode)}
	}

	cookies := jar.Cookies(loginURL)
	if resp.Request != nil && resp.Request.URL.Host != loginURL.Host {
		cookies = append(cookies, jar.Cookies(resp.Request.URL)...)
	}
	return Credentials{Cookies: cookies}, nil
}

// fetchCSRFToken loads the login page and returns the field name and value of
// its CSRF token, or empty strings when the page carries none.
func (s *formStrategy) fetchCSRFToken(ctx context.Context, client *http.Client) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.loginURL, nil)
	if err != nil {
		return "", "", &AuthError{Strategy: config.AuthForm, Reason: "build login page request", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", &AuthError{Strategy: config.AuthForm, Reason: "login page request", Err: err}
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", &AuthError{Strategy: config.AuthForm, Reason: "parse login page", Err: err}
	}
	name, value := extractCSRFToken(doc)
	return name, value, nil
}

func extractCSRFToken(doc *goquery.Document) (string, string) {
	for _, name := range csrfMetaNames {
		if content, ok := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content"); ok {
			return "csrf_token", content
		}
	}
	for _, name := range csrfInputNames {
		if value, ok := doc.Find(fmt.Sprintf(`input[name=%q]`, name)).First().Attr("value"); ok {
			return name, value
		}
	}
	return "", ""
}
