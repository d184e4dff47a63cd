package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"webvulnscan/internal/config"
)

type oauthStrategy struct {
	token        string
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
}

func (s *oauthStrategy) Kind() config.AuthKind { return config.AuthOAuth }

func (s *oauthStrategy) authenticate(ctx context.Context, client *http.Client) (Credentials, error) {
	if s.token != "" {
		if strings.ContainsAny(s.token, " \t\r\n") {
			return Credentials{}, &AuthError{Strategy: config.AuthOAuth, Reason: "invalid token", Err: errors.New("token contains whitespace")}
		}
		return bearer(s.token), nil
	}
	switch {
	case s.clientID == "":
		return Credentials{}, missingField(config.AuthOAuth, "client_id")
	case s.clientSecret == "":
		return Credentials{}, missingField(config.AuthOAuth, "client_secret")
	case s.tokenURL == "":
		return Credentials{}, missingField(config.AuthOAuth, "token_url")
	}

	cc := clientcredentials.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		TokenURL:     s.tokenURL,
		Scopes:       s.scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, client))
	if err != nil {
		return Credentials{}, &AuthError{Strategy: config.AuthOAuth, Reason: "client credentials exchange", Err: err}
	}
	return bearer(tok.AccessToken), nil
}
