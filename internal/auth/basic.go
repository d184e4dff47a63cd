package auth

import (
	"context"
	"encoding/base64"
	"net/http"

	"webvulnscan/internal/config"
)

type basicStrategy struct {
	username string
	password string
}

func (s *basicStrategy) Kind() config.AuthKind { return config.AuthBasic }

func (s *basicStrategy) authenticate(_ context.Context, _ *http.Client) (Credentials, error) {
	if s.username == "" {
		return Credentials{}, missingField(config.AuthBasic, "username")
	}
	if s.password == "" {
		return Credentials{}, missingField(config.AuthBasic, "password")
	}
	h := make(http.Header)
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.username+":"+s.password)))
	return Credentials{Header: h}, nil
}
