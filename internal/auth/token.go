package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	"webvulnscan/internal/config"
)

type tokenStrategy struct {
	token    string
	tokenURL string
	username string
	password string
}

func (s *tokenStrategy) Kind() config.AuthKind { return config.AuthToken }

func (s *tokenStrategy) authenticate(ctx context.Context, client *http.Client) (Credentials, error) {
	if s.token != "" {
		if err := ValidateJWT(s.token); err != nil {
			return Credentials{}, &AuthError{Strategy: config.AuthToken, Reason: "invalid token", Err: err}
		}
		return bearer(s.token), nil
	}
	if s.tokenURL == "" {
		return Credentials{}, missingField(config.AuthToken, "token or token_url")
	}
	if s.username == "" || s.password == "" {
		return Credentials{}, missingField(config.AuthToken, "username/password")
	}

	token, err := s.exchange(ctx, client)
	if err != nil {
		return Credentials{}, err
	}
	return bearer(token), nil
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
}

func (s *tokenStrategy) exchange(ctx context.Context, client *http.Client) (string, error) {
	payload, err := json.Marshal(tokenRequest{Username: s.username, Password: s.password})
	if err != nil {
		return "", &AuthError{Strategy: config.AuthToken, Reason: "encode credentials", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", &AuthError{Strategy: config.AuthToken, Reason: "build token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", &AuthError{Strategy: config.AuthToken, Reason: "token request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &AuthError{Strategy: config.AuthToken, Reason: fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)}
	}

	var out tokenResponse
	if err := json.UnmarshalRead(io.LimitReader(resp.Body, 1<<20), &out); err != nil {
		return "", &AuthError{Strategy: config.AuthToken, Reason: "decode token response", Err: err}
	}
	token := out.Token
	if token == "" {
		token = out.AccessToken
	}
	if token == "" {
		return "", &AuthError{Strategy: config.AuthToken, Reason: "token endpoint returned no token"}
	}
	return token, nil
}

// ValidateJWT checks that token is three base64url segments whose header is a
// JSON object naming an algorithm. The signature is not verified.
func ValidateJWT(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("expected 3 segments, got %d", len(parts))
	}

	var header map[string]any
	if err := decodeSegment(parts[0], &header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if alg, _ := header["alg"].(string); alg == "" {
		return errors.New("header has no alg")
	}

	var claims map[string]any
	if err := decodeSegment(parts[1], &claims); err != nil {
		return fmt.Errorf("claims: %w", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[2], "=")); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
