package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webvulnscan/internal/models"
)

func writeConfig(t *testing.T, body string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/scan.yaml", []byte(body), 0o644))
	return fs
}

func TestLoad_AppliesFileAndDefaults(t *testing.T) {
	fs := writeConfig(t, `
target: example.test
max_depth: 2
scan_timeout: 45s
excluded_paths: ["^/logout"]
proxies:
  - host: 10.0.0.1
    port: 3128
auth:
  type: Basic
  username: alice
  password: secret
checks:
  fingerprint: false
`)
	cfg, err := Load(fs, "/etc/scan.yaml")
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.Target)
	assert.Equal(t, 2, cfg.MaxDepth)
	assert.Equal(t, 100, cfg.MaxURLs)
	assert.Equal(t, 45*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"^/logout"}, cfg.ExcludedPaths)
	require.Len(t, cfg.Proxies, 1)
	assert.Equal(t, "http", cfg.Proxies[0].Protocol)
	assert.Equal(t, AuthBasic, cfg.Auth.Type)
	assert.False(t, cfg.Checks.Fingerprint)
	assert.True(t, cfg.Checks.CSRF)
	assert.InDelta(t, 0.7, cfg.MinConfidence, 1e-9)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("WEBVULNSCAN_MAX_DEPTH", "7")
	fs := writeConfig(t, "target: http://example.test\n")

	cfg, err := Load(fs, "/etc/scan.yaml")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxDepth)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	fs := writeConfig(t, "target: http://example.test\nmax_dept: 3\n")

	_, err := Load(fs, "/etc/scan.yaml")
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Reason, "max_dept")
}

func TestLoad_RejectsUnknownAuthType(t *testing.T) {
	fs := writeConfig(t, "target: http://example.test\nauth:\n  type: kerberos\n")

	_, err := Load(fs, "/etc/scan.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.yaml")
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "file", cerr.Field)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Target = ""
	cfg.Concurrency = 0
	cfg.MinConfidence = 1.5
	cfg.ExcludedPaths = []string{"("}

	errs := Errors(cfg.Validate())
	fields := make([]string, 0, len(errs))
	for _, err := range errs {
		var cerr *ConfigError
		require.True(t, errors.As(err, &cerr))
		fields = append(fields, cerr.Field)
	}
	assert.ElementsMatch(t, []string{"target", "concurrency", "min_confidence", "excluded_paths[0]"}, fields)
}

func TestValidate_AuthRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		auth   AuthConfig
		fields []string
	}{
		{"basic without password", AuthConfig{Type: AuthBasic, Username: "u"}, []string{"auth.password"}},
		{"form without login url", AuthConfig{Type: AuthForm, Username: "u", Password: "p"}, []string{"auth.login_url"}},
		{"jwt without token source", AuthConfig{Type: AuthToken}, []string{"auth.token"}},
		{"oauth without client", AuthConfig{Type: AuthOAuth, TokenURL: "http://idp/token"}, []string{"auth.client_id", "auth.client_secret"}},
		{"oauth with token", AuthConfig{Type: AuthOAuth, Token: "abc"}, nil},
		{"none", AuthConfig{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Target = "http://example.test"
			cfg.Auth = tt.auth

			var fields []string
			for _, err := range Errors(cfg.Validate()) {
				var cerr *ConfigError
				require.True(t, errors.As(err, &cerr))
				fields = append(fields, cerr.Field)
			}
			assert.ElementsMatch(t, tt.fields, fields)
		})
	}
}

func TestValidate_Proxies(t *testing.T) {
	cfg := Default()
	cfg.Target = "http://example.test"
	cfg.Proxies = append(cfg.Proxies, validProxy("socks5"), validProxy("ftp"))
	cfg.Proxies[0].Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxies[0].port")
	assert.Contains(t, err.Error(), "proxies[1].protocol")
}

func TestNormalizeTarget(t *testing.T) {
	assert.Equal(t, "https://example.test", NormalizeTarget("example.test"))
	assert.Equal(t, "http://example.test", NormalizeTarget(" http://example.test "))
	assert.Equal(t, "", NormalizeTarget(""))
}

func TestParseAuthKind(t *testing.T) {
	kind, err := ParseAuthKind("Bearer")
	require.NoError(t, err)
	assert.Equal(t, AuthToken, kind)

	kind, err = ParseAuthKind("client_credentials")
	require.NoError(t, err)
	assert.Equal(t, AuthOAuth, kind)

	_, err = ParseAuthKind("ntlm")
	assert.Error(t, err)
}

func validProxy(protocol string) models.Proxy {
	return models.Proxy{Host: "127.0.0.1", Port: 1080, Protocol: protocol}
}

func TestRead_DoesNotValidate(t *testing.T) {
	fs := writeConfig(t, "max_depth: 1\n")

	cfg, err := Read(fs, "/etc/scan.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Target)
	assert.Equal(t, 1, cfg.MaxDepth)

	_, err = Load(fs, "/etc/scan.yaml")
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "target", cerr.Field)
}
