// Package config handles the loading and validation of the scan configuration.
// It uses Viper to read a YAML file and environment variables, and rejects
// unknown keys instead of silently ignoring them.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"webvulnscan/internal/logger"
	"webvulnscan/internal/models"
)

// EnvPrefix is prepended to every environment override, e.g. WEBVULNSCAN_MAX_DEPTH.
const EnvPrefix = "WEBVULNSCAN"

// ScanConfig is the validated, read-only input of a scan.
type ScanConfig struct {
	Target              string            `mapstructure:"target"`
	MaxDepth            int               `mapstructure:"max_depth"`
	MaxURLs             int               `mapstructure:"max_urls"`
	Concurrency         int               `mapstructure:"concurrency"`
	RequestsPerSecond   float64           `mapstructure:"requests_per_second"`
	Burst               int               `mapstructure:"burst"`
	RequestTimeout      time.Duration     `mapstructure:"request_timeout"`
	ScanTimeout         time.Duration     `mapstructure:"scan_timeout"`
	MaxRedirects        int               `mapstructure:"max_redirects"`
	MaxBodyBytes        int64             `mapstructure:"max_body_bytes"`
	UserAgent           string            `mapstructure:"user_agent"`
	VerifyTLS           bool              `mapstructure:"verify_tls"`
	ExcludedPaths       []string          `mapstructure:"excluded_paths"`
	DiscoverSources     bool              `mapstructure:"discover_sources"`
	Proxies             []models.Proxy    `mapstructure:"proxies"`
	ProxyVerify         ProxyVerifyConfig `mapstructure:"proxy_verify"`
	Auth                AuthConfig        `mapstructure:"auth"`
	Checks              ChecksConfig      `mapstructure:"checks"`
	MinConfidence       float64           `mapstructure:"min_confidence"`
	SkipSimilarPages    bool              `mapstructure:"skip_similar_pages"`
	SimilarityThreshold float64           `mapstructure:"similarity_threshold"`
	AdaptiveRate        AdaptiveConfig    `mapstructure:"adaptive_rate"`
	Redis               RedisConfig       `mapstructure:"redis"`
	BruteForce          BruteForceConfig  `mapstructure:"brute_force"`
	Recon               ReconConfig       `mapstructure:"recon"`
	Log                 logger.Config     `mapstructure:"log"`
	Reporting           ReportingConfig   `mapstructure:"reporting"`
}

// ChecksConfig holds the per-check enable flags.
type ChecksConfig struct {
	SecurityHeaders bool `mapstructure:"security_headers"`
	CSRF            bool `mapstructure:"csrf"`
	ReflectedParams bool `mapstructure:"reflected_params"`
	InfoDisclosure  bool `mapstructure:"info_disclosure"`
	Fingerprint     bool `mapstructure:"fingerprint"`
}

// ProxyVerifyConfig controls the optional proxy health check batch.
type ProxyVerifyConfig struct {
	OnStart  bool          `mapstructure:"on_start"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AdaptiveConfig enables rate reduction when too many acquisitions are blocked.
type AdaptiveConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold int     `mapstructure:"threshold"`
	Window    int     `mapstructure:"window"`
	Factor    float64 `mapstructure:"factor"`
}

// RedisConfig holds the configuration for the optional visited-set mirror.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Key     string `mapstructure:"key"`
	Resume  bool   `mapstructure:"resume"`
}

// BruteForceConfig is handed to the external brute-force provider.
type BruteForceConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Host      string   `mapstructure:"host"`
	Port      int      `mapstructure:"port"`
	Username  string   `mapstructure:"username"`
	Passwords []string `mapstructure:"passwords"`
}

// ReconConfig is handed to the external recon provider.
type ReconConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Ports   string `mapstructure:"ports"`
}

// ReportingConfig defines where the CLI writes the finished report.
type ReportingConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// Default returns a configuration with every default applied and no target.
func Default() ScanConfig {
	return ScanConfig{
		MaxDepth:          3,
		MaxURLs:           100,
		Concurrency:       10,
		RequestsPerSecond: 10,
		Burst:             10,
		RequestTimeout:    10 * time.Second,
		ScanTimeout:       300 * time.Second,
		MaxRedirects:      5,
		MaxBodyBytes:      5 << 20,
		UserAgent:         "Mozilla/5.0 (compatible; webvulnscan/1.0)",
		ProxyVerify: ProxyVerifyConfig{
			Endpoint: "http://httpbin.org/ip",
			Timeout:  10 * time.Second,
		},
		Checks: ChecksConfig{
			SecurityHeaders: true,
			CSRF:            true,
			ReflectedParams: true,
			InfoDisclosure:  true,
			Fingerprint:     true,
		},
		MinConfidence:       0.7,
		SimilarityThreshold: 0.97,
		AdaptiveRate: AdaptiveConfig{
			Threshold: 5,
			Window:    100,
			Factor:    0.8,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
			Key: "crawled_urls",
		},
		BruteForce: BruteForceConfig{Port: 22},
		Recon:      ReconConfig{Ports: "80,443"},
		Log:        logger.Config{Level: "info"},
		Reporting:  ReportingConfig{Path: "reports", Format: "json"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("target", "")
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("max_urls", d.MaxURLs)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("burst", d.Burst)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("scan_timeout", d.ScanTimeout)
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("max_body_bytes", d.MaxBodyBytes)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("verify_tls", d.VerifyTLS)
	v.SetDefault("discover_sources", d.DiscoverSources)
	v.SetDefault("proxy_verify.on_start", d.ProxyVerify.OnStart)
	v.SetDefault("proxy_verify.endpoint", d.ProxyVerify.Endpoint)
	v.SetDefault("proxy_verify.timeout", d.ProxyVerify.Timeout)
	v.SetDefault("checks.security_headers", d.Checks.SecurityHeaders)
	v.SetDefault("checks.csrf", d.Checks.CSRF)
	v.SetDefault("checks.reflected_params", d.Checks.ReflectedParams)
	v.SetDefault("checks.info_disclosure", d.Checks.InfoDisclosure)
	v.SetDefault("checks.fingerprint", d.Checks.Fingerprint)
	v.SetDefault("min_confidence", d.MinConfidence)
	v.SetDefault("skip_similar_pages", d.SkipSimilarPages)
	v.SetDefault("similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("adaptive_rate.enabled", d.AdaptiveRate.Enabled)
	v.SetDefault("adaptive_rate.threshold", d.AdaptiveRate.Threshold)
	v.SetDefault("adaptive_rate.window", d.AdaptiveRate.Window)
	v.SetDefault("adaptive_rate.factor", d.AdaptiveRate.Factor)
	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.key", d.Redis.Key)
	v.SetDefault("redis.resume", d.Redis.Resume)
	v.SetDefault("brute_force.port", d.BruteForce.Port)
	v.SetDefault("recon.ports", d.Recon.Ports)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("reporting.path", d.Reporting.Path)
	v.SetDefault("reporting.format", d.Reporting.Format)
}

// Load reads the YAML file at path from fs, applies defaults and environment
// overrides, and validates the result. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (*ScanConfig, error) {
	cfg, err := Read(fs, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that still apply overrides.
func Read(fs afero.Fs, path string) (*ScanConfig, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "file", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	var cfg ScanConfig
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		authKindHook,
	))
	if err := v.UnmarshalExact(&cfg, hook); err != nil {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}
	return &cfg, nil
}

func authKindHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(AuthKind("")) {
		return data, nil
	}
	return ParseAuthKind(data.(string))
}
