package core

import (
	"context"

	"webvulnscan/internal/config"
	"webvulnscan/internal/models"
)

// Scan runs a single scan of target synchronously. A target without a scheme
// is scanned over https. An empty target keeps cfg.Target.
func Scan(ctx context.Context, target string, cfg config.ScanConfig, opts ...Option) (*models.ScanResult, error) {
	if target != "" {
		cfg.Target = target
	}
	cfg.Target = config.NormalizeTarget(cfg.Target)
	return NewSession(&cfg, opts...).Run(ctx)
}
