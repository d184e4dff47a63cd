package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"webvulnscan/internal/config"
	"webvulnscan/internal/proxy"
)

var (
	proxiesCmd = &cobra.Command{
		Use:   "proxies",
		Short: "Manage the configured proxy list",
	}

	proxiesVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Probe every configured proxy and report which ones work",
		RunE:  runProxiesVerify,
	}
)

func init() {
	rootCmd.AddCommand(proxiesCmd)
	proxiesCmd.AddCommand(proxiesVerifyCmd)
}

func runProxiesVerify(cmd *cobra.Command, _ []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(cfg.Proxies) == 0 {
		return errors.New("no proxies configured")
	}
	// Only the proxy entries matter here; the scan target may be unset.
	if cfg.Target == "" {
		cfg.Target = "http://localhost"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rotator := proxy.NewRotator(cfg.Proxies)
	alive := rotator.VerifyAll(cmd.Context(), cfg.ProxyVerify.Endpoint, cfg.ProxyVerify.Timeout)

	// Proxies that failed this round stay in rotation with a raised FailCount.
	working := make(map[string]bool, alive)
	for _, p := range rotator.Proxies() {
		if p.FailCount == 0 {
			working[p.String()] = true
		}
	}

	w := cmd.OutOrStdout()
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	for _, p := range cfg.Proxies {
		if working[p.String()] {
			ok.Fprintf(w, "  OK    %s\n", p)
		} else {
			bad.Fprintf(w, "  DEAD  %s\n", p)
		}
	}
	fmt.Fprintf(w, "%d of %d proxies working (endpoint %s)\n", alive, len(cfg.Proxies), cfg.ProxyVerify.Endpoint)

	if alive == 0 {
		return &config.ConfigError{Field: "proxies", Reason: "no working proxy"}
	}
	return nil
}
