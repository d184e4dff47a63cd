package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"webvulnscan/internal/config"
	"webvulnscan/internal/core"
	"webvulnscan/internal/metrics"
	"webvulnscan/internal/models"
	"webvulnscan/internal/reporter"
)

var (
	targetURL   string
	outputDir   string
	format      string
	metricsAddr string

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Scan a target URL",
		Long: `The scan command crawls the target origin, runs the enabled checks on every
page it fetches and writes a JSON or text report.`,
		RunE: runScan,
	}
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&targetURL, "url", "u", "", "Target URL to scan (overrides the config file)")
	scanCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save the report in (overrides reporting.path)")
	scanCmd.Flags().StringVarP(&format, "format", "f", "", "Report format: json or txt (overrides reporting.format)")
	scanCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while scanning, e.g. :9090")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	if targetURL != "" {
		cfg.Target = targetURL
	}
	cfg.Target = config.NormalizeTarget(cfg.Target)
	if outputDir != "" {
		cfg.Reporting.Path = outputDir
	}
	if format != "" {
		cfg.Reporting.Format = format
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, m)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	res, scanErr := core.NewSession(cfg, core.WithMetrics(m)).Run(ctx)
	if res == nil {
		return scanErr
	}
	if res.State != models.StateFailed {
		path := reporter.DefaultPath(cfg.Reporting.Path, cfg.Reporting.Format, res)
		exp, err := reporter.New(fs, cfg.Reporting.Format, path)
		if err != nil {
			return err
		}
		if err := exp.Export(res); err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), res)
	return scanErr
}

func serveMetrics(addr string, m *metrics.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

var severityColors = map[models.Severity]*color.Color{
	models.SeverityCritical: color.New(color.FgRed, color.Bold),
	models.SeverityHigh:     color.New(color.FgRed),
	models.SeverityMedium:   color.New(color.FgYellow),
	models.SeverityLow:      color.New(color.FgCyan),
	models.SeverityInfo:     color.New(color.FgWhite),
}

func printSummary(w io.Writer, res *models.ScanResult) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "\nScan %s: %s\n", res.ID, res.Target)

	stateColor := color.New(color.FgGreen)
	switch res.State {
	case models.StateFailed:
		stateColor = color.New(color.FgRed, color.Bold)
	case models.StateTimedOut:
		stateColor = color.New(color.FgYellow)
	}
	stateColor.Fprintf(w, "State: %s\n", res.State)
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
	}
	fmt.Fprintf(w, "Visited %d URLs in %s, %d requests, %d checks\n",
		res.URLsVisited, res.Duration.Round(time.Millisecond), res.Stats.Requests, res.ChecksExecuted)

	counts := res.SeverityCounts()
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo} {
		if counts[sev] == 0 {
			continue
		}
		severityColors[sev].Fprintf(w, "  %-9s %d\n", sev, counts[sev])
	}
	if len(res.Findings) == 0 {
		fmt.Fprintln(w, "No findings.")
	}
}
