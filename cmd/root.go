// Package cmd contains the webvulnscan command-line interface.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"webvulnscan/internal/config"
	"webvulnscan/internal/logger"
)

const Version = "1.0.0"

var (
	configFile string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "webvulnscan",
		Short: "webvulnscan crawls a web application and reports likely vulnerabilities.",
		Long: `A passive web vulnerability scanner. It crawls one origin breadth first
under a global rate limit and runs non-intrusive checks against every page it fetches.`,
		Version:      Version,
		SilenceUsage: true,
	}

	// fs is swapped for a memory filesystem in tests.
	fs = afero.NewOsFs()
)

// Execute runs the root command. It is called once by main.main().
func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig reads the configuration file, or the defaults when none is given,
// and configures the global logger from it. The caller closes the returned closer.
func loadConfig() (*config.ScanConfig, io.Closer, error) {
	var cfg *config.ScanConfig
	if configFile == "" {
		d := config.Default()
		cfg = &d
	} else {
		var err error
		if cfg, err = config.Read(fs, configFile); err != nil {
			return nil, nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}
