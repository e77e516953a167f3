package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/cleanloom-cli/internal/config"
	"github.com/KaramelBytes/cleanloom-cli/internal/log"
)

var (
	cfgFile string
	debug   bool
	// Flags that override config when set
	flagAPIBaseURL     string
	flagHTTPTimeoutSec int
	flagLogFormat      string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "cleanloom",
	Short: "Cleanloom CLI: preview, analyze and clean tabular data files",
	Long: `Cleanloom previews CSV and Excel files locally, sends them to a data
cleaning service for analysis, applies the fixes you pick and downloads the
cleaned result as CSV, Excel, JSON or SQL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.cleanloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagAPIBaseURL, "api", "", "service base URL (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config show/set still work on a broken file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		log.Setup("warn", "text", os.Stderr)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("api") && flagAPIBaseURL != "" {
		cfg.APIBaseURL = flagAPIBaseURL
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log.Setup(level, cfg.LogFormat, os.Stderr)
}

// requireConfig returns the loaded configuration or explains why there is none.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no usable configuration; run 'cleanloom config show' or fix %s", configLocation())
	}
	return cfg, nil
}

func configLocation() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "~/.cleanloom/config.yaml"
}
