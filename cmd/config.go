package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/cleanloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Cleanloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		for _, k := range cfgpkg.Keys {
			fmt.Fprintf(out, "%s: %s\n", k, configValue(cfg, k))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := cfg
		if c == nil {
			loaded, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			c = loaded
		}
		// Work on a copy so a rejected value leaves the loaded config intact.
		next := *c
		if err := setConfigValue(&next, key, val); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		cfg = &next
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func configValue(c *cfgpkg.Global, key string) string {
	switch key {
	case "api_base_url":
		return c.APIBaseURL
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec)
	case "download_dir":
		return c.DownloadDir
	case "page_size":
		return strconv.Itoa(c.PageSize)
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB)
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	case "journal_enabled":
		return strconv.FormatBool(c.JournalEnabled)
	case "journal_path":
		return c.JournalPath
	}
	return ""
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return 0, fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_base_url":
		c.APIBaseURL = strings.TrimRight(val, "/")
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "download_dir":
		c.DownloadDir = val
	case "page_size":
		c.PageSize, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "warning", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	case "journal_enabled":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for journal_enabled: %v", val)
		}
		c.JournalEnabled = b
	case "journal_path":
		c.JournalPath = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
