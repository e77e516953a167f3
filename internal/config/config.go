package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/cleanloom-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	APIBaseURL     string `mapstructure:"api_base_url" yaml:"api_base_url"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`

	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	PageSize    int    `mapstructure:"page_size" yaml:"page_size"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// Local run journal (SQLite)
	JournalEnabled bool   `mapstructure:"journal_enabled" yaml:"journal_enabled"`
	JournalPath    string `mapstructure:"journal_path" yaml:"journal_path"`
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"api_base_url", "http_timeout_sec", "download_dir", "page_size", "max_upload_mb",
	"log_level", "log_format", "journal_enabled", "journal_path",
}

const dirName = ".cleanloom"

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.cleanloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := defaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env (CLEANLOOM_*) > .env in the working
// directory > config file > defaults. Values from .env never replace
// variables already set in the environment.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CLEANLOOM")
	v.AutomaticEnv()

	v.SetDefault("api_base_url", "http://localhost:8000/api/v1")
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("download_dir", ".")
	v.SetDefault("page_size", 20)
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("journal_enabled", true)
	v.SetDefault("journal_path", filepath.Join("~", dirName, "journal.db"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	p, err := utils.ExpandHome(c.JournalPath)
	if err != nil {
		return nil, err
	}
	c.JournalPath = p
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the client cannot work with.
func (c *Global) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIBaseURL) == "" {
		errs = append(errs, errors.New("api_base_url must not be empty"))
	}
	if c.HTTPTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("http_timeout_sec must be positive, got %d", c.HTTPTimeoutSec))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
