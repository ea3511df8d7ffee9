package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// DefaultImpactWeeks is the downstream-impact chart window used when nothing
// else is configured
const DefaultImpactWeeks = 8

// Config holds the configuration for the breakage dashboard
type Config struct {
	// Upstream analytics API
	APIBaseURL     string        `mapstructure:"api_base_url"`
	AppBaseURL     string        `mapstructure:"app_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Server settings
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`

	// Panel settings
	ImpactWeeks      int    `mapstructure:"impact_weeks"`
	TableHeight      string `mapstructure:"table_height"`
	MaxConcurrentGen int    `mapstructure:"max_concurrent_gen"`

	// Link settings
	CommitURLPrefix string `mapstructure:"commit_url_prefix"`
	BuildURLPrefix  string `mapstructure:"build_url_prefix"`
	TimeZone        string `mapstructure:"time_zone"`

	// Snapshot and look settings
	OutputDir string `mapstructure:"output_dir"`
	AssetsDir string `mapstructure:"assets_dir"`
	Theme     string `mapstructure:"theme"`

	// Logging settings
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:3001",
		AppBaseURL:       "",
		RequestTimeout:   15 * time.Second,
		Host:             "localhost",
		Port:             8080,
		MetricsEnabled:   true,
		ImpactWeeks:      DefaultImpactWeeks,
		TableHeight:      "300px",
		MaxConcurrentGen: 4,
		CommitURLPrefix:  "https://github.com/pytorch/pytorch/commit/",
		BuildURLPrefix:   "https://circleci.com/gh/pytorch/pytorch/",
		TimeZone:         "Local",
		OutputDir:        "dashboard",
		AssetsDir:        "web/assets",
		Theme:            "default",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadConfig loads configuration from the first config file found, then
// applies environment overrides
func LoadConfig() (*Config, error) {
	cfg := NewConfig()

	configPaths := []string{
		"breakage-dashboard.yml",
		"breakage-dashboard.yaml",
		"breakage-dashboard.json",
		".config/breakage-dashboard.yml",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.LoadFromFile(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
			break
		}
	}

	cfg.LoadFromEnv()
	return cfg, nil
}

// LoadFromFile loads configuration from a file (YAML, JSON, or TOML)
func (c *Config) LoadFromFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(c)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("BREAKAGE_API_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("BREAKAGE_APP_URL"); v != "" {
		c.AppBaseURL = v
	}
	if v := os.Getenv("BREAKAGE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("BREAKAGE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("BREAKAGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("BREAKAGE_IMPACT_WEEKS"); v != "" {
		if weeks, err := strconv.Atoi(v); err == nil {
			c.ImpactWeeks = weeks
		}
	}
	if v := os.Getenv("BREAKAGE_COMMIT_URL_PREFIX"); v != "" {
		c.CommitURLPrefix = v
	}
	if v := os.Getenv("BREAKAGE_BUILD_URL_PREFIX"); v != "" {
		c.BuildURLPrefix = v
	}
	if v := os.Getenv("BREAKAGE_TZ"); v != "" {
		c.TimeZone = v
	}
	if v := os.Getenv("BREAKAGE_THEME"); v != "" {
		c.Theme = v
	}
	if v := os.Getenv("BREAKAGE_METRICS"); v == "false" {
		c.MetricsEnabled = false
	}
	if v := os.Getenv("BREAKAGE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BREAKAGE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("BREAKAGE_LOG_FILE"); v != "" {
		c.LogFile = v
	}
}

// Save saves the configuration to a file; the extension picks the format
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("api_base_url", c.APIBaseURL)
	v.Set("app_base_url", c.AppBaseURL)
	v.Set("request_timeout", c.RequestTimeout.String())
	v.Set("host", c.Host)
	v.Set("port", c.Port)
	v.Set("metrics_enabled", c.MetricsEnabled)
	v.Set("impact_weeks", c.ImpactWeeks)
	v.Set("table_height", c.TableHeight)
	v.Set("max_concurrent_gen", c.MaxConcurrentGen)
	v.Set("commit_url_prefix", c.CommitURLPrefix)
	v.Set("build_url_prefix", c.BuildURLPrefix)
	v.Set("time_zone", c.TimeZone)
	v.Set("output_dir", c.OutputDir)
	v.Set("assets_dir", c.AssetsDir)
	v.Set("theme", c.Theme)
	v.Set("log_level", c.LogLevel)
	v.Set("log_format", c.LogFormat)
	v.Set("log_file", c.LogFile)

	return v.WriteConfig()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base_url %q is not an absolute URL", c.APIBaseURL)
	}
	if c.ImpactWeeks <= 0 {
		return fmt.Errorf("impact_weeks must be positive, got %d", c.ImpactWeeks)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("time_zone: %w", err)
	}
	return nil
}

// Location resolves the configured display time zone
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// LinkBase returns the base URL for links into the analytics web app. Falls
// back to the API base URL since both are usually served together
func (c *Config) LinkBase() string {
	if c.AppBaseURL != "" {
		return c.AppBaseURL
	}
	return c.APIBaseURL
}
