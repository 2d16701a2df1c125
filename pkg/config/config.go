package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName is used for the config search path and environment prefix
const AppName = "archivescraper"

const envPrefix = "ARCHIVESCRAPER_"

// DefaultBannedSubstrings lists host fragments whose links are not worth archiving
var DefaultBannedSubstrings = []string{
	"x.",
	"twitter.",
	"youtube.",
	"twitch.",
	"youtu.",
	"wikipedia.",
	"steampowered.",
	"amiami.",
	"gov.",
	"gitlab.",
	"github.",
	"fandom.",
	"poal.",
	"spanix",
	"pixiv.",
	"amazon.",
	"gamersupps.",
	"nexusmods.",
	"speedrun.",
	"yle.",
}

// Config holds all configuration options for the archive scraper
type Config struct {
	// Archive endpoints and crawl range
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Request pacing and retry policy
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ArchiveConfig describes the archive being crawled
type ArchiveConfig struct {
	SearchURL        string   `yaml:"search_url" json:"search_url"`
	ThreadURL        string   `yaml:"thread_url" json:"thread_url"`
	StartPage        int      `yaml:"start_page" json:"start_page"`
	EndPage          int      `yaml:"end_page" json:"end_page"`
	BannedSubstrings []string `yaml:"banned_substrings" json:"banned_substrings"`
	UserAgent        string   `yaml:"user_agent" json:"user_agent"`
}

// RateLimitConfig holds the token bucket, jitter and retry settings
type RateLimitConfig struct {
	Capacity   int           `yaml:"capacity" json:"capacity"`
	Interval   time.Duration `yaml:"interval" json:"interval"`
	Jitter     time.Duration `yaml:"jitter" json:"jitter"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds output locations
type OutputConfig struct {
	DataDirectory string `yaml:"data_directory" json:"data_directory"`
	HyperlinkFile string `yaml:"hyperlink_file" json:"hyperlink_file"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	Workers        int           `yaml:"workers" json:"workers"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Directory string `yaml:"directory" json:"directory"`
}

// DefaultConfig returns a Config instance with the archive's known-good pacing
func DefaultConfig() *Config {
	banned := make([]string, len(DefaultBannedSubstrings))
	copy(banned, DefaultBannedSubstrings)

	return &Config{
		Archive: ArchiveConfig{
			SearchURL:        "https://archive.palanq.win/vt/search/subject/%2Fshon%2F",
			ThreadURL:        "https://archive.palanq.win/vt/thread/",
			StartPage:        1,
			EndPage:          52,
			BannedSubstrings: banned,
			UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		RateLimit: RateLimitConfig{
			Capacity:   4,
			Interval:   143240219 * time.Nanosecond,
			Jitter:     236857093 * time.Nanosecond,
			MaxRetries: 5,
			RetryDelay: 51230508 * time.Nanosecond,
		},
		Output: OutputConfig{
			DataDirectory: "data",
			HyperlinkFile: "urls.txt",
		},
		Download: DownloadConfig{
			RequestTimeout: 30 * time.Second,
			Workers:        1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HyperlinkPath returns the location of the shared hyperlink log
func (c *Config) HyperlinkPath() string {
	return filepath.Join(c.Output.DataDirectory, c.Output.HyperlinkFile)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "SEARCH_URL"); v != "" {
		c.Archive.SearchURL = v
	}
	if v := os.Getenv(envPrefix + "THREAD_URL"); v != "" {
		c.Archive.ThreadURL = v
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Archive.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "BANNED_SUBSTRINGS"); v != "" {
		c.Archive.BannedSubstrings = splitList(v)
	}

	envInt(envPrefix+"START_PAGE", &c.Archive.StartPage, &errs)
	envInt(envPrefix+"END_PAGE", &c.Archive.EndPage, &errs)
	envInt(envPrefix+"RATE_CAPACITY", &c.RateLimit.Capacity, &errs)
	envInt(envPrefix+"MAX_RETRIES", &c.RateLimit.MaxRetries, &errs)
	envInt(envPrefix+"WORKERS", &c.Download.Workers, &errs)

	envDuration(envPrefix+"RATE_INTERVAL", &c.RateLimit.Interval, &errs)
	envDuration(envPrefix+"JITTER", &c.RateLimit.Jitter, &errs)
	envDuration(envPrefix+"RETRY_DELAY", &c.RateLimit.RetryDelay, &errs)
	envDuration(envPrefix+"REQUEST_TIMEOUT", &c.Download.RequestTimeout, &errs)

	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		c.Output.DataDirectory = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Address = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_DIR"); v != "" {
		c.Logging.Directory = v
	}

	return errors.Join(errs...)
}

func envInt(key string, dst *int, errs *[]error) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = val
}

func envDuration(key string, dst *time.Duration, errs *[]error) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	val, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = val
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".archivescraper.yaml",
		".archivescraper.yml",
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	if path, err := xdg.SearchConfigFile(filepath.Join(AppName, "config.yaml")); err == nil {
		return path
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(AppName, "config.yaml"))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Archive.SearchURL == "" {
		errs = append(errs, errors.New("archive search URL is required"))
	}
	if c.Archive.ThreadURL == "" {
		errs = append(errs, errors.New("archive thread URL is required"))
	}
	if c.Archive.StartPage < 1 {
		errs = append(errs, errors.New("start page must be at least 1"))
	}
	if c.Archive.EndPage < c.Archive.StartPage {
		errs = append(errs, errors.New("end page must not precede start page"))
	}

	if c.RateLimit.Capacity <= 0 {
		errs = append(errs, errors.New("rate limit capacity must be positive"))
	}
	if c.RateLimit.Interval <= 0 {
		errs = append(errs, errors.New("rate limit interval must be positive"))
	}
	if c.RateLimit.Jitter < 0 {
		errs = append(errs, errors.New("jitter cannot be negative"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.RateLimit.RetryDelay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}

	if c.Output.DataDirectory == "" {
		errs = append(errs, errors.New("data directory is required"))
	}
	if c.Output.HyperlinkFile == "" {
		errs = append(errs, errors.New("hyperlink file name is required"))
	}

	if c.Download.Workers < 1 || c.Download.Workers > 16 {
		errs = append(errs, errors.New("workers must be between 1 and 16"))
	}
	if c.Download.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["start-page"].(int); ok && v > 0 {
		c.Archive.StartPage = v
	}
	if v, ok := flags["end-page"].(int); ok && v > 0 {
		c.Archive.EndPage = v
	}
	if v, ok := flags["search-url"].(string); ok && v != "" {
		c.Archive.SearchURL = v
	}
	if v, ok := flags["thread-url"].(string); ok && v != "" {
		c.Archive.ThreadURL = v
	}
	if v, ok := flags["data-dir"].(string); ok && v != "" {
		c.Output.DataDirectory = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.RateLimit.MaxRetries = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Address = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-dir"].(string); ok && v != "" {
		c.Logging.Directory = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(xdg.ConfigHome, AppName, ".env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
