package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the photo backup
type Config struct {
	// Source site settings
	Source SourceConfig `yaml:"source" json:"source"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig describes the photo site being mirrored
type SourceConfig struct {
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	CDNHost        string        `yaml:"cdn_host" json:"cdn_host"`
	Encoding       string        `yaml:"encoding" json:"encoding"`
	FeedFormat     string        `yaml:"feed_format" json:"feed_format"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// RateLimitConfig holds rate limiting configuration for page requests.
// Zero requests per minute disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	// Strategy is "exponential" or "constant"; constant waits BaseDelay
	Strategy     string        `yaml:"strategy" json:"strategy"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	SkipExisting  bool   `yaml:"skip_existing" json:"skip_existing"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	Timeout             time.Duration `yaml:"timeout" json:"timeout"`
	// AllowInsecureTLS disables certificate verification for photo
	// downloads only. The photo CDN is known to serve invalid certificates.
	AllowInsecureTLS bool `yaml:"allow_insecure_tls" json:"allow_insecure_tls"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultOutputDirectory is used when neither the config nor the command line
// name an output root.
var DefaultOutputDirectory = filepath.Join("storage", "app", "netease")

// DefaultUserAgent is sent with every request unless configured otherwise
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        "http://photo.163.com",
			CDNHost:        "ph.126.net",
			Encoding:       "gbk",
			FeedFormat:     "auto",
			UserAgent:      DefaultUserAgent,
			RequestTimeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
		},
		Retry: RetryConfig{
			Enabled:      true,
			Strategy:     "exponential",
			MaxAttempts:  3,
			BaseDelay:    1 * time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Output: OutputConfig{
			BaseDirectory: DefaultOutputDirectory,
			SkipExisting:  false,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			Timeout:             30 * time.Second,
			AllowInsecureTLS:    false,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from PHOTOBACKUP_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("PHOTOBACKUP_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("PHOTOBACKUP_CDN_HOST"); v != "" {
		c.Source.CDNHost = v
	}
	if v := os.Getenv("PHOTOBACKUP_ENCODING"); v != "" {
		c.Source.Encoding = v
	}
	if v := os.Getenv("PHOTOBACKUP_FEED_FORMAT"); v != "" {
		c.Source.FeedFormat = v
	}
	if v := os.Getenv("PHOTOBACKUP_USER_AGENT"); v != "" {
		c.Source.UserAgent = v
	}
	if v := os.Getenv("PHOTOBACKUP_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("PHOTOBACKUP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PHOTOBACKUP_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	if v := os.Getenv("PHOTOBACKUP_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHOTOBACKUP_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("PHOTOBACKUP_CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHOTOBACKUP_CONCURRENT_DOWNLOADS: %w", err))
		} else {
			c.Download.ConcurrentDownloads = n
		}
	}
	if v := os.Getenv("PHOTOBACKUP_DOWNLOAD_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PHOTOBACKUP_DOWNLOAD_TIMEOUT: %w", err))
		} else {
			c.Download.Timeout = d
		}
	}
	if v := os.Getenv("PHOTOBACKUP_ALLOW_INSECURE_TLS"); v != "" {
		c.Download.AllowInsecureTLS = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("PHOTOBACKUP_SKIP_EXISTING"); v != "" {
		c.Output.SkipExisting = strings.EqualFold(v, "true")
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
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
	home := os.Getenv("HOME")
	locations := []string{
		".photobackup.yaml",
		".photobackup.yml",
		filepath.Join(home, ".config", "photobackup", "config.yaml"),
		filepath.Join(home, ".config", "photobackup", "config.yml"),
		filepath.Join(home, ".photobackup.yaml"),
		filepath.Join(home, ".photobackup.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Source.BaseURL == "" {
		errs = append(errs, errors.New("source base URL is required"))
	}
	if c.Source.CDNHost == "" {
		errs = append(errs, errors.New("source CDN host is required"))
	}
	if c.Source.Encoding == "" {
		errs = append(errs, errors.New("source encoding is required"))
	}
	validFormats := map[string]bool{"auto": true, "split": true, "bracket": true}
	if !validFormats[strings.ToLower(c.Source.FeedFormat)] {
		errs = append(errs, fmt.Errorf("invalid feed format %q", c.Source.FeedFormat))
	}
	if c.Source.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		switch c.Retry.Strategy {
		case "", "exponential", "constant":
		default:
			errs = append(errs, fmt.Errorf("unknown retry strategy %q", c.Retry.Strategy))
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
		if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
			errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
		}
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 16 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 16"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Source.BaseURL = v
	}
	if v, ok := flags["feed-format"].(string); ok && v != "" {
		c.Source.FeedFormat = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.Download.Timeout = v
		c.Source.RequestTimeout = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok {
		if v <= 0 {
			c.Retry.Enabled = false
		} else {
			c.Retry.MaxAttempts = v
		}
	}
	if v, ok := flags["allow-insecure-tls"].(bool); ok {
		c.Download.AllowInsecureTLS = v
	}
	if v, ok := flags["skip-existing"].(bool); ok {
		c.Output.SkipExisting = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".photobackup.env"))

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
