package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const ConfigFileEnv = "REPORT_CLIENT_CONFIG"

type Config struct {
	BackendURL         string `yaml:"backend_url"`
	WhisperModelSize   string `yaml:"whisper_model_size"`
	PollIntervalMS     int    `yaml:"poll_interval_ms"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`

	LogLevel string `yaml:"log_level"`

	OutputDir    string `yaml:"output_dir"`
	OutputFormat string `yaml:"output_format"`

	MetricsAddr string `yaml:"metrics_addr"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	BackendRateLimitRPS   float64 `yaml:"backend_rate_limit_rps"`
	BackendRateLimitBurst int     `yaml:"backend_rate_limit_burst"`

	BreakerEnabled            bool    `yaml:"breaker_enabled"`
	BreakerMinRequests        int     `yaml:"breaker_min_requests"`
	BreakerFailureRatio       float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeoutSeconds int     `yaml:"breaker_open_timeout_seconds"`
	BreakerHalfOpenMaxCalls   int     `yaml:"breaker_half_open_max_calls"`
	BreakerWindowSeconds      int     `yaml:"breaker_window_seconds"`
}

func Defaults() Config {
	return Config{
		BackendURL:         "http://127.0.0.1:5000",
		WhisperModelSize:   "small",
		PollIntervalMS:     4000,
		HTTPTimeoutSeconds: 60,

		LogLevel: "info",

		OutputFormat: "text",

		NATSSubject: "reports.jobs",

		BackendRateLimitBurst: 1,

		BreakerEnabled:            true,
		BreakerMinRequests:        5,
		BreakerFailureRatio:       0.6,
		BreakerOpenTimeoutSeconds: 30,
		BreakerHalfOpenMaxCalls:   1,
	}
}

// Load applies defaults, then the YAML file named by REPORT_CLIENT_CONFIG,
// then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.BackendURL = mustEnv("BACKEND_URL", cfg.BackendURL)
	cfg.WhisperModelSize = mustEnv("WHISPER_MODEL_SIZE", cfg.WhisperModelSize)
	cfg.PollIntervalMS = mustEnvInt("POLL_INTERVAL_MS", cfg.PollIntervalMS)
	cfg.HTTPTimeoutSeconds = mustEnvInt("HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.LogLevel = mustEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.OutputDir = mustEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputFormat = mustEnv("OUTPUT_FORMAT", cfg.OutputFormat)
	cfg.MetricsAddr = mustEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.NATSURL = mustEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = mustEnv("NATS_SUBJECT", cfg.NATSSubject)
	cfg.BackendRateLimitRPS = mustEnvFloat("BACKEND_RATE_LIMIT_RPS", cfg.BackendRateLimitRPS)
	cfg.BackendRateLimitBurst = mustEnvInt("BACKEND_RATE_LIMIT_BURST", cfg.BackendRateLimitBurst)
	cfg.BreakerEnabled = mustEnvBool("BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.BreakerMinRequests = mustEnvInt("BREAKER_MIN_REQUESTS", cfg.BreakerMinRequests)
	cfg.BreakerFailureRatio = mustEnvFloat("BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio)
	cfg.BreakerOpenTimeoutSeconds = mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", cfg.BreakerOpenTimeoutSeconds)
	cfg.BreakerHalfOpenMaxCalls = mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", cfg.BreakerHalfOpenMaxCalls)
	cfg.BreakerWindowSeconds = mustEnvInt("BREAKER_WINDOW_SECONDS", cfg.BreakerWindowSeconds)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL))
	}
	switch c.OutputFormat {
	case "text", "html", "xlsx":
	default:
		errs = append(errs, fmt.Errorf("OUTPUT_FORMAT must be text, html or xlsx, got %q", c.OutputFormat))
	}
	if c.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL_MS must be positive, got %d", c.PollIntervalMS))
	}
	if c.HTTPTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds))
	}
	if c.BackendRateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("BACKEND_RATE_LIMIT_RPS must not be negative, got %g", c.BackendRateLimitRPS))
	}
	return errors.Join(errs...)
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
