package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "DECLARIFY"

// ErrMissingCentralHubURL is returned when no Central Hub base URL is configured.
var ErrMissingCentralHubURL = errors.New("central hub base url is not configured")

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	CentralHub CentralHubConfig `yaml:"central_hub" envconfig:"CENTRAL_HUB"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" envconfig:"SCHEDULER"`
	Reminders  ReminderConfig   `yaml:"reminders" envconfig:"REMINDERS"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// CentralHubConfig describes the remote license and credit authority.
type CentralHubConfig struct {
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL"`
	CompanyCode string        `yaml:"company_code" envconfig:"COMPANY_CODE"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	CacheTTL    time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	UserAgent   string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// SchedulerConfig controls the daily reminder run.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED"`
	Hour     int           `yaml:"hour" envconfig:"HOUR"`
	Minute   int           `yaml:"minute" envconfig:"MINUTE"`
	Location string        `yaml:"location" envconfig:"LOCATION"`
	Backoff  time.Duration `yaml:"backoff" envconfig:"BACKOFF"`
}

// ReminderConfig controls which tasks receive reminders.
type ReminderConfig struct {
	NearDueWindow time.Duration `yaml:"near_due_window" envconfig:"NEAR_DUE_WINDOW"`
	MinInterval   time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL"`
}

// StorageConfig selects the task store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER"`
	DSN    string `yaml:"dsn" envconfig:"DSN"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Activation ActivationConfig `yaml:"activation" envconfig:"ACTIVATION"`
}

// ActivationConfig limits failed license activations per client.
type ActivationConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	BlockDuration time.Duration `yaml:"block_duration" envconfig:"BLOCK_DURATION"`
	Window        time.Duration `yaml:"window" envconfig:"WINDOW"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// Default returns the configuration used when neither a file nor the
// environment supplies a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/declarify.log",
		},
		CentralHub: CentralHubConfig{
			Timeout:   10 * time.Second,
			CacheTTL:  5 * time.Minute,
			UserAgent: "Declarify-Client/1.0",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Hour:     6,
			Minute:   0,
			Location: "UTC",
			Backoff:  5 * time.Minute,
		},
		Reminders: ReminderConfig{
			NearDueWindow: 72 * time.Hour,
			MinInterval:   20 * time.Hour,
		},
		Storage: StorageConfig{
			Driver: "memory",
			DSN:    "declarify.db",
		},
		Security: SecurityConfig{
			RateLimit:  RateLimitConfig{Enabled: true, RPS: 100, Burst: 50},
			Activation: ActivationConfig{MaxAttempts: 5, BlockDuration: 15 * time.Minute, Window: time.Hour},
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
			Environment:    "development",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	configFile := getConfigFilePath()
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.CentralHub.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.CentralHub.BaseURL), "/")
	cfg.CentralHub.CompanyCode = strings.TrimSpace(cfg.CentralHub.CompanyCode)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}
	return "config.yaml"
}

// LoadLocation resolves the scheduler time zone.
func (s SchedulerConfig) LoadLocation() (*time.Location, error) {
	if s.Location == "" || strings.EqualFold(s.Location, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Location)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.CentralHub.BaseURL == "" {
		return ErrMissingCentralHubURL
	}
	u, err := url.Parse(c.CentralHub.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid central hub base url %q", c.CentralHub.BaseURL)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.CentralHub.Timeout <= 0 {
		return fmt.Errorf("central hub timeout must be positive")
	}
	if c.CentralHub.CacheTTL <= 0 {
		return fmt.Errorf("central hub cache ttl must be positive")
	}

	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
		return fmt.Errorf("invalid scheduler hour: %d", c.Scheduler.Hour)
	}
	if c.Scheduler.Minute < 0 || c.Scheduler.Minute > 59 {
		return fmt.Errorf("invalid scheduler minute: %d", c.Scheduler.Minute)
	}
	if c.Scheduler.Backoff <= 0 {
		return fmt.Errorf("scheduler backoff must be positive")
	}
	if _, err := c.Scheduler.LoadLocation(); err != nil {
		return fmt.Errorf("invalid scheduler location %q: %w", c.Scheduler.Location, err)
	}

	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("unsupported logging output: %s", c.Logging.Output)
	}

	return nil
}
