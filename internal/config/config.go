package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // schedule timezone must resolve on hosts without zoneinfo

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. GAINIPO_SERVER_PORT.
const EnvPrefix = "GAINIPO"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Sources    SourcesConfig    `yaml:"sources" envconfig:"SOURCES"`
	Fetch      FetchConfig      `yaml:"fetch" envconfig:"FETCH"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	Schedule   ScheduleConfig   `yaml:"schedule" envconfig:"SCHEDULE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	Normalizer NormalizerConfig `yaml:"normalizer" envconfig:"NORMALIZER"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"40"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/scraper.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ExportsDir string `yaml:"exports_dir" envconfig:"EXPORTS_DIR" default:"data/exports"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// SourcesConfig describes the two exchange collaborators.
type SourcesConfig struct {
	UserAgent string    `yaml:"user_agent" envconfig:"USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"`
	BSE       BSEConfig `yaml:"bse" envconfig:"BSE"`
	NSE       NSEConfig `yaml:"nse" envconfig:"NSE"`
}

// BSEConfig configures the HTML-table source.
type BSEConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	BaseURL       string `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.bseindia.com"`
	IssueListPath string `yaml:"issue_list_path" envconfig:"ISSUE_LIST_PATH" default:"/publicissue.html"`
	DemandPath    string `yaml:"demand_path" envconfig:"DEMAND_PATH" default:"/markets/publicIssues/CummDemandSchedule.aspx"`
}

// NSEConfig configures the JSON-API source driven through a headless browser.
type NSEConfig struct {
	Enabled    bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	BaseURL    string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.nseindia.com"`
	Headless   bool          `yaml:"headless" envconfig:"HEADLESS" default:"true"`
	ChromePath string        `yaml:"chrome_path" envconfig:"CHROME_PATH"`
	PageWait   time.Duration `yaml:"page_wait" envconfig:"PAGE_WAIT" default:"2s"`
}

// FetchConfig bounds network access to the exchanges.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"20s"`
	RPS         float64       `yaml:"rps" envconfig:"RPS" default:"1"`
	Burst       int           `yaml:"burst" envconfig:"BURST" default:"2"`
	Retries     int           `yaml:"retries" envconfig:"RETRIES" default:"3"`
	RetryDelay  time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" default:"2s"`
	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY" default:"4"`
}

// StorageConfig selects and configures the snapshot store.
type StorageConfig struct {
	Driver     string   `yaml:"driver" envconfig:"DRIVER" default:"sqlite"`
	SQLitePath string   `yaml:"sqlite_path" envconfig:"SQLITE_PATH" default:"data/subscriptions.db"`
	Postgres   DBConfig `yaml:"postgres" envconfig:"POSTGRES"`
}

// DBConfig holds PostgreSQL connection settings. The variable names
// fall back to the standard libpq ones (PGHOST, PGUSER, ...).
type DBConfig struct {
	Host     string `yaml:"host" envconfig:"PGHOST" default:"localhost"`
	Port     int    `yaml:"port" envconfig:"PGPORT" default:"5432"`
	User     string `yaml:"user" envconfig:"PGUSER" default:"gainipo"`
	Password string `yaml:"password" envconfig:"PGPASSWORD"`
	Database string `yaml:"database" envconfig:"PGDATABASE" default:"gainipo"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"PGSSLMODE" default:"disable"`
	MinConns int32  `yaml:"min_conns" envconfig:"MIN_CONNS" default:"1"`
	MaxConns int32  `yaml:"max_conns" envconfig:"MAX_CONNS" default:"5"`
}

// ScheduleConfig describes the market-hours window and poll cadence.
type ScheduleConfig struct {
	Timezone string        `yaml:"timezone" envconfig:"TIMEZONE" default:"Asia/Kolkata"`
	Open     string        `yaml:"open" envconfig:"OPEN" default:"10:00"`
	Close    string        `yaml:"close" envconfig:"CLOSE" default:"17:30"`
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL" default:"15m"`
	Enforce  bool          `yaml:"enforce" envconfig:"ENFORCE" default:"true"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"gainipo-subscription-scraper"`
	ServiceVersion string `yaml:"service_version" envconfig:"SERVICE_VERSION" default:"1.0.0"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED" default:"false"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED" default:"true"`
}

// NormalizerConfig extends the built-in category rules. Aliases maps a
// label keyword to a canonical category name, e.g. "shareholder": "Retail".
type NormalizerConfig struct {
	Aliases map[string]string `yaml:"aliases" envconfig:"ALIASES"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileConfig, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg = mergeConfigs(*fileConfig, cfg, explicitEnv())
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	// Keys missing from the file keep their defaults.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// explicitEnv returns the set of GAINIPO_* variables present in the
// environment, without the prefix.
func explicitEnv() map[string]bool {
	set := make(map[string]bool)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if rest, ok := strings.CutPrefix(name, EnvPrefix+"_"); ok {
			set[rest] = true
		}
	}
	return set
}

// mergeConfigs merges file config with env config. Both start from the
// same defaults, so a file value wins unless the variable was set
// explicitly.
func mergeConfigs(fileConfig, envConfig Config, env map[string]bool) Config {
	f, e := &fileConfig, &envConfig

	mergeField(env["SERVER_PORT"], f.Server.Port, &e.Server.Port)
	mergeField(env["SERVER_READ_TIMEOUT"], f.Server.ReadTimeout, &e.Server.ReadTimeout)
	mergeField(env["SERVER_WRITE_TIMEOUT"], f.Server.WriteTimeout, &e.Server.WriteTimeout)
	mergeField(env["SERVER_IDLE_TIMEOUT"], f.Server.IdleTimeout, &e.Server.IdleTimeout)
	mergeField(env["SERVER_SHUTDOWN_TIMEOUT"], f.Server.ShutdownTimeout, &e.Server.ShutdownTimeout)
	mergeField(env["SERVER_RATE_LIMIT_ENABLED"], f.Server.RateLimit.Enabled, &e.Server.RateLimit.Enabled)
	mergeField(env["SERVER_RATE_LIMIT_RPS"], f.Server.RateLimit.RPS, &e.Server.RateLimit.RPS)
	mergeField(env["SERVER_RATE_LIMIT_BURST"], f.Server.RateLimit.Burst, &e.Server.RateLimit.Burst)

	mergeField(env["LOGGING_FORMAT"], f.Logging.Format, &e.Logging.Format)
	mergeField(env["LOGGING_LEVEL"], f.Logging.Level, &e.Logging.Level)
	mergeField(env["LOGGING_OUTPUT"], f.Logging.Output, &e.Logging.Output)
	mergeField(env["LOGGING_FILE_PATH"], f.Logging.FilePath, &e.Logging.FilePath)

	mergeField(env["PATHS_DATA_DIR"], f.Paths.DataDir, &e.Paths.DataDir)
	mergeField(env["PATHS_EXPORTS_DIR"], f.Paths.ExportsDir, &e.Paths.ExportsDir)
	mergeField(env["PATHS_LOGS_DIR"], f.Paths.LogsDir, &e.Paths.LogsDir)

	mergeField(env["SOURCES_USER_AGENT"], f.Sources.UserAgent, &e.Sources.UserAgent)
	mergeField(env["SOURCES_BSE_ENABLED"], f.Sources.BSE.Enabled, &e.Sources.BSE.Enabled)
	mergeField(env["SOURCES_BSE_BASE_URL"], f.Sources.BSE.BaseURL, &e.Sources.BSE.BaseURL)
	mergeField(env["SOURCES_BSE_ISSUE_LIST_PATH"], f.Sources.BSE.IssueListPath, &e.Sources.BSE.IssueListPath)
	mergeField(env["SOURCES_BSE_DEMAND_PATH"], f.Sources.BSE.DemandPath, &e.Sources.BSE.DemandPath)
	mergeField(env["SOURCES_NSE_ENABLED"], f.Sources.NSE.Enabled, &e.Sources.NSE.Enabled)
	mergeField(env["SOURCES_NSE_HEADLESS"], f.Sources.NSE.Headless, &e.Sources.NSE.Headless)
	mergeField(env["SOURCES_NSE_BASE_URL"], f.Sources.NSE.BaseURL, &e.Sources.NSE.BaseURL)
	mergeField(env["SOURCES_NSE_CHROME_PATH"], f.Sources.NSE.ChromePath, &e.Sources.NSE.ChromePath)
	mergeField(env["SOURCES_NSE_PAGE_WAIT"], f.Sources.NSE.PageWait, &e.Sources.NSE.PageWait)

	mergeField(env["FETCH_TIMEOUT"], f.Fetch.Timeout, &e.Fetch.Timeout)
	mergeField(env["FETCH_RPS"], f.Fetch.RPS, &e.Fetch.RPS)
	mergeField(env["FETCH_BURST"], f.Fetch.Burst, &e.Fetch.Burst)
	mergeField(env["FETCH_RETRIES"], f.Fetch.Retries, &e.Fetch.Retries)
	mergeField(env["FETCH_RETRY_DELAY"], f.Fetch.RetryDelay, &e.Fetch.RetryDelay)
	mergeField(env["FETCH_CONCURRENCY"], f.Fetch.Concurrency, &e.Fetch.Concurrency)

	mergeField(env["STORAGE_DRIVER"], f.Storage.Driver, &e.Storage.Driver)
	mergeField(env["STORAGE_SQLITE_PATH"], f.Storage.SQLitePath, &e.Storage.SQLitePath)
	mergeField(env["STORAGE_POSTGRES_PGHOST"], f.Storage.Postgres.Host, &e.Storage.Postgres.Host)
	mergeField(env["STORAGE_POSTGRES_PGPORT"], f.Storage.Postgres.Port, &e.Storage.Postgres.Port)
	mergeField(env["STORAGE_POSTGRES_PGUSER"], f.Storage.Postgres.User, &e.Storage.Postgres.User)
	mergeField(env["STORAGE_POSTGRES_PGPASSWORD"], f.Storage.Postgres.Password, &e.Storage.Postgres.Password)
	mergeField(env["STORAGE_POSTGRES_PGDATABASE"], f.Storage.Postgres.Database, &e.Storage.Postgres.Database)
	mergeField(env["STORAGE_POSTGRES_PGSSLMODE"], f.Storage.Postgres.SSLMode, &e.Storage.Postgres.SSLMode)
	mergeField(env["STORAGE_POSTGRES_MIN_CONNS"], f.Storage.Postgres.MinConns, &e.Storage.Postgres.MinConns)
	mergeField(env["STORAGE_POSTGRES_MAX_CONNS"], f.Storage.Postgres.MaxConns, &e.Storage.Postgres.MaxConns)

	mergeField(env["SCHEDULE_TIMEZONE"], f.Schedule.Timezone, &e.Schedule.Timezone)
	mergeField(env["SCHEDULE_OPEN"], f.Schedule.Open, &e.Schedule.Open)
	mergeField(env["SCHEDULE_CLOSE"], f.Schedule.Close, &e.Schedule.Close)
	mergeField(env["SCHEDULE_INTERVAL"], f.Schedule.Interval, &e.Schedule.Interval)
	mergeField(env["SCHEDULE_ENFORCE"], f.Schedule.Enforce, &e.Schedule.Enforce)

	mergeField(env["TELEMETRY_SERVICE_NAME"], f.Telemetry.ServiceName, &e.Telemetry.ServiceName)
	mergeField(env["TELEMETRY_SERVICE_VERSION"], f.Telemetry.ServiceVersion, &e.Telemetry.ServiceVersion)
	mergeField(env["TELEMETRY_ENVIRONMENT"], f.Telemetry.Environment, &e.Telemetry.Environment)
	mergeField(env["TELEMETRY_TRACING_ENABLED"], f.Telemetry.TracingEnabled, &e.Telemetry.TracingEnabled)
	mergeField(env["TELEMETRY_METRICS_ENABLED"], f.Telemetry.MetricsEnabled, &e.Telemetry.MetricsEnabled)

	mergeField(env["NORMALIZER_ALIASES"], f.Normalizer.Aliases, &e.Normalizer.Aliases)

	return envConfig
}

// mergeField copies the file value unless the env var was set.
func mergeField[T any](set bool, file T, dst *T) {
	if !set {
		*dst = file
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if c.Fetch.RPS <= 0 {
		return fmt.Errorf("fetch rps must be positive")
	}

	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch retries must not be negative")
	}

	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = 1
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path must be set")
		}
	case "postgres":
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.Database == "" {
			return fmt.Errorf("postgres host and database must be set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}

	if _, err := time.Parse("15:04", c.Schedule.Open); err != nil {
		return fmt.Errorf("invalid schedule open %q: %w", c.Schedule.Open, err)
	}

	if _, err := time.Parse("15:04", c.Schedule.Close); err != nil {
		return fmt.Errorf("invalid schedule close %q: %w", c.Schedule.Close, err)
	}

	if c.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule interval must be positive")
	}

	// Logs are always JSON.
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/scraper.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/scraper.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			ExportsDir: "data/exports",
			LogsDir:    "logs",
		},
		Sources: SourcesConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			BSE: BSEConfig{
				Enabled:       true,
				BaseURL:       "https://www.bseindia.com",
				IssueListPath: "/publicissue.html",
				DemandPath:    "/markets/publicIssues/CummDemandSchedule.aspx",
			},
			NSE: NSEConfig{
				Enabled:  true,
				BaseURL:  "https://www.nseindia.com",
				Headless: true,
				PageWait: 2 * time.Second,
			},
		},
		Fetch: FetchConfig{
			Timeout:     20 * time.Second,
			RPS:         1,
			Burst:       2,
			Retries:     3,
			RetryDelay:  2 * time.Second,
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "data/subscriptions.db",
			Postgres: DBConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "gainipo",
				Database: "gainipo",
				SSLMode:  "disable",
				MinConns: 1,
				MaxConns: 5,
			},
		},
		Schedule: ScheduleConfig{
			Timezone: "Asia/Kolkata",
			Open:     "10:00",
			Close:    "17:30",
			Interval: 15 * time.Minute,
			Enforce:  true,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "gainipo-subscription-scraper",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			MetricsEnabled: true,
		},
	}
}
