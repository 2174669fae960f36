package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. CRYPTO_SERVER_PORT.
const EnvPrefix = "CRYPTO"

// Column names understood by the importer
const (
	ColumnTimestamp = "timestamp"
	ColumnSymbol    = "symbol"
	ColumnPrice     = "price"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Storage   StorageConfig   `yaml:"storage" envconfig:"STORAGE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS      bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	AllowedNetworks []string        `yaml:"allowed_networks" envconfig:"ALLOWED_NETWORKS" validate:"dive,cidr|ip"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// InputConfig describes where the importer finds its files and how records
// map onto price observations. LinesToSkip counts physical lines, blank
// ones included, and applies to every file. ImportOnStartup launches one
// import when the server starts.
type InputConfig struct {
	SourceDir       string         `yaml:"source_dir" envconfig:"SOURCE_DIR" validate:"required"`
	Pattern         string         `yaml:"pattern" envconfig:"PATTERN" validate:"required"`
	LinesToSkip     int            `yaml:"lines_to_skip" envconfig:"LINES_TO_SKIP" validate:"min=0"`
	Columns         map[string]int `yaml:"columns" envconfig:"COLUMNS"`
	Delimiter       string         `yaml:"delimiter" envconfig:"DELIMITER" validate:"len=1"`
	ChunkSize       int            `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"min=1"`
	ImportOnStartup bool           `yaml:"import_on_startup" envconfig:"IMPORT_ON_STARTUP"`
}

// AnalyticsConfig configures the analytics engine
type AnalyticsConfig struct {
	DisabledSymbols []string `yaml:"disabled_symbols" envconfig:"DISABLED_SYMBOLS"`
	Concurrency     int      `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=64"`
}

// StorageConfig selects and configures the price store
type StorageConfig struct {
	Driver       string        `yaml:"driver" envconfig:"DRIVER" validate:"oneof=memory sqlite postgres"`
	DSN          string        `yaml:"dsn" envconfig:"DSN" validate:"required_unless=Driver memory"`
	QueryTimeout time.Duration `yaml:"query_timeout" envconfig:"QUERY_TIMEOUT" validate:"gt=0"`
	LogQueries   bool          `yaml:"log_queries" envconfig:"LOG_QUERIES"`
}

// TelemetryConfig configures OpenTelemetry
type TelemetryConfig struct {
	EnableTracing bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
	Environment   string  `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"min=1"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"min=1"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gtfield=PingPeriod"`
}

// Load resolves configuration once at startup. Defaults are overlaid by the
// optional YAML file, which is in turn overlaid by environment variables.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document at filePath onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and the column mapping
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	seen := make(map[int]string, 3)
	for _, name := range []string{ColumnTimestamp, ColumnSymbol, ColumnPrice} {
		idx, ok := c.Input.Columns[name]
		if !ok {
			return fmt.Errorf("input column mapping is missing %q", name)
		}
		if idx < 0 {
			return fmt.Errorf("input column %q has negative index %d", name, idx)
		}
		if other, dup := seen[idx]; dup {
			return fmt.Errorf("input columns %q and %q share index %d", other, name, idx)
		}
		seen[idx] = name
	}

	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
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
			RequestTimeout:  20 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Input: InputConfig{
			SourceDir:   "prices",
			Pattern:     "*_values.csv",
			LinesToSkip: 1,
			Columns: map[string]int{
				ColumnTimestamp: 0,
				ColumnSymbol:    1,
				ColumnPrice:     2,
			},
			Delimiter: ",",
			ChunkSize: 10,
		},
		Analytics: AnalyticsConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Driver:       "memory",
			QueryTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			EnableTracing: false,
			EnableMetrics: true,
			TraceExporter: "stdout",
			SampleRatio:   1.0,
			Environment:   "development",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
