package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Drive   DriveConfig   `yaml:"drive" envconfig:"DRIVE"`
	Cache   CacheConfig   `yaml:"cache" envconfig:"CACHE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// DriveConfig contains the remote file store configuration
type DriveConfig struct {
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE" default:"credentials.json"`
	RootFolderID    string        `yaml:"root_folder_id" envconfig:"ROOT_FOLDER_ID"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
}

// CacheConfig contains tiered cache configuration
type CacheConfig struct {
	Dir            string        `yaml:"dir" envconfig:"DIR" default:"cache"`
	MaxAge         time.Duration `yaml:"max_age" envconfig:"MAX_AGE" default:"24h"`
	MemoryEntries  int           `yaml:"memory_entries" envconfig:"MEMORY_ENTRIES" default:"5"`
	PreloadLimit   int           `yaml:"preload_limit" envconfig:"PRELOAD_LIMIT" default:"10"`
	PreloadPause   time.Duration `yaml:"preload_pause" envconfig:"PRELOAD_PAUSE" default:"500ms"`
	SweepInterval  time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"1h"`
	PreloadOnStart bool          `yaml:"preload_on_start" envconfig:"PRELOAD_ON_START" default:"true"`
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment variables take precedence.
func Load() (*Config, error) {
	var cfg Config

	if configFile := findConfigFile(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	if err := envconfig.Process("CELLPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills zero values that envconfig leaves untouched when a
// config file supplied partial values.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Output == "" {
		c.Logging.Output = def.Logging.Output
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = def.Logging.FilePath
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = def.Cache.Dir
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = def.Cache.MaxAge
	}
	if c.Cache.MemoryEntries == 0 {
		c.Cache.MemoryEntries = def.Cache.MemoryEntries
	}
	if c.Cache.PreloadLimit == 0 {
		c.Cache.PreloadLimit = def.Cache.PreloadLimit
	}
	if c.Cache.PreloadPause == 0 {
		c.Cache.PreloadPause = def.Cache.PreloadPause
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = def.Cache.SweepInterval
	}
	if c.Drive.CredentialsFile == "" {
		c.Drive.CredentialsFile = def.Drive.CredentialsFile
	}
	if c.Drive.RequestTimeout == 0 {
		c.Drive.RequestTimeout = def.Drive.RequestTimeout
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

	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache max age must be positive")
	}

	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("cache memory entries must not be negative")
	}

	if c.Cache.PreloadLimit < 0 {
		return fmt.Errorf("cache preload limit must not be negative")
	}

	return nil
}

// findConfigFile returns the path to the config file, checking common
// locations. Empty string means env vars only.
func findConfigFile() string {
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
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  25,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Drive: DriveConfig{
			CredentialsFile: "credentials.json",
			RequestTimeout:  2 * time.Minute,
		},
		Cache: CacheConfig{
			Dir:            "cache",
			MaxAge:         24 * time.Hour,
			MemoryEntries:  5,
			PreloadLimit:   10,
			PreloadPause:   500 * time.Millisecond,
			SweepInterval:  time.Hour,
			PreloadOnStart: true,
		},
	}
}
