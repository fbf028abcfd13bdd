package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eleven-am/todoapi/internal/storage"
)

var configLocations = []string{"todoapi.yaml", "todoapi.yml", ".todoapi.yaml", ".todoapi.yml"}

// Config represents the todoapi.yaml configuration structure
type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		MaxUploadSize   int64         `yaml:"max_upload_size"`
	} `yaml:"server"`

	Database struct {
		Driver             string        `yaml:"driver"`
		URL                string        `yaml:"url"`
		MaxConnections     int           `yaml:"max_connections"`
		MaxIdleConnections int           `yaml:"max_idle_connections"`
		ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Auth struct {
		Secret      string        `yaml:"secret"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
		BcryptCost  int           `yaml:"bcrypt_cost"`
		HashWorkers int           `yaml:"hash_workers"`
		CacheTTL    time.Duration `yaml:"cache_ttl"`
	} `yaml:"auth"`

	Storage storage.Config `yaml:"storage"`

	Log struct {
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig reads the config file at path, or the first one found in the
// working directory when path is empty. Environment overrides and defaults
// are applied afterwards, so a missing file still yields a usable Config.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// GetConfigPath returns $TODOAPI_CONFIG or the first existing default location
func GetConfigPath() string {
	if path := os.Getenv("TODOAPI_CONFIG"); path != "" {
		return path
	}

	for _, loc := range configLocations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		c.Auth.Secret = secret
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 5 << 20
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 25
	}
	if c.Database.MaxIdleConnections == 0 {
		c.Database.MaxIdleConnections = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 10 * time.Minute
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Auth.HashWorkers == 0 {
		c.Auth.HashWorkers = runtime.NumCPU()
	}
	if c.Auth.CacheTTL == 0 {
		c.Auth.CacheTTL = 5 * time.Minute
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "disk"
	}
	if c.Storage.Driver == "disk" && c.Storage.RootPath == "" {
		c.Storage.RootPath = "uploads"
	}

	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first setting that prevents the server from starting
func (c *Config) Validate() error {
	if c.Server.MaxUploadSize < 0 {
		return fmt.Errorf("server.max_upload_size must not be negative")
	}
	if c.Database.Driver != "postgres" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database connection required: use --url, DATABASE_URL, or database.url in todoapi.yaml")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("signing secret required: set SECRET_KEY or auth.secret (generate one with 'todoapi secret')")
	}
	switch c.Storage.Driver {
	case "disk":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// SaveConfig writes config as YAML to path, creating parent directories
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = configLocations[0]
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
