package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/ibeckermayer/xscrape/internal/types"
)

// Environment variables that override secrets in the config file.
const (
	EnvCredentials       = "XSCRAPE_CREDENTIALS"
	EnvPaidProxyPassword = "XSCRAPE_PAID_PROXY_PASSWORD"
	EnvAddr              = "XSCRAPE_ADDR"
)

// Config holds all application configuration
type Config struct {
	Version     int                `toml:"version"`
	Server      ServerConfig       `toml:"server"`
	Scraping    ScrapingConfig     `toml:"scraping"`
	Pacing      PacingConfig       `toml:"pacing"`
	Proxy       ProxyConfig        `toml:"proxy"`
	Cache       CacheConfig        `toml:"cache"`
	Output      OutputConfig       `toml:"output"`
	Ledger      LedgerConfig       `toml:"ledger"`
	Schedule    ScheduleConfig     `toml:"schedule"`
	Instances   InstancesConfig    `toml:"instances"`
	Log         LogConfig          `toml:"log"`
	Telemetry   TelemetryConfig    `toml:"telemetry"`
	Credentials []types.Credential `toml:"credentials"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// BaseURL is how clients reach the server. Scheduled jobs build their
	// cache keys from it so they share entries with HTTP requests.
	BaseURL string `toml:"base_url"`
}

type ScrapingConfig struct {
	Headless        bool          `toml:"headless"`
	PostsPerScrape  int           `toml:"posts_per_scrape"`
	CommentsPerPost int           `toml:"comments_per_post"`
	Workers         int           `toml:"workers"`
	MaxRetries      int           `toml:"max_retries"`
	ScrollOffset    int           `toml:"scroll_offset"`
	MaxScrolls      int           `toml:"max_scrolls"`
	StallLimit      int           `toml:"stall_limit"`
	AttemptTimeout  time.Duration `toml:"attempt_timeout"`
	SlowElementWait time.Duration `toml:"slow_element_wait"`
	// LaunchInterval is the minimum spacing between browser launches.
	LaunchInterval time.Duration `toml:"launch_interval"`
}

type PacingConfig struct {
	MinPause       time.Duration `toml:"min_pause"`
	MaxPause       time.Duration `toml:"max_pause"`
	KeystrokeDelay time.Duration `toml:"keystroke_delay"`
	LoginSettle    time.Duration `toml:"login_settle"`
}

type ProxyConfig struct {
	Mode         string   `toml:"mode"` // none, free, paid
	PaidServer   string   `toml:"paid_server"`
	PaidUser     string   `toml:"paid_user"`
	PaidPassword string   `toml:"paid_password"`
	FreeServers  []string `toml:"free_servers"`
}

type CacheConfig struct {
	// Dir is the badger directory; empty keeps the cache in memory.
	Dir string        `toml:"dir"`
	TTL time.Duration `toml:"ttl"`
}

type OutputConfig struct {
	Dir string `toml:"dir"`
}

type LedgerConfig struct {
	Path string `toml:"path"`
}

type ScheduleConfig struct {
	Timezone     string `toml:"timezone"`
	TrendingWarm string `toml:"trending_warm"` // cron expression, empty disables
	Housekeeping string `toml:"housekeeping"`
}

type InstancesConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// TelemetryConfig selects the OTLP trace exporter. With neither endpoint set
// spans are still recorded in process but never exported.
type TelemetryConfig struct {
	ServiceName  string            `toml:"service_name"`
	GrpcEndpoint string            `toml:"grpc_endpoint"`
	HttpEndpoint string            `toml:"http_endpoint"`
	Headers      map[string]string `toml:"headers"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:    ":8000",
			BaseURL: "http://localhost:8000",
		},
		Scraping: ScrapingConfig{
			Headless:        true,
			PostsPerScrape:  2,
			CommentsPerPost: 2,
			Workers:         5,
			MaxRetries:      3,
			ScrollOffset:    200,
			MaxScrolls:      60,
			StallLimit:      8,
			AttemptTimeout:  10 * time.Minute,
			SlowElementWait: 60 * time.Second,
			LaunchInterval:  2 * time.Second,
		},
		Pacing: PacingConfig{
			MinPause:       1 * time.Second,
			MaxPause:       10 * time.Second,
			KeystrokeDelay: 100 * time.Millisecond,
			LoginSettle:    10 * time.Second,
		},
		Proxy: ProxyConfig{
			Mode: "none",
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Output: OutputConfig{
			Dir: "Json_Response",
		},
		Schedule: ScheduleConfig{
			Timezone:     "UTC",
			Housekeeping: "@hourly",
		},
		Instances: InstancesConfig{
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "xscrape",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xscrape"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "xscrape"), nil
}

// Load reads config from the default path
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads config from path on top of the defaults, then applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads a .env file if one exists and overrides secrets from the
// environment.
func (c *Config) ApplyEnv() error {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvPaidProxyPassword); v != "" {
		c.Proxy.PaidPassword = v
	}
	if v := os.Getenv(EnvCredentials); v != "" {
		creds, err := ParseCredentials(v)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvCredentials, err)
		}
		c.Credentials = creds
	}
	return nil
}

// ParseCredentials parses "username:email:password" triples separated by
// semicolons. The password is the remainder after the second colon.
func ParseCredentials(s string) ([]types.Credential, error) {
	var creds []types.Credential
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("malformed credential entry %q", maskEntry(entry))
		}
		creds = append(creds, types.Credential{
			Username: parts[0],
			Email:    parts[1],
			Password: parts[2],
		})
	}
	return creds, nil
}

// maskEntry keeps only the username part for error messages.
func maskEntry(entry string) string {
	if i := strings.Index(entry, ":"); i >= 0 {
		return entry[:i] + ":***"
	}
	return "***"
}

// Save writes config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
