package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Upstream     UpstreamConfig     `mapstructure:"upstream"`
	Download     DownloadConfig     `mapstructure:"download"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// UpstreamConfig locates the NeteaseCloudMusicApi-compatible service
// that resolves playlists, track URLs and login state
type UpstreamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DownloadConfig contains batch-download configuration
type DownloadConfig struct {
	OutputDir    string        `mapstructure:"output_dir"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	Quality      QualityLevel  `mapstructure:"quality"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// AuthConfig controls the login-wait behavior while a batch is
// suspended for authentication
type AuthConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
}

// CacheConfig contains playlist metadata cache configuration
type CacheConfig struct {
	DatabasePath string        `mapstructure:"database_path"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // directory for batch event logs
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Upstream: UpstreamConfig{
			BaseURL: "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Download: DownloadConfig{
			OutputDir:    "$HOME/Downloads/tunepack",
			ChunkSize:    50,
			Quality:      QualityExHigh,
			FetchTimeout: 30 * time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Auth: AuthConfig{
			PollInterval: 2 * time.Second,
			MaxWait:      5 * time.Minute,
		},
		Cache: CacheConfig{
			DatabasePath: "$HOME/Downloads/tunepack/config/cache.db",
			TTL:          10 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/Downloads/tunepack/logs",
		},
	}
}
