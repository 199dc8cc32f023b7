package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tether configuration
type Config struct {
	SDK       SDKConfig       `yaml:"sdk"`
	Capture   CaptureConfig   `yaml:"capture"`
	Recording RecordingConfig `yaml:"recording"`
	API       APIConfig       `yaml:"api"`
	Platform  PlatformConfig  `yaml:"platform"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// SDKConfig locates the camera library
type SDKConfig struct {
	LibraryPath string   `yaml:"library_path"` // File or directory; empty searches defaults
	SearchDirs  []string `yaml:"search_dirs"`
	AutoConnect bool     `yaml:"auto_connect"` // Initialize, connect and open a session at startup
	DeviceIndex int      `yaml:"device_index"`
}

// CaptureConfig tunes the still capture rendezvous
type CaptureConfig struct {
	Timeout                time.Duration `yaml:"timeout"`                  // 30s
	DuringRecordingTimeout time.Duration `yaml:"during_recording_timeout"` // 15s
	PumpInterval           time.Duration `yaml:"pump_interval"`            // Sleep between pumps while waiting (20ms)
	PumpPeriod             time.Duration `yaml:"pump_period"`              // Background pump period (200ms)
	MaxEdge                int           `yaml:"max_edge"`                 // Downscale longest edge; 0 keeps the original
	JPEGQuality            int           `yaml:"jpeg_quality"`
}

// RecordingConfig tunes movie recording
type RecordingConfig struct {
	ScratchDir   string        `yaml:"scratch_dir"`
	MovieTimeout time.Duration `yaml:"movie_timeout"` // 30s
	SettleDelay  time.Duration `yaml:"settle_delay"`  // After entering movie mode
	ConvertMP4   bool          `yaml:"convert_mp4"`
}

// APIConfig configures the control API
type APIConfig struct {
	Port      int    `yaml:"port"`
	Host      string `yaml:"host"`
	RateLimit int    `yaml:"rate_limit"` // Requests per minute per client IP
}

// PlatformConfig configures optional backend integration
type PlatformConfig struct {
	Enabled           bool          `yaml:"enabled"`
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"api_key"`
	MachineID         string        `yaml:"machine_id"`
	MachinePort       string        `yaml:"machine_port"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	AlertInterval     time.Duration `yaml:"alert_interval"` // Minimum gap between device alerts
}

// EventsConfig configures the push event stream
type EventsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`            // Defaults to platform.url
	ShutdownGrace time.Duration `yaml:"shutdown_grace"` // Longest a remote shutdown waits for a capture or recording (2m)
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding environment variables
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the coordinator cannot run with
func (c *Config) Validate() error {
	if c.SDK.DeviceIndex < 0 {
		return fmt.Errorf("sdk.device_index must not be negative")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100")
	}
	if c.Capture.PumpInterval >= c.Capture.Timeout {
		return fmt.Errorf("capture.pump_interval must be shorter than capture.timeout")
	}
	if c.Platform.Enabled && c.Platform.URL == "" {
		return fmt.Errorf("platform.url is required when platform is enabled")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Capture.Timeout == 0 {
		c.Capture.Timeout = 30 * time.Second
	}
	if c.Capture.DuringRecordingTimeout == 0 {
		c.Capture.DuringRecordingTimeout = 15 * time.Second
	}
	if c.Capture.PumpInterval == 0 {
		c.Capture.PumpInterval = 20 * time.Millisecond
	}
	if c.Capture.PumpPeriod == 0 {
		c.Capture.PumpPeriod = 200 * time.Millisecond
	}
	if c.Capture.JPEGQuality == 0 {
		c.Capture.JPEGQuality = 90
	}
	if c.Recording.ScratchDir == "" {
		c.Recording.ScratchDir = filepath.Join(os.TempDir(), "tether", "videos")
	}
	if c.Recording.MovieTimeout == 0 {
		c.Recording.MovieTimeout = 30 * time.Second
	}
	if c.Recording.SettleDelay == 0 {
		c.Recording.SettleDelay = 500 * time.Millisecond
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 600
	}
	if c.Platform.HeartbeatInterval == 0 {
		c.Platform.HeartbeatInterval = 30 * time.Second
	}
	if c.Platform.AlertInterval == 0 {
		c.Platform.AlertInterval = 5 * time.Minute
	}
	if c.Events.URL == "" {
		c.Events.URL = c.Platform.URL
	}
	if c.Events.ShutdownGrace == 0 {
		c.Events.ShutdownGrace = 2 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
