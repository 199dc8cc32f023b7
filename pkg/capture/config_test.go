package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Capture.DuringRecordingTimeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Capture.PumpInterval)
	assert.Equal(t, 200*time.Millisecond, cfg.Capture.PumpPeriod)
	assert.Equal(t, 30*time.Second, cfg.Recording.MovieTimeout)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 2*time.Minute, cfg.Events.ShutdownGrace)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	t.Setenv("TETHER_API_KEY", "secret")

	cfg, err := ParseConfig([]byte(`
sdk:
  library_path: /opt/EDSDK
  auto_connect: true
capture:
  timeout: 10s
  max_edge: 2048
recording:
  scratch_dir: /var/tmp/tether
  convert_mp4: true
platform:
  enabled: true
  url: https://platform.example.com
  api_key: ${TETHER_API_KEY}
  machine_id: booth-7
log:
  level: debug
  format: console
`))
	require.NoError(t, err)

	assert.Equal(t, "/opt/EDSDK", cfg.SDK.LibraryPath)
	assert.True(t, cfg.SDK.AutoConnect)
	assert.Equal(t, 10*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Capture.DuringRecordingTimeout, "unset values defaulted")
	assert.Equal(t, 2048, cfg.Capture.MaxEdge)
	assert.Equal(t, "/var/tmp/tether", cfg.Recording.ScratchDir)
	assert.True(t, cfg.Recording.ConvertMP4)
	assert.Equal(t, "secret", cfg.Platform.APIKey)
	assert.Equal(t, "https://platform.example.com", cfg.Events.URL, "events follow the platform")
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"syntax", "capture: [", "parse config"},
		{"quality", "capture:\n  jpeg_quality: 101", "jpeg_quality"},
		{"pump interval", "capture:\n  timeout: 10ms\n  pump_interval: 20ms", "pump_interval"},
		{"device index", "sdk:\n  device_index: -1", "device_index"},
		{"platform url", "platform:\n  enabled: true", "platform.url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 9090\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.API.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
