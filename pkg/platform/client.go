// Package platform reports camera and machine state to the booth backend.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/video-system/go-tether/internal/log"
)

// ErrNotConfigured is returned by calls that need a backend URL.
var ErrNotConfigured = errors.New("platform client not configured")

// ErrRateLimited is returned when a device alert is suppressed because one
// was sent recently.
var ErrRateLimited = errors.New("device alert rate limited")

// Client is the machine-facing backend API client
type Client struct {
	baseURL     string
	apiKey      string
	machineID   string
	machinePort string
	httpClient  *http.Client
	uploads     *http.Client
	alerts      *rate.Limiter
	logger      zerolog.Logger
}

// Config holds platform client configuration
type Config struct {
	URL           string
	APIKey        string
	MachineID     string
	MachinePort   string
	AlertInterval time.Duration // Minimum gap between device alerts; 0 disables limiting
}

// Alert reports a device that went missing
type Alert struct {
	DeviceType       string   `json:"deviceType"`
	DeviceName       string   `json:"deviceName"`
	AvailableDevices []string `json:"availableDevices"`
}

// CameraStatus is the camera part of a status report
type CameraStatus struct {
	Configured bool   `json:"configured"`
	Found      bool   `json:"found"`
	DeviceName string `json:"deviceName"`
}

// StatusReport is sent at startup and on request
type StatusReport struct {
	IsStartup bool         `json:"isStartup"`
	Camera    CameraStatus `json:"camera"`
}

// Heartbeat carries liveness and a short camera summary
type Heartbeat struct {
	Timestamp       int64  `json:"timestamp"`
	CameraConnected bool   `json:"cameraConnected"`
	CameraName      string `json:"cameraName,omitempty"`
	Recording       bool   `json:"recording"`
	BatteryLevel    *int   `json:"batteryLevel,omitempty"`
}

// MediaMetadata describes an uploaded still or movie
type MediaMetadata struct {
	Kind          string `json:"kind"` // photo, movie
	DeviceName    string `json:"device_name,omitempty"`
	CapturedAt    int64  `json:"captured_at"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
}

// UploadResult represents the result of a media upload
type UploadResult struct {
	Status   string `json:"status"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	URL      string `json:"url,omitempty"`
}

// New creates a new platform client
func New(cfg Config) *Client {
	limit := rate.Inf
	if cfg.AlertInterval > 0 {
		limit = rate.Every(cfg.AlertInterval)
	}
	return &Client{
		baseURL:     cfg.URL,
		apiKey:      cfg.APIKey,
		machineID:   cfg.MachineID,
		machinePort: cfg.MachinePort,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		uploads: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for movie uploads
		},
		alerts: rate.NewLimiter(limit, 1),
		logger: log.WithComponent("platform"),
	}
}

// IsConfigured returns true if the client is properly configured
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// SendHeartbeat reports that the machine is alive
func (c *Client) SendHeartbeat(ctx context.Context, hb Heartbeat) error {
	if hb.Timestamp == 0 {
		hb.Timestamp = time.Now().UnixMilli()
	}
	return c.postJSON(ctx, "heartbeat", hb)
}

// SendDeviceAlert reports a lost device. Alerts closer together than the
// configured interval are dropped with ErrRateLimited.
func (c *Client) SendDeviceAlert(ctx context.Context, alert Alert) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if !c.alerts.Allow() {
		c.logger.Debug().Str("device", alert.DeviceName).Msg("device alert suppressed")
		return ErrRateLimited
	}
	if alert.AvailableDevices == nil {
		alert.AvailableDevices = []string{}
	}
	return c.postJSON(ctx, "device-alert", alert)
}

// SendDeviceReconnected reports that a previously lost device is back
func (c *Client) SendDeviceReconnected(ctx context.Context, deviceType, deviceName string) error {
	return c.postJSON(ctx, "device-reconnected", map[string]string{
		"deviceType": deviceType,
		"deviceName": deviceName,
	})
}

// SendStatusReport reports which devices are configured and present
func (c *Client) SendStatusReport(ctx context.Context, report StatusReport) error {
	return c.postJSON(ctx, "device-status-report", report)
}

// NotifyGoingOffline tells the backend the machine is shutting down. Call
// it before the event stream is closed.
func (c *Client) NotifyGoingOffline(ctx context.Context) error {
	return c.postJSON(ctx, "notify-going-offline", nil)
}

// UploadMedia uploads a captured file to the platform
func (c *Client) UploadMedia(ctx context.Context, filePath string, metadata MediaMetadata) (*UploadResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	metadata.FileSizeBytes = fileInfo.Size()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writer.WriteField("metadata", string(metadataJSON)); err != nil {
		return nil, fmt.Errorf("write metadata field: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file to form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "media/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	c.logger.Info().
		Str("file", result.FileName).
		Int64("bytes", metadata.FileSizeBytes).
		Msg("media uploaded")
	return &result, nil
}

// CheckHealth checks if the platform is accessible
func (c *Client) CheckHealth(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// newRequest builds a request to a machines-public endpoint carrying the
// machine identity.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	u := fmt.Sprintf("%s/api/machines-public/%s?machineId=%s", c.baseURL, endpoint, url.QueryEscape(c.machineID))
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Machine-Port", c.machinePort)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (status %d): %s", endpoint, resp.StatusCode, string(respBody))
	}
	return nil
}
