// Package events keeps a server-sent event stream open to the booth
// backend. The backend treats the open connection as the machine's
// presence and pushes commands down it.
package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/video-system/go-tether/internal/log"
)

// Commands the backend sends.
const (
	EventCloseApp        = "close-app"
	EventShutdown        = "shutdown"
	EventCameraReconnect = "camera-reconnect"
)

const maxLine = 1 << 20

// Event is one dispatched stream event. Data is the raw payload; JSON
// payloads can be read with Decode.
type Event struct {
	Name string
	Data string
}

// Decode unmarshals a JSON payload.
func (e Event) Decode(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// Handler receives events in stream order.
type Handler func(Event)

// Config configures the stream client
type Config struct {
	URL            string
	MachineID      string
	MachinePort    string
	InitialBackoff time.Duration // 5s
	MaxBackoff     time.Duration // 60s
}

// Client maintains the stream, reconnecting with exponential backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
	connected  atomic.Bool
	logger     zerolog.Logger
}

// New creates a stream client
func New(cfg Config) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	return &Client{
		cfg: cfg,
		// No timeout: the response body stays open for the life of the stream.
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger:     log.WithComponent("events"),
	}
}

// Connected reports whether the stream is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects and dispatches events to h until ctx is cancelled. Dropped
// or refused connections are retried forever.
func (c *Client) Run(ctx context.Context, h Handler) error {
	defer c.httpClient.CloseIdleConnections()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()

	for {
		opened, err := c.stream(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if opened {
			b.Reset()
		}

		delay := b.NextBackOff()
		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("event stream closed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// stream holds one connection open. opened reports whether the server
// accepted it.
func (c *Client) stream(ctx context.Context, h Handler) (opened bool, err error) {
	u := fmt.Sprintf("%s/api/sse/machine/connect?machineId=%s",
		strings.TrimRight(c.cfg.URL, "/"), url.QueryEscape(c.cfg.MachineID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Machine-Port", c.cfg.MachinePort)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("connect (status %d)", resp.StatusCode)
	}

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Info().Msg("event stream connected")

	err = parse(resp.Body, h)
	if err == nil {
		err = errors.New("stream ended")
	}
	return true, err
}

// parse reads events until r is exhausted. Comment lines are keep-alives.
func parse(r io.Reader, h Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var name string
	var data []string
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			if len(data) > 0 {
				h(newEvent(name, strings.Join(data, "\n")))
			}
			name, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}

// newEvent names unnamed events after the payload's "type" field.
func newEvent(name, data string) Event {
	if name == "" {
		var typed struct {
			Type string `json:"type"`
		}
		if json.Unmarshal([]byte(data), &typed) == nil && typed.Type != "" {
			name = typed.Type
		} else {
			name = "message"
		}
	}
	return Event{Name: name, Data: data}
}
