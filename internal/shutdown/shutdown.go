// Package shutdown defers a requested stop until in-flight camera work is
// finished.
package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/video-system/go-tether/internal/log"
)

// ErrRequested is returned by Run once a requested shutdown may proceed.
var ErrRequested = errors.New("shutdown requested")

// Config controls how long a shutdown may be held back.
type Config struct {
	Grace time.Duration // Longest wait for busy work; 0 stops immediately
	Poll  time.Duration // How often busy is checked (500ms)
}

// Coordinator turns shutdown requests into a single Run return, held back
// while busy reports true.
type Coordinator struct {
	cfg      Config
	busy     func() bool
	requests chan string
	logger   zerolog.Logger
}

// New creates a coordinator. busy reports whether a capture or recording
// is in progress.
func New(cfg Config, busy func() bool) *Coordinator {
	if cfg.Poll <= 0 {
		cfg.Poll = 500 * time.Millisecond
	}
	return &Coordinator{
		cfg:      cfg,
		busy:     busy,
		requests: make(chan string, 1),
		logger:   log.WithComponent("shutdown"),
	}
}

// Request asks for a shutdown. It never blocks; requests made while one is
// already pending are dropped.
func (c *Coordinator) Request(reason string) {
	select {
	case c.requests <- reason:
	default:
	}
}

// Run waits for a request, then for busy to clear or the grace period to
// run out, and returns ErrRequested. It returns nil when ctx ends first.
func (c *Coordinator) Run(ctx context.Context) error {
	var reason string
	select {
	case <-ctx.Done():
		return nil
	case reason = <-c.requests:
	}

	if !c.busy() {
		c.logger.Info().Str("reason", reason).Msg("shutting down")
		return ErrRequested
	}

	c.logger.Warn().
		Str("reason", reason).
		Dur("grace", c.cfg.Grace).
		Msg("camera busy, shutdown deferred")

	grace := time.NewTimer(c.cfg.Grace)
	defer grace.Stop()
	ticker := time.NewTicker(c.cfg.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-grace.C:
			c.logger.Warn().Str("reason", reason).Msg("grace period over, shutting down while busy")
			return ErrRequested
		case <-ticker.C:
		}
		if !c.busy() {
			c.logger.Info().Str("reason", reason).Msg("camera idle, shutting down")
			return ErrRequested
		}
	}
}
