// Package api exposes the capture coordinator over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/video-system/go-tether/internal/log"
	"github.com/video-system/go-tether/pkg/capture"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// Camera is the coordinator surface the API drives. *capture.Manager
// satisfies it.
type Camera interface {
	Initialize(locator string) error
	Terminate() error
	Status() capture.Status
	ListDevices() ([]capture.Device, error)
	Connect(index int) (capture.Device, error)
	OpenSession() error
	CloseSession() error

	TakePicture() capture.CaptureResult
	SendShutter() capture.CaptureResult
	PollCaptureResult() capture.CaptureResult
	PumpEvents() bool

	StartLiveView() error
	StopLiveView() error
	LiveViewFrame() ([]byte, error)

	GetProperty(id edsdk.PropertyID) (uint32, error)
	SetProperty(id edsdk.PropertyID, value uint32) error
	BatteryLevel() (uint32, error)
	AvailableShots() (uint32, error)

	IsRecording() bool
	StartRecording() error
	StopRecordingWait(ctx context.Context) (string, error)
	StopRecordingFast() error
	FinalizeMovieDownload(ctx context.Context) (string, error)
	TakePhotoDuringRecording() capture.CaptureResult
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int // Requests per minute per client IP; 0 disables limiting
}

// Server is the HTTP API server
type Server struct {
	cfg    ServerConfig
	cam    Camera
	server *http.Server
	logger zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig, cam Camera) *Server {
	s := &Server{
		cfg:    cfg,
		cam:    cam,
		logger: log.WithComponent("api"),
	}
	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(accessLog(s.logger))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
		}

		r.Post("/sdk/initialize", s.handleInitialize)
		r.Post("/sdk/terminate", s.handleTerminate)

		r.Get("/devices", s.handleListDevices)
		r.Post("/devices/connect", s.handleConnect)
		r.Get("/session", s.handleStatus)
		r.Post("/session/open", s.handleOpenSession)
		r.Post("/session/close", s.handleCloseSession)

		r.Post("/capture", s.handleCapture)
		r.Post("/capture/shutter", s.handleShutter)
		r.Get("/capture/result", s.handleCaptureResult)
		r.Post("/events/pump", s.handlePump)

		r.Post("/liveview/start", s.handleLiveViewStart)
		r.Post("/liveview/stop", s.handleLiveViewStop)
		r.Get("/liveview/frame", s.handleLiveViewFrame)

		r.Get("/properties/{id}", s.handleGetProperty)
		r.Put("/properties/{id}", s.handleSetProperty)
		r.Get("/camera/battery", s.handleBattery)
		r.Get("/camera/shots", s.handleShots)

		r.Get("/recording", s.handleRecordingStatus)
		r.Post("/recording/start", s.handleRecordingStart)
		r.Post("/recording/stop", s.handleRecordingStop)
		r.Post("/recording/finalize", s.handleRecordingFinalize)
		r.Post("/recording/photo", s.handleRecordingPhoto)
	})
	return r
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server starting")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	return <-errc
}
