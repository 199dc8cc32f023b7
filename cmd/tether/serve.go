package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/video-system/go-tether/internal/ffmpeg"
	"github.com/video-system/go-tether/internal/imaging"
	"github.com/video-system/go-tether/internal/log"
	"github.com/video-system/go-tether/internal/scratch"
	"github.com/video-system/go-tether/internal/shutdown"
	"github.com/video-system/go-tether/pkg/api"
	"github.com/video-system/go-tether/pkg/capture"
	"github.com/video-system/go-tether/pkg/events"
	"github.com/video-system/go-tether/pkg/platform"
)

// Abandoned downloads older than this are removed at startup.
const scratchMaxAge = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func imageOptions(cfg *capture.Config) []capture.Option {
	if cfg.Capture.MaxEdge <= 0 {
		return nil
	}
	return []capture.Option{
		capture.WithImageProcessor(imaging.Resizer(cfg.Capture.MaxEdge, cfg.Capture.JPEGQuality)),
	}
}

func serve(ctx context.Context, cfg *capture.Config) error {
	logger := log.WithComponent("tether")

	sink, err := scratch.New(cfg.Recording.ScratchDir)
	if err != nil {
		return err
	}
	if n, err := sink.Cleanup(scratchMaxAge); err != nil {
		logger.Warn().Err(err).Msg("scratch cleanup")
	} else if n > 0 {
		logger.Info().Int("removed", n).Msg("scratch cleanup")
	}

	var client *platform.Client
	if cfg.Platform.Enabled {
		client = platform.New(platform.Config{
			URL:           cfg.Platform.URL,
			APIKey:        cfg.Platform.APIKey,
			MachineID:     cfg.Platform.MachineID,
			MachinePort:   cfg.Platform.MachinePort,
			AlertInterval: cfg.Platform.AlertInterval,
		})
	}

	opts := imageOptions(cfg)
	if cfg.Recording.ConvertMP4 {
		ff, err := ffmpeg.New()
		if err != nil {
			logger.Warn().Err(err).Msg("MP4 conversion disabled")
		} else {
			opts = append(opts, capture.WithMovieProcessor(ff.MovieProcessor(false)))
		}
	}
	if client != nil {
		opts = append(opts, capture.WithDisconnectHandler(func(d capture.Device) {
			go sendAlert(client, d, logger)
		}))
	}

	mgr := capture.NewManager(cfg, capture.LibraryLoader(cfg.SDK.SearchDirs...), sink, opts...)
	if cfg.SDK.AutoConnect {
		if err := connect(mgr, cfg.SDK.DeviceIndex); err != nil {
			logger.Warn().Err(err).Msg("auto-connect failed, waiting for API calls")
		}
	}
	if client != nil {
		reportStatus(ctx, client, cfg, mgr, logger)
	}

	g, ctx := errgroup.WithContext(ctx)

	stopper := shutdown.New(shutdown.Config{Grace: cfg.Events.ShutdownGrace}, cameraBusy(mgr))
	g.Go(func() error { return stopper.Run(ctx) })

	server := api.NewServer(api.ServerConfig{
		Host:      cfg.API.Host,
		Port:      cfg.API.Port,
		RateLimit: cfg.API.RateLimit,
	}, mgr)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return capture.NewPumper(mgr, 0).Run(ctx) })

	if client != nil {
		g.Go(func() error { return heartbeat(ctx, client, mgr, cfg.Platform.HeartbeatInterval, logger) })
	}
	if cfg.Events.Enabled && cfg.Events.URL != "" {
		stream := events.New(events.Config{
			URL:         cfg.Events.URL,
			MachineID:   cfg.Platform.MachineID,
			MachinePort: cfg.Platform.MachinePort,
		})
		g.Go(func() error {
			return stream.Run(ctx, func(e events.Event) {
				handleEvent(e, mgr, client, cfg, stopper, logger)
			})
		})
	}
	if _, err := os.Stat(configPath); err == nil {
		g.Go(func() error {
			return capture.WatchConfig(ctx, configPath, func(c *capture.Config) {
				level := log.SetLevel(c.Log.Level)
				logger.Info().Str("level", level.String()).Msg("log level applied")
			})
		})
	}

	logger.Info().Str("version", version).Msg("tether started")
	err = g.Wait()

	if client != nil {
		offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 8*time.Second)
		if oerr := client.NotifyGoingOffline(offlineCtx); oerr != nil {
			logger.Warn().Err(oerr).Msg("notify going offline")
		}
		offlineCancel()
	}
	if terr := mgr.Terminate(); terr != nil {
		logger.Warn().Err(terr).Msg("terminate SDK")
	}
	logger.Info().Msg("tether stopped")

	if errors.Is(err, context.Canceled) || errors.Is(err, shutdown.ErrRequested) {
		return nil
	}
	return err
}

// cameraBusy reports work a remote shutdown should not cut short: a
// capture in flight or a movie not yet downloaded.
func cameraBusy(mgr *capture.Manager) func() bool {
	return func() bool {
		s := mgr.Status()
		return s.Capturing || s.Recording
	}
}

// connect initializes the SDK if needed and opens a session with the
// camera at index.
func connect(mgr *capture.Manager, index int) error {
	if err := mgr.Initialize(""); err != nil {
		return err
	}
	if _, err := mgr.Connect(index); err != nil {
		return err
	}
	return mgr.OpenSession()
}

func handleEvent(e events.Event, mgr *capture.Manager, client *platform.Client, cfg *capture.Config, stopper *shutdown.Coordinator, logger zerolog.Logger) {
	logger.Info().Str("event", e.Name).Msg("backend event")

	switch e.Name {
	case events.EventCloseApp, events.EventShutdown:
		stopper.Request(e.Name)
	case events.EventCameraReconnect:
		if err := mgr.CloseSession(); err != nil {
			logger.Warn().Err(err).Msg("close session before reconnect")
		}
		if err := connect(mgr, cfg.SDK.DeviceIndex); err != nil {
			logger.Warn().Err(err).Msg("camera reconnect failed")
			return
		}
		if client == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if d := mgr.Status().Device; d != nil {
			if err := client.SendDeviceReconnected(ctx, "camera", d.Description); err != nil {
				logger.Warn().Err(err).Msg("report reconnect")
			}
		}
	}
}

func sendAlert(client *platform.Client, d capture.Device, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := client.SendDeviceAlert(ctx, platform.Alert{DeviceType: "camera", DeviceName: d.Description})
	switch {
	case errors.Is(err, platform.ErrRateLimited):
	case err != nil:
		logger.Warn().Err(err).Msg("send device alert")
	}
}

func reportStatus(ctx context.Context, client *platform.Client, cfg *capture.Config, mgr *capture.Manager, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	status := mgr.Status()
	report := platform.StatusReport{
		IsStartup: true,
		Camera: platform.CameraStatus{
			Configured: cfg.SDK.AutoConnect,
			Found:      status.Device != nil,
		},
	}
	if status.Device != nil {
		report.Camera.DeviceName = status.Device.Description
	}
	if err := client.SendStatusReport(ctx, report); err != nil {
		logger.Warn().Err(err).Msg("send status report")
	}
}

// heartbeat never fails the group: a backend outage must not stop capture.
func heartbeat(ctx context.Context, client *platform.Client, mgr *capture.Manager, interval time.Duration, logger zerolog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		status := mgr.Status()
		hb := platform.Heartbeat{
			CameraConnected: status.SessionOpen,
			Recording:       status.Recording,
		}
		if status.Device != nil {
			hb.CameraName = status.Device.Description
		}
		if status.SessionOpen && !status.Capturing {
			if level, err := mgr.BatteryLevel(); err == nil && level <= 100 {
				battery := int(level)
				hb.BatteryLevel = &battery
			}
		}
		if err := client.SendHeartbeat(ctx, hb); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Msg("heartbeat failed")
		}
	}
}
