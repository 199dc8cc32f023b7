// Package metrics provides Prometheus metrics for the tether coordinator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CapturesTotal counts still captures by mode and outcome.
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_captures_total",
		Help: "Total number of still capture attempts, by mode (take, shutter, during_recording, fallback) and result.",
	}, []string{"mode", "result"})

	// CaptureDuration measures command-to-image latency of blocking captures.
	CaptureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tether_capture_duration_seconds",
		Help:    "Time from capture command to image download, by mode.",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
	}, []string{"mode"})

	// RecordingsTotal counts recording lifecycle transitions.
	RecordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_recordings_total",
		Help: "Total number of recording operations, by operation and result.",
	}, []string{"op", "result"})

	// MovieBytesTotal counts bytes of movie files downloaded from the camera.
	MovieBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_movie_download_bytes_total",
		Help: "Total bytes of movie files downloaded from the camera.",
	})

	// PumpSkippedTotal counts opportunistic pumps that did not run.
	PumpSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_event_pump_skipped_total",
		Help: "Event pumps skipped, by reason (capturing, busy, uninitialized).",
	}, []string{"reason"})

	// LiveViewFramesTotal counts live view fetches.
	LiveViewFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_live_view_frames_total",
		Help: "Live view frame fetches, by result (ok, busy, error).",
	}, []string{"result"})

	// CameraConnected is 1 while a session is open.
	CameraConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_camera_connected",
		Help: "Whether a camera session is currently open.",
	})

	// DisconnectsTotal counts asynchronous camera shutdown notifications.
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_camera_disconnects_total",
		Help: "Camera shutdown notifications received from the SDK.",
	})
)

// ObserveCapture records one capture outcome and, when it succeeded, its latency.
func ObserveCapture(mode string, ok bool, elapsed time.Duration) {
	result := "error"
	if ok {
		result = "ok"
		CaptureDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}
	CapturesTotal.WithLabelValues(mode, result).Inc()
}

// ObserveRecording records a recording operation.
func ObserveRecording(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RecordingsTotal.WithLabelValues(op, result).Inc()
}

// SetConnected updates the connection gauge.
func SetConnected(open bool) {
	if open {
		CameraConnected.Set(1)
		return
	}
	CameraConnected.Set(0)
}
