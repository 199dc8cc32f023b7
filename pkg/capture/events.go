package capture

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/video-system/go-tether/internal/metrics"
	"github.com/video-system/go-tether/pkg/edsdk"
)

var movieExtensions = map[string]bool{
	".mov": true,
	".mp4": true,
	".crm": true,
	".avi": true,
}

// PumpEvents dispatches pending SDK notifications if nobody else is using
// the camera. It reports whether the SDK was actually pumped; while a
// capture is waiting for its image the capture owns pumping.
func (m *Manager) PumpEvents() bool {
	if !m.initialized.Load() {
		metrics.PumpSkippedTotal.WithLabelValues("uninitialized").Inc()
		return false
	}
	if m.capturing.Load() {
		metrics.PumpSkippedTotal.WithLabelValues("capturing").Inc()
		return false
	}
	if !m.mu.TryLock() {
		metrics.PumpSkippedTotal.WithLabelValues("busy").Inc()
		return false
	}
	defer m.mu.Unlock()

	m.getEventLocked()
	return true
}

func (m *Manager) getEventLocked() {
	if !m.initialized.Load() {
		return
	}
	if err := m.sdk.GetEvent(); err != nil {
		m.logger.Debug().Err(err).Msg("get event")
	}
	m.finishDisconnectLocked()
}

// pumpOnce runs one pump under the blocking lock. The lock is held only
// for the pump itself so other callers interleave between iterations.
func (m *Manager) pumpOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getEventLocked()
}

// waitFor pumps events until done reports true or timeout elapses.
func (m *Manager) waitFor(timeout time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		m.pumpOnce()
		if done() {
			return true
		}
		if !m.initialized.Load() || !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(m.cfg.Capture.PumpInterval)
	}
}

// handleObjectEvent runs inside GetEvent. It must not take m.mu.
func (m *Manager) handleObjectEvent(event edsdk.ObjectEvent, item edsdk.Ref) edsdk.Error {
	defer m.sdk.Release(item)

	switch event {
	case edsdk.ObjectEventDirItemRequestTransfer:
		m.transferStill(item)
	case edsdk.ObjectEventDirItemCreated:
		if m.recording.Load() {
			m.transferMovie(item)
		}
	default:
		m.logger.Debug().Str("event", event.String()).Msg("object event ignored")
	}
	return edsdk.ErrOK
}

func (m *Manager) transferStill(item edsdk.Ref) {
	if !m.capture.isArmed() {
		m.logger.Info().Msg("transfer request with no capture waiting, cancelled")
		if err := m.sdk.DownloadCancel(item); err != nil {
			m.logger.Debug().Err(err).Msg("cancel transfer")
		}
		return
	}

	image, err := m.downloadToMemory(item)
	if err != nil {
		if cerr := m.sdk.DownloadCancel(item); cerr != nil {
			m.logger.Debug().Err(cerr).Msg("cancel transfer")
		}
		m.logger.Warn().Err(err).Msg("still download failed")
	} else {
		m.logger.Debug().Int("bytes", len(image)).Msg("still downloaded")
	}
	m.capture.finish(image, err)
}

func (m *Manager) downloadToMemory(item edsdk.Ref) ([]byte, error) {
	info, err := m.sdk.DirectoryItemInfo(item)
	if err != nil {
		return nil, fmt.Errorf("%w: get item info: %w", ErrDownload, err)
	}
	stream, err := m.sdk.CreateMemoryStream(info.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: create stream: %w", ErrDownload, err)
	}
	defer m.sdk.Release(stream)

	if err := m.sdk.Download(item, info.Size, stream); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if err := m.sdk.DownloadComplete(item); err != nil {
		m.logger.Debug().Err(err).Msg("download complete")
	}
	data, err := m.sdk.StreamBytes(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: read stream: %w", ErrDownload, err)
	}
	return data, nil
}

func isMovieFile(name string) bool {
	return movieExtensions[strings.ToLower(filepath.Ext(name))]
}

func (m *Manager) transferMovie(item edsdk.Ref) {
	info, err := m.sdk.DirectoryItemInfo(item)
	if err != nil {
		m.movie.finish("", fmt.Errorf("%w: get item info: %w", ErrDownload, err))
		return
	}
	if info.IsFolder || !isMovieFile(info.FileName) {
		m.logger.Debug().Str("file", info.FileName).Msg("created item is not a movie")
		return
	}
	if m.movie.done() {
		m.logger.Debug().Str("file", info.FileName).Msg("movie already collected")
		return
	}

	path, err := m.downloadToFile(item, info)
	if err != nil {
		if cerr := m.sdk.DownloadCancel(item); cerr != nil {
			m.logger.Debug().Err(cerr).Msg("cancel movie transfer")
		}
		m.logger.Warn().Err(err).Str("file", info.FileName).Msg("movie download failed")
		m.movie.finish("", err)
		return
	}

	if err := m.sdk.DeleteDirectoryItem(item); err != nil {
		m.logger.Warn().Err(err).Str("file", info.FileName).Msg("delete movie from card")
	}
	metrics.MovieBytesTotal.Add(float64(info.Size))
	m.logger.Info().
		Str("file", info.FileName).
		Uint64("bytes", info.Size).
		Str("path", path).
		Msg("movie downloaded")
	m.movie.finish(path, nil)
}

func (m *Manager) downloadToFile(item edsdk.Ref, info edsdk.DirectoryItemInfo) (string, error) {
	part, final, err := m.sink.Reserve(info.FileName)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}

	stream, err := m.sdk.CreateFileStream(part)
	if err != nil {
		m.sink.Discard(part)
		return "", fmt.Errorf("%w: create file stream: %w", ErrDownload, err)
	}
	err = m.sdk.Download(item, info.Size, stream)
	if err == nil {
		err = m.sdk.DownloadComplete(item)
	}
	// The stream owns the file handle until released.
	m.sdk.Release(stream)
	if err != nil {
		m.sink.Discard(part)
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}

	if err := m.sink.Commit(part, final); err != nil {
		m.sink.Discard(part)
		return "", fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return final, nil
}

// handleStateEvent runs inside GetEvent. The pumping caller holds m.mu in
// every path this package drives, so teardown is normally deferred to
// finishDisconnectLocked once GetEvent returns.
func (m *Manager) handleStateEvent(event edsdk.StateEvent, _ uint32) edsdk.Error {
	switch event {
	case edsdk.StateEventShutdown:
		metrics.DisconnectsTotal.Inc()
		m.failPending(ErrDisconnected)
		if m.mu.TryLock() {
			m.disconnectLocked()
			m.mu.Unlock()
			return edsdk.ErrOK
		}
		m.shutdownPending.Store(true)
		m.logger.Warn().Msg("camera shut down while busy, teardown deferred")
	case edsdk.StateEventWillSoonShutDown:
		m.logger.Info().Msg("camera will soon shut down")
	default:
		m.logger.Debug().Str("event", event.String()).Msg("state event ignored")
	}
	return edsdk.ErrOK
}

// failPending completes whatever is waiting with reason so waiters return
// promptly.
func (m *Manager) failPending(reason error) {
	m.capture.finish(nil, reason)
	if m.recording.Load() {
		m.movie.finish("", reason)
	}
}

func (m *Manager) finishDisconnectLocked() {
	if m.shutdownPending.CompareAndSwap(true, false) {
		m.disconnectLocked()
	}
}

func (m *Manager) disconnectLocked() {
	device := m.device
	hadCamera := m.camera != 0
	m.endSessionLocked(ErrDisconnected)
	m.logger.Warn().Str("device", device.Description).Msg("camera disconnected")
	if hadCamera && m.onDisconnect != nil {
		m.onDisconnect(device)
	}
}
