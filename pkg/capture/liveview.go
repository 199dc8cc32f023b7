package capture

import (
	"errors"

	"github.com/video-system/go-tether/internal/metrics"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// StartLiveView routes the live view stream to the host.
func (m *Manager) StartLiveView() error {
	return m.setLiveView(true)
}

// StopLiveView turns live view output off.
func (m *Manager) StopLiveView() error {
	return m.setLiveView(false)
}

func (m *Manager) setLiveView(on bool) error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return err
	}
	out, op := edsdk.EvfOutputOff, "stop live view"
	if on {
		out, op = edsdk.EvfOutputPC, "start live view"
	}
	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropEvfOutputDevice, out); err != nil {
		return commandErr(op, err)
	}
	m.liveView = on
	return nil
}

// LiveViewFrame fetches one live view JPEG. It never waits for the camera:
// while a capture or another device call is running it returns
// ErrLockUnavailable and the caller simply skips this frame.
func (m *Manager) LiveViewFrame() ([]byte, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if m.capturing.Load() || !m.mu.TryLock() {
		metrics.LiveViewFramesTotal.WithLabelValues("busy").Inc()
		return nil, ErrLockUnavailable
	}
	defer m.mu.Unlock()

	frame, err := m.liveViewFrameLocked()
	switch {
	case err == nil:
		metrics.LiveViewFramesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrFrameNotReady):
		metrics.LiveViewFramesTotal.WithLabelValues("busy").Inc()
	default:
		metrics.LiveViewFramesTotal.WithLabelValues("error").Inc()
	}
	return frame, err
}

func (m *Manager) liveViewFrameLocked() ([]byte, error) {
	cam, err := m.sessionCameraLocked()
	if err != nil {
		return nil, err
	}

	stream, err := m.sdk.CreateMemoryStream(0)
	if err != nil {
		return nil, commandErr("create live view stream", err)
	}
	defer m.sdk.Release(stream)

	evf, err := m.sdk.CreateEvfImageRef(stream)
	if err != nil {
		return nil, commandErr("create live view image", err)
	}
	defer m.sdk.Release(evf)

	if err := m.sdk.DownloadEvfImage(cam, evf); err != nil {
		if errors.Is(err, edsdk.ErrObjectNotReady) {
			return nil, ErrFrameNotReady
		}
		return nil, commandErr("download live view image", err)
	}

	frame, err := m.sdk.StreamBytes(stream)
	if err != nil {
		return nil, commandErr("read live view image", err)
	}
	if len(frame) == 0 {
		return nil, ErrFrameNotReady
	}
	return frame, nil
}
