package capture

import (
	"time"

	"github.com/video-system/go-tether/internal/metrics"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// TakePicture shoots a still and blocks until its image is downloaded, the
// capture fails, or the capture timeout elapses. Only one capture runs at
// a time; a concurrent call is rejected without touching the camera.
func (m *Manager) TakePicture() CaptureResult {
	if !m.initialized.Load() {
		return failed(ErrSDKNotInitialized)
	}
	if !m.capturing.CompareAndSwap(false, true) {
		return failed(ErrCaptureInProgress)
	}
	defer m.capturing.Store(false)

	return m.shoot("take")
}

// SendShutter sends the capture command and returns without waiting. The
// image is collected with PollCaptureResult while events are pumped.
func (m *Manager) SendShutter() CaptureResult {
	if !m.initialized.Load() {
		return failed(ErrSDKNotInitialized)
	}
	if !m.capturing.CompareAndSwap(false, true) {
		return failed(ErrCaptureInProgress)
	}
	defer m.capturing.Store(false)

	if err := m.sendCapture(edsdk.CommandTakePicture, 0, edsdk.SaveToHost, false); err != nil {
		metrics.ObserveCapture("shutter", false, 0)
		m.logger.Warn().Err(err).Msg("shutter failed")
		return failed(err)
	}
	m.logger.Debug().Msg("shutter sent")
	return CaptureResult{Success: true, Pending: true}
}

// PollCaptureResult returns the result of the last SendShutter. A finished
// result is returned once; later polls report no capture in progress.
func (m *Manager) PollCaptureResult() CaptureResult {
	if m.capturing.Load() {
		return CaptureResult{Pending: true}
	}

	image, complete, armed, err := m.capture.take()
	switch {
	case !armed:
		return CaptureResult{Error: "no capture in progress"}
	case !complete:
		return CaptureResult{Pending: true}
	case err != nil:
		metrics.ObserveCapture("shutter", false, 0)
		return failed(err)
	}
	metrics.ObserveCapture("shutter", true, 0)
	return CaptureResult{Success: true, Image: m.postProcess(image)}
}

// shoot runs a full still capture. The caller holds the capture guard.
func (m *Manager) shoot(mode string) CaptureResult {
	start := time.Now()
	if err := m.sendCapture(edsdk.CommandTakePicture, 0, edsdk.SaveToHost, false); err != nil {
		metrics.ObserveCapture(mode, false, 0)
		m.logger.Warn().Err(err).Str("mode", mode).Msg("capture command failed")
		return failed(err)
	}

	res := m.awaitCapture(m.cfg.Capture.Timeout)
	metrics.ObserveCapture(mode, res.Success, time.Since(start))
	if res.Success {
		m.logger.Info().
			Str("mode", mode).
			Int("bytes", len(res.Image)).
			Dur("elapsed", time.Since(start)).
			Msg("capture complete")
	} else {
		m.logger.Warn().Str("mode", mode).Str("error", res.Error).Msg("capture failed")
	}
	return res
}

// sendCapture prepares the camera and sends a capture command under the
// device lock. resetMovie also clears the movie record, for captures made
// while recording.
func (m *Manager) sendCapture(cmd edsdk.CameraCommand, param int32, dest uint32, resetMovie bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return err
	}
	if err := m.ensureObjectHandlerLocked(cam); err != nil {
		return err
	}
	m.saveToLocked(cam, dest)

	m.capture.arm()
	if resetMovie {
		m.movie.reset()
	}

	op := "take picture"
	if cmd == edsdk.CommandPressShutterButton {
		op = "press shutter"
	}
	if err := m.sdk.SendCommand(cam, cmd, param); err != nil {
		m.capture.disarm()
		return commandErr(op, err)
	}
	return nil
}

// awaitCapture pumps until the armed capture completes. It always returns
// a result; a capture that never completes is disarmed so a late image is
// not attributed to the next capture.
func (m *Manager) awaitCapture(timeout time.Duration) CaptureResult {
	m.waitFor(timeout, m.capture.done)

	image, complete, _, err := m.capture.take()
	if !complete {
		m.capture.disarm()
		return failed(ErrCaptureTimeout)
	}
	if err != nil {
		return failed(err)
	}
	return CaptureResult{Success: true, Image: m.postProcess(image)}
}

// postProcess never fails a capture: on error the original image is kept.
func (m *Manager) postProcess(image []byte) []byte {
	if m.process == nil {
		return image
	}
	out, err := m.process(image)
	if err != nil {
		m.logger.Warn().Err(err).Msg("image post-processing failed, returning original")
		return image
	}
	return out
}
