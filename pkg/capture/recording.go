package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/video-system/go-tether/internal/metrics"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// IsRecording reports whether a recording is running or its movie file is
// still expected.
func (m *Manager) IsRecording() bool {
	return m.recording.Load()
}

// StartRecording switches the camera to movie mode and starts recording to
// the memory card. It is a no-op while already recording.
func (m *Manager) StartRecording() (err error) {
	if err := m.ready(); err != nil {
		return err
	}
	if m.recording.Load() {
		return nil
	}
	defer func() { metrics.ObserveRecording("start", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recording.Load() {
		return nil
	}
	cam, err := m.sessionCameraLocked()
	if err != nil {
		return err
	}
	if err := m.ensureObjectHandlerLocked(cam); err != nil {
		return err
	}
	m.movie.reset()

	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropSaveTo, edsdk.SaveToCamera); err != nil {
		return commandErr("save to card", err)
	}
	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropFixedMovie, edsdk.FixedMovieOn); err != nil {
		m.restoreStillLocked(cam)
		return commandErr("enter movie mode", err)
	}
	time.Sleep(m.cfg.Recording.SettleDelay)

	// Each of these has been seen to stall a capture mid-recording.
	m.setBestEffortLocked(cam, edsdk.PropContinuousAFMode, edsdk.ContinuousAFDisable, "disable continuous AF")
	m.setBestEffortLocked(cam, edsdk.PropAFMode, edsdk.AFModeOneShot, "one-shot AF")
	m.setBestEffortLocked(cam, edsdk.PropMirrorLockUpState, edsdk.MirrorLockUpDisable, "disable mirror lock-up")
	m.setBestEffortLocked(cam, edsdk.PropImageQuality, edsdk.ImageQualityLargeFine, "image quality")

	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropEvfOutputDevice, edsdk.EvfOutputPC); err != nil {
		m.restoreStillLocked(cam)
		return commandErr("live view to host", err)
	}
	m.liveView = true

	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropRecord, edsdk.RecordStart); err != nil {
		m.restoreStillLocked(cam)
		return commandErr("begin recording", err)
	}

	m.recording.Store(true)
	m.logger.Info().Msg("recording started")
	return nil
}

// StopRecordingWait stops recording and blocks until the movie file has
// been downloaded, then returns the camera to still mode.
func (m *Manager) StopRecordingWait(ctx context.Context) (path string, err error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	if !m.recording.Load() {
		return "", ErrNotRecording
	}
	defer func() { metrics.ObserveRecording("stop_wait", err) }()

	m.mu.Lock()
	cam, err := m.sessionCameraLocked()
	if err == nil {
		err = commandErr("end recording", m.sdk.SetPropertyUint32(cam, edsdk.PropRecord, edsdk.RecordStop))
	}
	m.mu.Unlock()

	if err == nil {
		m.waitFor(m.cfg.Recording.MovieTimeout, m.movie.done)
	}
	m.recording.Store(false)

	m.mu.Lock()
	if cam, cerr := m.sessionCameraLocked(); cerr == nil {
		m.restoreStillLocked(cam)
	}
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	return m.collectMovie(ctx)
}

// StopRecordingFast stops recording and returns the camera to still mode
// without waiting for the movie file. Recording stays flagged so the file
// is still recognised when it arrives; FinalizeMovieDownload collects it.
func (m *Manager) StopRecordingFast() (err error) {
	if err := m.ready(); err != nil {
		return err
	}
	if !m.recording.Load() {
		return ErrNotRecording
	}
	defer func() { metrics.ObserveRecording("stop_fast", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return err
	}
	err = commandErr("end recording", m.sdk.SetPropertyUint32(cam, edsdk.PropRecord, edsdk.RecordStop))
	m.restoreStillLocked(cam)
	if err == nil {
		m.logger.Info().Msg("recording stopped, movie pending")
	}
	return err
}

// FinalizeMovieDownload waits for the movie of a fast-stopped recording.
// On every exit the camera saves to host again and recording is cleared.
func (m *Manager) FinalizeMovieDownload(ctx context.Context) (path string, err error) {
	if err := m.ready(); err != nil {
		return "", err
	}
	if !m.recording.Load() && !m.movie.done() {
		return "", ErrNotRecording
	}
	defer func() { metrics.ObserveRecording("finalize", err) }()

	defer func() {
		m.recording.Store(false)
		m.mu.Lock()
		if cam, cerr := m.sessionCameraLocked(); cerr == nil {
			m.liveViewOffLocked(cam)
			m.saveToLocked(cam, edsdk.SaveToHost)
		}
		m.mu.Unlock()
	}()

	if !m.movie.done() {
		m.waitFor(m.cfg.Recording.MovieTimeout, m.movie.done)
	}
	return m.collectMovie(ctx)
}

func (m *Manager) collectMovie(ctx context.Context) (string, error) {
	path, complete, err := m.movie.take()
	if !complete {
		return "", ErrMovieTimeout
	}
	if err != nil {
		return "", err
	}
	if m.movies == nil {
		return path, nil
	}
	out, perr := m.movies(ctx, path)
	if perr != nil {
		m.logger.Warn().Err(perr).Str("path", path).Msg("movie post-processing failed, returning original")
		return path, nil
	}
	return out, nil
}

// TakePhotoDuringRecording shoots a still while a movie is recording and
// then ends the recording. If the camera will not shoot in movie mode the
// recording is stopped and an ordinary still is taken instead; the result
// looks the same either way. Call FinalizeMovieDownload afterwards.
func (m *Manager) TakePhotoDuringRecording() CaptureResult {
	if !m.initialized.Load() {
		return failed(ErrSDKNotInitialized)
	}
	if !m.recording.Load() {
		return m.TakePicture()
	}
	if !m.capturing.CompareAndSwap(false, true) {
		return failed(ErrCaptureInProgress)
	}
	defer m.capturing.Store(false)

	start := time.Now()
	err := m.sendCapture(edsdk.CommandPressShutterButton, edsdk.ShutterCompletelyNonAF, edsdk.SaveToBoth, true)
	if err != nil {
		m.logger.Warn().Err(err).Msg("shutter press in movie mode failed, stopping recording first")
		m.releaseShutter()
		return m.stopThenShoot()
	}

	m.waitFor(m.cfg.Capture.DuringRecordingTimeout, m.capture.done)
	m.releaseShutter()
	m.endRecordingKeepDestination()

	image, complete, _, err := m.capture.take()
	if !complete {
		m.capture.disarm()
		err = ErrCaptureTimeout
	}
	if err == nil && len(image) > 0 {
		metrics.ObserveCapture("during_recording", true, time.Since(start))
		m.logger.Info().Int("bytes", len(image)).Msg("photo during recording complete")
		return CaptureResult{Success: true, Image: m.postProcess(image)}
	}

	metrics.ObserveCapture("during_recording", false, 0)
	m.logger.Warn().Err(err).Msg("no photo during recording, shooting a still instead")
	m.mu.Lock()
	if cam, cerr := m.sessionCameraLocked(); cerr == nil {
		m.liveViewOffLocked(cam)
	}
	m.mu.Unlock()
	return m.shoot("fallback")
}

// stopThenShoot is the fallback when the shutter press is rejected in
// movie mode. The caller holds the capture guard.
func (m *Manager) stopThenShoot() CaptureResult {
	if err := m.StopRecordingFast(); err != nil {
		m.logger.Warn().Err(err).Msg("stop recording before fallback capture")
	}
	return m.shoot("fallback")
}

func (m *Manager) releaseShutter() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return
	}
	if err := m.sdk.SendCommand(cam, edsdk.CommandPressShutterButton, edsdk.ShutterOff); err != nil {
		m.logger.Warn().Err(err).Msg("release shutter")
	}
}

// endRecordingKeepDestination ends recording and leaves movie mode but
// keeps saving to the card: the movie's item-created event has not
// arrived yet.
func (m *Manager) endRecordingKeepDestination() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, err := m.sessionCameraLocked()
	if err != nil {
		return
	}
	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropRecord, edsdk.RecordStop); err != nil {
		m.logger.Warn().Err(err).Msg("end recording")
	}
	m.setBestEffortLocked(cam, edsdk.PropFixedMovie, edsdk.FixedMovieStill, "leave movie mode")
}

// restoreStillLocked returns the camera to still shooting to host with live
// view off. Every step is attempted.
func (m *Manager) restoreStillLocked(cam edsdk.Ref) {
	m.setBestEffortLocked(cam, edsdk.PropFixedMovie, edsdk.FixedMovieStill, "leave movie mode")
	m.setBestEffortLocked(cam, edsdk.PropEvfOutputDevice, edsdk.EvfOutputOff, "live view off")
	m.liveView = false
	m.saveToLocked(cam, edsdk.SaveToHost)
}

// liveViewOffLocked stops live view output left on by movie mode.
func (m *Manager) liveViewOffLocked(cam edsdk.Ref) {
	if !m.liveView {
		return
	}
	m.setBestEffortLocked(cam, edsdk.PropEvfOutputDevice, edsdk.EvfOutputOff, "live view off")
	m.liveView = false
}

func (m *Manager) setBestEffortLocked(cam edsdk.Ref, id edsdk.PropertyID, value uint32, what string) {
	if err := m.sdk.SetPropertyUint32(cam, id, value); err != nil {
		m.logger.Warn().
			Err(err).
			Str("property", fmt.Sprintf("0x%08X", uint32(id))).
			Msgf("%s failed", what)
	}
}
