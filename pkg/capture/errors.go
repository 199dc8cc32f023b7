package capture

import (
	"errors"
	"fmt"
)

var (
	ErrSDKNotInitialized = errors.New("SDK not initialized")
	ErrAlreadyLoading    = errors.New("SDK is already being loaded")
	ErrLoad              = errors.New("failed to load camera library")
	ErrSDKInit           = errors.New("SDK initialization failed")
	ErrNoDeviceFound     = errors.New("no camera found")
	ErrIndexOutOfRange   = errors.New("camera index out of range")
	ErrNoDeviceConnected = errors.New("no camera connected")
	ErrSessionNotOpen    = errors.New("session not open")
	ErrPropertyAccess    = errors.New("property access failed")
	ErrDownload          = errors.New("download failed")
	ErrCaptureTimeout    = errors.New("capture timeout")
	ErrCaptureInProgress = errors.New("capture already in progress")
	ErrLockUnavailable   = errors.New("camera busy")
	ErrFrameNotReady     = errors.New("live view frame not ready")
	ErrNotRecording      = errors.New("not recording")
	ErrMovieTimeout      = errors.New("movie download timeout")
	ErrNoData            = errors.New("capture complete but no data")
	ErrDisconnected      = errors.New("camera disconnected")
)

// CommandError is a camera command the SDK rejected. Err holds the native
// edsdk.Error.
type CommandError struct {
	Op  string
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func commandErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Op: op, Err: err}
}
