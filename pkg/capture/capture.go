package capture

import (
	"github.com/video-system/go-tether/pkg/edsdk"
)

// CaptureResult is the outcome of a capture-style call. Exactly one of
// Image (with Success) or Error is set unless Pending.
type CaptureResult struct {
	Success bool   `json:"success"`
	Pending bool   `json:"pending,omitempty"`
	Error   string `json:"error,omitempty"`
	Image   []byte `json:"image_bytes,omitempty"`
}

func failed(err error) CaptureResult {
	return CaptureResult{Error: err.Error()}
}

// Device is an attached camera and its position in the SDK's camera list.
type Device struct {
	Index int `json:"index"`
	edsdk.DeviceInfo
}

// Status is a snapshot of coordinator state.
type Status struct {
	Initialized bool    `json:"initialized"`
	Connected   bool    `json:"connected"`
	SessionOpen bool    `json:"session_open"`
	LiveView    bool    `json:"live_view"`
	Capturing   bool    `json:"capturing"`
	Recording   bool    `json:"recording"`
	Device      *Device `json:"device,omitempty"`
}
