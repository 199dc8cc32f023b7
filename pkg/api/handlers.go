package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/video-system/go-tether/pkg/capture"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// response is the envelope every JSON endpoint returns.
type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), response{Error: err.Error()})
}

// writeResult reports a capture outcome as {success, error?, image_bytes?}.
// Capture failures are results, not transport errors, so the status is
// always 200.
func writeResult(w http.ResponseWriter, res capture.CaptureResult) {
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	var sdkErr edsdk.Error
	switch {
	case errors.Is(err, capture.ErrNoDeviceFound), errors.Is(err, capture.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, capture.ErrSDKNotInitialized),
		errors.Is(err, capture.ErrNoDeviceConnected),
		errors.Is(err, capture.ErrSessionNotOpen),
		errors.Is(err, capture.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, capture.ErrCaptureInProgress),
		errors.Is(err, capture.ErrLockUnavailable),
		errors.Is(err, capture.ErrAlreadyLoading):
		return http.StatusServiceUnavailable
	case errors.Is(err, capture.ErrCaptureTimeout), errors.Is(err, capture.ErrMovieTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &sdkErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"service":     "go-tether",
		"initialized": s.cam.Status().Initialized,
	})
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
			return
		}
	}
	if err := s.cam.Initialize(req.Path); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.Terminate(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.cam.ListDevices()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, devices)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	index := 0
	if v := r.URL.Query().Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, response{Error: "invalid index"})
			return
		}
		index = n
	}
	device, err := s.cam.Connect(index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, device)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.cam.Status())
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.OpenSession(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, s.cam.Status())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.CloseSession(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// handleCapture takes a still. Clients asking for image/jpeg get the raw
// image instead of the JSON envelope.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	res := s.cam.TakePicture()
	if res.Success && r.Header.Get("Accept") == "image/jpeg" {
		writeJPEG(w, res.Image)
		return
	}
	writeResult(w, res)
}

func (s *Server) handleShutter(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.cam.SendShutter())
}

func (s *Server) handleCaptureResult(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.cam.PollCaptureResult())
}

func (s *Server) handlePump(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]bool{"pumped": s.cam.PumpEvents()})
}

func (s *Server) handleLiveViewStart(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.StartLiveView(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleLiveViewStop(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.StopLiveView(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// handleLiveViewFrame answers 204 when the frame was skipped so pollers
// simply try again.
func (s *Server) handleLiveViewFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.cam.LiveViewFrame()
	switch {
	case errors.Is(err, capture.ErrLockUnavailable), errors.Is(err, capture.ErrFrameNotReady):
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJPEG(w, frame)
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// propertyID accepts decimal or 0x-prefixed hex ids.
func propertyID(r *http.Request) (edsdk.PropertyID, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid property id %q", raw)
	}
	return edsdk.PropertyID(n), nil
}

type propertyValue struct {
	ID    string `json:"id"`
	Value uint32 `json:"value"`
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := propertyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	v, err := s.cam.GetProperty(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, propertyValue{ID: fmt.Sprintf("0x%08X", uint32(id)), Value: v})
}

func (s *Server) handleSetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := propertyID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Error: err.Error()})
		return
	}
	var req struct {
		Value *uint32 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, response{Error: "body must be {\"value\": <uint32>}"})
		return
	}
	if err := s.cam.SetProperty(id, *req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, propertyValue{ID: fmt.Sprintf("0x%08X", uint32(id)), Value: *req.Value})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	level, err := s.cam.BatteryLevel()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"level": level, "ac_power": level == 0xFFFFFFFF})
}

func (s *Server) handleShots(w http.ResponseWriter, r *http.Request) {
	shots, err := s.cam.AvailableShots()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]uint32{"available": shots})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]bool{"recording": s.cam.IsRecording()})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.cam.StartRecording(); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, map[string]bool{"recording": true})
}

type movieResult struct {
	Path string `json:"path,omitempty"`
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "wait":
		path, err := s.cam.StopRecordingWait(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, movieResult{Path: path})
	case "fast":
		if err := s.cam.StopRecordingFast(); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, nil)
	default:
		writeJSON(w, http.StatusBadRequest, response{Error: fmt.Sprintf("unknown stop mode %q", mode)})
	}
}

func (s *Server) handleRecordingFinalize(w http.ResponseWriter, r *http.Request) {
	path, err := s.cam.FinalizeMovieDownload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, movieResult{Path: path})
}

func (s *Server) handleRecordingPhoto(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.cam.TakePhotoDuringRecording())
}
