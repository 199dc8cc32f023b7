package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/video-system/go-tether/internal/log"
	"github.com/video-system/go-tether/internal/metrics"
	"github.com/video-system/go-tether/pkg/edsdk"
)

// ImageProcessor transforms a downloaded still before it is returned.
type ImageProcessor func(image []byte) ([]byte, error)

// MovieProcessor transforms a downloaded movie file and returns the path
// of the result.
type MovieProcessor func(ctx context.Context, path string) (string, error)

// MovieSink provides local files for movie downloads.
type MovieSink interface {
	// Reserve returns a temporary path for the SDK to write and the final
	// path it is committed to.
	Reserve(name string) (partPath, finalPath string, err error)
	Commit(partPath, finalPath string) error
	Discard(partPath string)
}

// Manager coordinates one tethered camera: SDK lifecycle, the connected
// device and its session, still captures, recording and event pumping.
//
// mu serialises every SDK call that touches the camera. Opportunistic
// callers (background pump, live view) only TryLock it. capturing is the
// single-flight guard for capture flows and sits above mu; the capture and
// movie records have their own locks because the SDK fills them from
// event handlers running inside GetEvent while mu is held.
type Manager struct {
	cfg     *Config
	load    Loader
	sink    MovieSink
	process ImageProcessor
	movies  MovieProcessor
	logger  zerolog.Logger

	onDisconnect func(Device)

	sdk         SDK
	initialized atomic.Bool
	loading     atomic.Bool

	mu               sync.Mutex
	camera           edsdk.Ref
	device           Device
	sessionOpen      bool
	objectHandlerSet bool
	stateHandlerSet  bool
	liveView         bool
	shutdownPending  atomic.Bool

	capturing atomic.Bool
	recording atomic.Bool

	capture captureRecord
	movie   movieRecord
}

// Option configures a Manager
type Option func(*Manager)

// WithImageProcessor post-processes every successfully captured still
func WithImageProcessor(p ImageProcessor) Option {
	return func(m *Manager) { m.process = p }
}

// WithMovieProcessor post-processes every downloaded movie
func WithMovieProcessor(p MovieProcessor) Option {
	return func(m *Manager) { m.movies = p }
}

// WithDisconnectHandler is called after the camera reports shutdown and the
// session has been torn down. It must not block.
func WithDisconnectHandler(fn func(Device)) Option {
	return func(m *Manager) { m.onDisconnect = fn }
}

// WithLogger replaces the component logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a coordinator. Nothing is loaded until Initialize.
func NewManager(cfg *Config, load Loader, sink MovieSink, opts ...Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{
		cfg:    cfg,
		load:   load,
		sink:   sink,
		logger: log.WithComponent("capture"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize loads the library named by locator (or found by the loader's
// default search) and initializes the SDK. It is a no-op once initialized.
func (m *Manager) Initialize(locator string) error {
	if m.initialized.Load() {
		return nil
	}
	if !m.loading.CompareAndSwap(false, true) {
		return ErrAlreadyLoading
	}
	defer m.loading.Store(false)

	if locator == "" {
		locator = m.cfg.SDK.LibraryPath
	}
	if m.sdk == nil {
		sdk, err := m.load(locator)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLoad, err)
		}
		m.sdk = sdk
	}
	if err := m.sdk.Initialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrSDKInit, err)
	}
	m.initialized.Store(true)
	m.logger.Info().Msg("SDK initialized")
	return nil
}

// Terminate closes any open session and shuts the SDK down.
func (m *Manager) Terminate() error {
	if !m.initialized.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.endSessionLocked(ErrSDKNotInitialized)
	err := m.sdk.Terminate()
	m.initialized.Store(false)
	if err != nil {
		return commandErr("terminate SDK", err)
	}
	m.logger.Info().Msg("SDK terminated")
	return nil
}

// Initialized reports whether the SDK is ready
func (m *Manager) Initialized() bool {
	return m.initialized.Load()
}

func (m *Manager) ready() error {
	if !m.initialized.Load() {
		return ErrSDKNotInitialized
	}
	return nil
}

// ListDevices enumerates attached cameras. No cameras is not an error.
func (m *Manager) ListDevices() ([]Device, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.sdk.CameraList()
	if err != nil {
		return nil, commandErr("get camera list", err)
	}
	defer m.sdk.Release(list)

	count, err := m.sdk.ChildCount(list)
	if err != nil {
		return nil, commandErr("count cameras", err)
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		cam, err := m.sdk.ChildAtIndex(list, i)
		if err != nil {
			m.logger.Warn().Err(err).Int("index", i).Msg("skip camera")
			continue
		}
		info, err := m.sdk.DeviceInfo(cam)
		m.sdk.Release(cam)
		if err != nil {
			m.logger.Warn().Err(err).Int("index", i).Msg("skip camera without device info")
			continue
		}
		devices = append(devices, Device{Index: i, DeviceInfo: info})
	}
	return devices, nil
}

// Connect drops any current camera and retains the camera at index.
func (m *Manager) Connect(index int) (Device, error) {
	if err := m.ready(); err != nil {
		return Device{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.finishDisconnectLocked()
	if m.camera != 0 {
		m.endSessionLocked(ErrDisconnected)
	}

	list, err := m.sdk.CameraList()
	if err != nil {
		return Device{}, commandErr("get camera list", err)
	}
	defer m.sdk.Release(list)

	count, err := m.sdk.ChildCount(list)
	if err != nil {
		return Device{}, commandErr("count cameras", err)
	}
	if count == 0 {
		return Device{}, ErrNoDeviceFound
	}
	if index < 0 || index >= count {
		return Device{}, fmt.Errorf("%w: index %d, %d camera(s) attached", ErrIndexOutOfRange, index, count)
	}

	cam, err := m.sdk.ChildAtIndex(list, index)
	if err != nil {
		return Device{}, commandErr("get camera", err)
	}
	info, err := m.sdk.DeviceInfo(cam)
	if err != nil {
		m.sdk.Release(cam)
		return Device{}, commandErr("get device info", err)
	}

	m.camera = cam
	m.device = Device{Index: index, DeviceInfo: info}
	m.logger.Info().
		Str("device", info.Description).
		Str("port", info.PortName).
		Int("index", index).
		Msg("camera connected")
	return m.device, nil
}

// OpenSession opens a session with the connected camera and points image
// storage at the host.
func (m *Manager) OpenSession() error {
	if err := m.ready(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.finishDisconnectLocked()
	if m.camera == 0 {
		return ErrNoDeviceConnected
	}
	if m.sessionOpen {
		return nil
	}

	if err := m.sdk.OpenSession(m.camera); err != nil {
		return commandErr("open session", err)
	}
	m.sessionOpen = true

	m.saveToLocked(m.camera, edsdk.SaveToHost)

	if !m.stateHandlerSet {
		if err := m.sdk.SetStateEventHandler(m.camera, m.handleStateEvent); err != nil {
			m.logger.Warn().Err(err).Msg("register state event handler")
		} else {
			m.stateHandlerSet = true
		}
	}

	metrics.SetConnected(true)
	m.logger.Info().Str("device", m.device.Description).Msg("session opened")
	return nil
}

// CloseSession closes the session and releases the camera. It is safe to
// call when nothing is open. A capture or movie still pending fails with
// ErrDisconnected and the recording flag is cleared.
func (m *Manager) CloseSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownPending.Store(false)
	m.endSessionLocked(ErrDisconnected)
	return nil
}

// IsConnected reports whether a camera is connected with an open session.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishDisconnectLocked()
	return m.camera != 0 && m.sessionOpen
}

// Status returns a snapshot of coordinator state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishDisconnectLocked()

	s := Status{
		Initialized: m.initialized.Load(),
		Connected:   m.camera != 0,
		SessionOpen: m.sessionOpen,
		LiveView:    m.liveView,
		Capturing:   m.capturing.Load(),
		Recording:   m.recording.Load(),
	}
	if m.camera != 0 {
		d := m.device
		s.Device = &d
	}
	return s
}

// sessionCameraLocked returns the camera if a session is open.
func (m *Manager) sessionCameraLocked() (edsdk.Ref, error) {
	m.finishDisconnectLocked()
	if m.camera == 0 {
		return 0, ErrNoDeviceConnected
	}
	if !m.sessionOpen {
		return 0, ErrSessionNotOpen
	}
	return m.camera, nil
}

// endSessionLocked fails pending records with reason, forgets any
// recording and tears the session down.
func (m *Manager) endSessionLocked(reason error) {
	m.failPending(reason)
	m.recording.Store(false)
	m.teardownLocked()
}

// teardownLocked closes the session (best effort) and forgets the camera.
func (m *Manager) teardownLocked() {
	if m.camera == 0 && !m.sessionOpen {
		return
	}
	if m.sessionOpen && m.camera != 0 {
		if err := m.sdk.CloseSession(m.camera); err != nil {
			m.logger.Debug().Err(err).Msg("close session")
		}
	}
	if m.camera != 0 {
		m.sdk.Release(m.camera)
	}
	m.camera = 0
	m.sessionOpen = false
	m.objectHandlerSet = false
	m.stateHandlerSet = false
	m.liveView = false
	metrics.SetConnected(false)
	m.logger.Info().Str("device", m.device.Description).Msg("session closed")
}

func (m *Manager) ensureObjectHandlerLocked(cam edsdk.Ref) error {
	if m.objectHandlerSet {
		return nil
	}
	if err := m.sdk.SetObjectEventHandler(cam, m.handleObjectEvent); err != nil {
		return commandErr("register object event handler", err)
	}
	m.objectHandlerSet = true
	return nil
}

// saveToLocked points image storage at dest. Host destinations also
// advertise unlimited capacity so the camera never refuses to shoot.
// Failures are logged: every capture path sets the destination again.
func (m *Manager) saveToLocked(cam edsdk.Ref, dest uint32) {
	if err := m.sdk.SetPropertyUint32(cam, edsdk.PropSaveTo, dest); err != nil {
		m.logger.Warn().Err(err).Uint32("save_to", dest).Msg("set save destination")
		return
	}
	if dest == edsdk.SaveToCamera {
		return
	}
	if err := m.sdk.SetCapacity(cam, edsdk.UnlimitedCapacity); err != nil {
		m.logger.Warn().Err(err).Msg("set host capacity")
	}
}
