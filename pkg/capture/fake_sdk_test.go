package capture

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/video-system/go-tether/pkg/edsdk"
)

var propNames = map[edsdk.PropertyID]string{
	edsdk.PropSaveTo:            "SaveTo",
	edsdk.PropFixedMovie:        "FixedMovie",
	edsdk.PropContinuousAFMode:  "ContinuousAF",
	edsdk.PropAFMode:            "AFMode",
	edsdk.PropMirrorLockUpState: "MirrorLockUp",
	edsdk.PropImageQuality:      "ImageQuality",
	edsdk.PropEvfOutputDevice:   "EvfOutput",
	edsdk.PropRecord:            "Record",
	edsdk.PropBatteryLevel:      "BatteryLevel",
	edsdk.PropAvailableShots:    "AvailableShots",
	edsdk.PropISOSpeed:          "ISO",
}

func propName(id edsdk.PropertyID) string {
	if n, ok := propNames[id]; ok {
		return n
	}
	return fmt.Sprintf("0x%X", uint32(id))
}

func commandName(cmd edsdk.CameraCommand) string {
	switch cmd {
	case edsdk.CommandTakePicture:
		return "TakePicture"
	case edsdk.CommandPressShutterButton:
		return "PressShutter"
	}
	return fmt.Sprintf("Command(%d)", cmd)
}

type fakeItem struct {
	name string
	data []byte
}

type fakeStream struct {
	path string
	data []byte
}

// fakeSDK simulates one camera. Calls are logged as readable strings, errors
// can be injected per logged call, and queued events are dispatched from
// GetEvent the way the real SDK invokes handlers inside the pump.
type fakeSDK struct {
	mu sync.Mutex

	cameras    []edsdk.DeviceInfo
	calls      []string
	failures   map[string]edsdk.Error
	failOnce   map[string]edsdk.Error
	props      map[edsdk.PropertyID]uint32
	items      map[edsdk.Ref]fakeItem
	streams    map[edsdk.Ref]*fakeStream
	evf        map[edsdk.Ref]edsdk.Ref
	released   map[edsdk.Ref]int
	nextRef    edsdk.Ref
	pending    []func()
	pumps      int
	panicPumps int

	// shootOn maps a logged SendCommand to the still it produces.
	shootOn map[string][]byte
	// movieOnStop queues a movie item when recording is stopped.
	movieOnStop []byte
	liveFrame   []byte

	objectHandler edsdk.ObjectEventHandler
	stateHandler  edsdk.StateEventHandler
}

const (
	cmdTake         = "SendCommand TakePicture 0"
	cmdPressFull    = "SendCommand PressShutter 65539"
	cmdReleasePress = "SendCommand PressShutter 0"
)

var testJPEG = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'e', 'g', 0xFF, 0xD9}

func newFakeSDK() *fakeSDK {
	return &fakeSDK{
		cameras:  []edsdk.DeviceInfo{{Description: "Canon EOS R6", PortName: "usb:001,004"}},
		failures: map[string]edsdk.Error{},
		failOnce: map[string]edsdk.Error{},
		props: map[edsdk.PropertyID]uint32{
			edsdk.PropBatteryLevel:   80,
			edsdk.PropAvailableShots: 999,
		},
		items:    map[edsdk.Ref]fakeItem{},
		streams:  map[edsdk.Ref]*fakeStream{},
		evf:      map[edsdk.Ref]edsdk.Ref{},
		released: map[edsdk.Ref]int{},
		nextRef:  5000,
		shootOn:  map[string][]byte{cmdTake: testJPEG},
	}
}

func (f *fakeSDK) fail(call string, code edsdk.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[call] = code
}

func (f *fakeSDK) failNext(call string, code edsdk.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnce[call] = code
}

// record logs call and returns the injected error for it, if any.
func (f *fakeSDK) record(call string) error {
	f.calls = append(f.calls, call)
	if code, ok := f.failOnce[call]; ok {
		delete(f.failOnce, call)
		return code
	}
	if code, ok := f.failures[call]; ok {
		return code
	}
	return nil
}

func (f *fakeSDK) newRef() edsdk.Ref {
	f.nextRef++
	return f.nextRef
}

func (f *fakeSDK) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSDK) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.log() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeSDK) count(call string) int {
	n := 0
	for _, c := range f.log() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeSDK) resetLog() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeSDK) pumpCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pumps
}

func (f *fakeSDK) prop(id edsdk.PropertyID) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[id]
}

func (f *fakeSDK) setShoot(call string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data == nil {
		delete(f.shootOn, call)
		return
	}
	f.shootOn[call] = data
}

func (f *fakeSDK) queueObjectLocked(event edsdk.ObjectEvent, name string, data []byte) {
	ref := f.newRef()
	f.items[ref] = fakeItem{name: name, data: data}
	f.pending = append(f.pending, func() {
		f.mu.Lock()
		h := f.objectHandler
		f.mu.Unlock()
		if h != nil {
			h(event, ref)
		}
	})
}

// queueTransfer delivers a still on the next pump.
func (f *fakeSDK) queueTransfer(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueObjectLocked(edsdk.ObjectEventDirItemRequestTransfer, name, data)
}

// queueCreated reports a new item on the card on the next pump.
func (f *fakeSDK) queueCreated(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueObjectLocked(edsdk.ObjectEventDirItemCreated, name, data)
}

func (f *fakeSDK) queueObject(event edsdk.ObjectEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueObjectLocked(event, "", nil)
}

func (f *fakeSDK) queueShutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, func() {
		f.mu.Lock()
		h := f.stateHandler
		f.mu.Unlock()
		if h != nil {
			h(edsdk.StateEventShutdown, 0)
		}
	})
}

func (f *fakeSDK) Initialize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("Initialize")
}

func (f *fakeSDK) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("Terminate")
}

func (f *fakeSDK) CameraList() (edsdk.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CameraList"); err != nil {
		return 0, err
	}
	return 1000, nil
}

func (f *fakeSDK) ChildCount(edsdk.Ref) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cameras), nil
}

func (f *fakeSDK) ChildAtIndex(_ edsdk.Ref, index int) (edsdk.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index >= len(f.cameras) {
		return 0, edsdk.ErrInvalidIndex
	}
	return edsdk.Ref(2000 + index), nil
}

func (f *fakeSDK) DeviceInfo(camera edsdk.Ref) (edsdk.DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cameras[int(camera)-2000], nil
}

func (f *fakeSDK) Release(ref edsdk.Ref) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[ref]++
}

func (f *fakeSDK) releasedCount(ref edsdk.Ref) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released[ref]
}

func (f *fakeSDK) OpenSession(camera edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("OpenSession")
}

func (f *fakeSDK) CloseSession(camera edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("CloseSession")
}

func (f *fakeSDK) SendCommand(_ edsdk.Ref, cmd edsdk.CameraCommand, param int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := fmt.Sprintf("SendCommand %s %d", commandName(cmd), param)
	if err := f.record(call); err != nil {
		return err
	}
	if data, ok := f.shootOn[call]; ok {
		f.queueObjectLocked(edsdk.ObjectEventDirItemRequestTransfer, "IMG_0001.JPG", data)
	}
	return nil
}

func (f *fakeSDK) PropertyUint32(_ edsdk.Ref, id edsdk.PropertyID) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetProperty " + propName(id)); err != nil {
		return 0, err
	}
	v, ok := f.props[id]
	if !ok {
		return 0, edsdk.ErrNotSupported
	}
	return v, nil
}

func (f *fakeSDK) SetPropertyUint32(_ edsdk.Ref, id edsdk.PropertyID, value uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(fmt.Sprintf("SetProperty %s=%d", propName(id), value)); err != nil {
		return err
	}
	f.props[id] = value
	if id == edsdk.PropRecord && value == edsdk.RecordStop && f.movieOnStop != nil {
		f.queueObjectLocked(edsdk.ObjectEventDirItemCreated, "MVI_0001.MOV", f.movieOnStop)
	}
	return nil
}

func (f *fakeSDK) SetCapacity(edsdk.Ref, edsdk.Capacity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("SetCapacity")
}

func (f *fakeSDK) DirectoryItemInfo(item edsdk.Ref) (edsdk.DirectoryItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[item]
	if !ok {
		return edsdk.DirectoryItemInfo{}, edsdk.ErrInvalidHandle
	}
	if err := f.record("DirectoryItemInfo " + it.name); err != nil {
		return edsdk.DirectoryItemInfo{}, err
	}
	return edsdk.DirectoryItemInfo{FileName: it.name, Size: uint64(len(it.data))}, nil
}

func (f *fakeSDK) Download(item edsdk.Ref, _ uint64, stream edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[item]
	if err := f.record("Download " + it.name); err != nil {
		return err
	}
	s := f.streams[stream]
	if s.path != "" {
		return os.WriteFile(s.path, it.data, 0o644)
	}
	s.data = append([]byte(nil), it.data...)
	return nil
}

func (f *fakeSDK) DownloadComplete(item edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DownloadComplete " + f.items[item].name)
}

func (f *fakeSDK) DownloadCancel(item edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DownloadCancel " + f.items[item].name)
}

func (f *fakeSDK) DeleteDirectoryItem(item edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DeleteDirectoryItem " + f.items[item].name)
}

func (f *fakeSDK) CreateMemoryStream(uint64) (edsdk.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.newRef()
	f.streams[ref] = &fakeStream{}
	return ref, nil
}

func (f *fakeSDK) CreateFileStream(path string) (edsdk.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateFileStream"); err != nil {
		return 0, err
	}
	ref := f.newRef()
	f.streams[ref] = &fakeStream{path: path}
	return ref, nil
}

func (f *fakeSDK) StreamBytes(stream edsdk.Ref) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.streams[stream].data...), nil
}

func (f *fakeSDK) CreateEvfImageRef(stream edsdk.Ref) (edsdk.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.newRef()
	f.evf[ref] = stream
	return ref, nil
}

func (f *fakeSDK) DownloadEvfImage(_ edsdk.Ref, evf edsdk.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("DownloadEvfImage"); err != nil {
		return err
	}
	f.streams[f.evf[evf]].data = append([]byte(nil), f.liveFrame...)
	return nil
}

func (f *fakeSDK) SetObjectEventHandler(_ edsdk.Ref, h edsdk.ObjectEventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetObjectEventHandler"); err != nil {
		return err
	}
	f.objectHandler = h
	return nil
}

func (f *fakeSDK) SetStateEventHandler(_ edsdk.Ref, h edsdk.StateEventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetStateEventHandler"); err != nil {
		return err
	}
	f.stateHandler = h
	return nil
}

// GetEvent runs queued events on the calling goroutine, outside f.mu, as
// the SDK runs handlers inside EdsGetEvent.
func (f *fakeSDK) GetEvent() error {
	f.mu.Lock()
	f.pumps++
	if f.panicPumps > 0 {
		f.panicPumps--
		f.mu.Unlock()
		panic("simulated SDK crash")
	}
	events := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, ev := range events {
		ev()
	}
	return nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Capture.Timeout = 300 * time.Millisecond
	cfg.Capture.DuringRecordingTimeout = 200 * time.Millisecond
	cfg.Capture.PumpInterval = time.Millisecond
	cfg.Capture.PumpPeriod = 5 * time.Millisecond
	cfg.Recording.MovieTimeout = 300 * time.Millisecond
	cfg.Recording.SettleDelay = time.Millisecond
	cfg.Recording.ScratchDir = t.TempDir()
	return cfg
}
