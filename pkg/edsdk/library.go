package edsdk

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

const (
	fileCreateAlways uint32 = 1
	accessReadWrite  uint32 = 2
)

// Library is a loaded EDSDK. All methods are thin typed wrappers over the
// exported C functions; none of them keeps camera state.
type Library struct {
	path   string
	handle uintptr

	initializeSDK         func() uint32
	terminateSDK          func() uint32
	retain                func(ref uintptr) uint32
	release               func(ref uintptr) uint32
	getCameraList         func(out *uintptr) uint32
	getChildCount         func(ref uintptr, out *uint32) uint32
	getChildAtIndex       func(ref uintptr, index int32, out *uintptr) uint32
	getDeviceInfo         func(camera uintptr, out *rawDeviceInfo) uint32
	openSession           func(camera uintptr) uint32
	closeSession          func(camera uintptr) uint32
	sendCommand           func(camera uintptr, command uint32, param int32) uint32
	getPropertySize       func(ref uintptr, id uint32, param int32, dataType *uint32, size *uint32) uint32
	getPropertyData       func(ref uintptr, id uint32, param int32, size uint32, data unsafe.Pointer) uint32
	setPropertyData       func(ref uintptr, id uint32, param int32, size uint32, data unsafe.Pointer) uint32
	getDirectoryItemInfo  func(item uintptr, out *rawDirectoryItemInfo) uint32
	download              func(item uintptr, size uint64, stream uintptr) uint32
	downloadComplete      func(item uintptr) uint32
	downloadCancel        func(item uintptr) uint32
	deleteDirectoryItem   func(item uintptr) uint32
	createMemoryStream    func(size uint64, out *uintptr) uint32
	createFileStream      func(path string, disposition uint32, access uint32, out *uintptr) uint32
	getPointer            func(stream uintptr, out *unsafe.Pointer) uint32
	getLength             func(stream uintptr, out *uint64) uint32
	createEvfImageRef     func(stream uintptr, out *uintptr) uint32
	downloadEvfImage      func(camera uintptr, evf uintptr) uint32
	setObjectEventHandler func(camera uintptr, event uint32, handler uintptr, context uintptr) uint32
	setStateEventHandler  func(camera uintptr, event uint32, handler uintptr, context uintptr) uint32
	getEvent              func() uint32

	capacity capacityCall
}

var (
	loadMu sync.Mutex
	loaded *Library
)

// Open loads the SDK from path and resolves every entry point. Loading the
// same path twice returns the library already loaded; a process can only
// host one EDSDK.
func Open(path string) (lib *Library, err error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if loaded != nil {
		if loaded.path == path {
			return loaded, nil
		}
		return nil, fmt.Errorf("EDSDK already loaded from %s", loaded.path)
	}

	handle, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	// RegisterLibFunc panics on a missing symbol.
	defer func() {
		if r := recover(); r != nil {
			lib = nil
			err = fmt.Errorf("resolve EDSDK symbols in %s: %v", path, r)
		}
	}()

	l := &Library{path: path, handle: handle}
	register := func(fptr any, name string) {
		purego.RegisterLibFunc(fptr, handle, name)
	}
	register(&l.initializeSDK, "EdsInitializeSDK")
	register(&l.terminateSDK, "EdsTerminateSDK")
	register(&l.retain, "EdsRetain")
	register(&l.release, "EdsRelease")
	register(&l.getCameraList, "EdsGetCameraList")
	register(&l.getChildCount, "EdsGetChildCount")
	register(&l.getChildAtIndex, "EdsGetChildAtIndex")
	register(&l.getDeviceInfo, "EdsGetDeviceInfo")
	register(&l.openSession, "EdsOpenSession")
	register(&l.closeSession, "EdsCloseSession")
	register(&l.sendCommand, "EdsSendCommand")
	register(&l.getPropertySize, "EdsGetPropertySize")
	register(&l.getPropertyData, "EdsGetPropertyData")
	register(&l.setPropertyData, "EdsSetPropertyData")
	register(&l.getDirectoryItemInfo, "EdsGetDirectoryItemInfo")
	register(&l.download, "EdsDownload")
	register(&l.downloadComplete, "EdsDownloadComplete")
	register(&l.downloadCancel, "EdsDownloadCancel")
	register(&l.deleteDirectoryItem, "EdsDeleteDirectoryItem")
	register(&l.createMemoryStream, "EdsCreateMemoryStream")
	register(&l.createFileStream, "EdsCreateFileStream")
	register(&l.getPointer, "EdsGetPointer")
	register(&l.getLength, "EdsGetLength")
	register(&l.createEvfImageRef, "EdsCreateEvfImageRef")
	register(&l.downloadEvfImage, "EdsDownloadEvfImage")
	register(&l.setObjectEventHandler, "EdsSetObjectEventHandler")
	register(&l.setStateEventHandler, "EdsSetStateEventHandler")
	register(&l.getEvent, "EdsGetEvent")
	l.capacity = registerSetCapacity(handle)

	loaded = l
	return l, nil
}

// IsLoaded reports whether a library has been opened in this process.
func IsLoaded() bool {
	loadMu.Lock()
	defer loadMu.Unlock()
	return loaded != nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string { return l.path }

func (l *Library) Initialize() error { return check(l.initializeSDK()) }

func (l *Library) Terminate() error { return check(l.terminateSDK()) }

// Retain increments the reference count of ref.
func (l *Library) Retain(ref Ref) {
	if ref != 0 {
		l.retain(uintptr(ref))
	}
}

// Release decrements the reference count of ref. A zero ref is ignored.
func (l *Library) Release(ref Ref) {
	if ref != 0 {
		l.release(uintptr(ref))
	}
}

// CameraList returns a reference to the list of attached cameras. The
// caller releases it.
func (l *Library) CameraList() (Ref, error) {
	var out uintptr
	if err := check(l.getCameraList(&out)); err != nil {
		return 0, err
	}
	return Ref(out), nil
}

func (l *Library) ChildCount(ref Ref) (int, error) {
	var n uint32
	if err := check(l.getChildCount(uintptr(ref), &n)); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (l *Library) ChildAtIndex(ref Ref, index int) (Ref, error) {
	var out uintptr
	if err := check(l.getChildAtIndex(uintptr(ref), int32(index), &out)); err != nil {
		return 0, err
	}
	return Ref(out), nil
}

func (l *Library) DeviceInfo(camera Ref) (DeviceInfo, error) {
	var raw rawDeviceInfo
	if err := check(l.getDeviceInfo(uintptr(camera), &raw)); err != nil {
		return DeviceInfo{}, err
	}
	return raw.info(), nil
}

func (l *Library) OpenSession(camera Ref) error {
	return check(l.openSession(uintptr(camera)))
}

func (l *Library) CloseSession(camera Ref) error {
	return check(l.closeSession(uintptr(camera)))
}

func (l *Library) SendCommand(camera Ref, command CameraCommand, param int32) error {
	return check(l.sendCommand(uintptr(camera), uint32(command), param))
}

// PropertySize returns the data type and byte size of a property.
func (l *Library) PropertySize(ref Ref, id PropertyID) (dataType, size uint32, err error) {
	err = check(l.getPropertySize(uintptr(ref), uint32(id), 0, &dataType, &size))
	return dataType, size, err
}

// PropertyUint32 reads a 4 byte property.
func (l *Library) PropertyUint32(ref Ref, id PropertyID) (uint32, error) {
	_, size, err := l.PropertySize(ref, id)
	if err != nil {
		return 0, err
	}
	if size != 4 {
		return 0, &SizeError{Property: id, Size: size}
	}
	var v uint32
	if err := check(l.getPropertyData(uintptr(ref), uint32(id), 0, 4, unsafe.Pointer(&v))); err != nil {
		return 0, err
	}
	return v, nil
}

// SetPropertyUint32 writes a 4 byte property.
func (l *Library) SetPropertyUint32(ref Ref, id PropertyID, value uint32) error {
	return check(l.setPropertyData(uintptr(ref), uint32(id), 0, 4, unsafe.Pointer(&value)))
}

func (l *Library) SetCapacity(camera Ref, c Capacity) error {
	return check(l.capacity(uintptr(camera), c))
}

func (l *Library) DirectoryItemInfo(item Ref) (DirectoryItemInfo, error) {
	var raw rawDirectoryItemInfo
	if err := check(l.getDirectoryItemInfo(uintptr(item), &raw)); err != nil {
		return DirectoryItemInfo{}, err
	}
	return raw.info(), nil
}

func (l *Library) Download(item Ref, size uint64, stream Ref) error {
	return check(l.download(uintptr(item), size, uintptr(stream)))
}

func (l *Library) DownloadComplete(item Ref) error {
	return check(l.downloadComplete(uintptr(item)))
}

func (l *Library) DownloadCancel(item Ref) error {
	return check(l.downloadCancel(uintptr(item)))
}

func (l *Library) DeleteDirectoryItem(item Ref) error {
	return check(l.deleteDirectoryItem(uintptr(item)))
}

// CreateMemoryStream creates a growable in-memory stream. size 0 lets the
// SDK size the buffer on download.
func (l *Library) CreateMemoryStream(size uint64) (Ref, error) {
	var out uintptr
	if err := check(l.createMemoryStream(size, &out)); err != nil {
		return 0, err
	}
	return Ref(out), nil
}

// CreateFileStream creates (or truncates) path and returns a stream
// writing to it.
func (l *Library) CreateFileStream(path string) (Ref, error) {
	var out uintptr
	if err := check(l.createFileStream(path, fileCreateAlways, accessReadWrite, &out)); err != nil {
		return 0, err
	}
	return Ref(out), nil
}

// StreamBytes copies the contents of a memory stream into Go memory.
func (l *Library) StreamBytes(stream Ref) ([]byte, error) {
	var length uint64
	if err := check(l.getLength(uintptr(stream), &length)); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	var ptr unsafe.Pointer
	if err := check(l.getPointer(uintptr(stream), &ptr)); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, errors.New("stream has no backing buffer")
	}
	out := make([]byte, length)
	copy(out, unsafe.Slice((*byte)(ptr), length))
	return out, nil
}

func (l *Library) CreateEvfImageRef(stream Ref) (Ref, error) {
	var out uintptr
	if err := check(l.createEvfImageRef(uintptr(stream), &out)); err != nil {
		return 0, err
	}
	return Ref(out), nil
}

func (l *Library) DownloadEvfImage(camera Ref, evf Ref) error {
	return check(l.downloadEvfImage(uintptr(camera), uintptr(evf)))
}

// SetObjectEventHandler routes every object event of camera to h.
func (l *Library) SetObjectEventHandler(camera Ref, h ObjectEventHandler) error {
	setObjectHandler(h)
	return check(l.setObjectEventHandler(uintptr(camera), uint32(ObjectEventAll), objectTrampoline(), 0))
}

// SetStateEventHandler routes every state event of camera to h.
func (l *Library) SetStateEventHandler(camera Ref, h StateEventHandler) error {
	setStateHandler(h)
	return check(l.setStateEventHandler(uintptr(camera), uint32(StateEventAll), stateTrampoline(), 0))
}

// GetEvent dispatches pending notifications to the registered handlers and
// returns once they have run.
func (l *Library) GetEvent() error {
	return check(l.getEvent())
}

// SizeError is returned when a property is not the size the caller asked
// for.
type SizeError struct {
	Property PropertyID
	Size     uint32
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("property 0x%08X has size %d", uint32(e.Property), e.Size)
}
