// Package edsdk binds the Canon EOS Digital SDK at runtime.
//
// The library is loaded by path with purego, so the binary builds without
// cgo and without the SDK present. Every entry point returns an Error that
// carries the native code and renders it as readable text.
package edsdk

import "bytes"

// Ref is an opaque reference to an SDK object: camera, camera list,
// directory item, stream or live view image.
type Ref uintptr

// PropertyID identifies a camera property.
type PropertyID uint32

const (
	PropProductName       PropertyID = 0x00000002
	PropBatteryLevel      PropertyID = 0x00000008
	PropSaveTo            PropertyID = 0x0000000B
	PropBodyIDEx          PropertyID = 0x00000015
	PropImageQuality      PropertyID = 0x00000100
	PropWhiteBalance      PropertyID = 0x00000106
	PropAEMode            PropertyID = 0x00000400
	PropDriveMode         PropertyID = 0x00000401
	PropISOSpeed          PropertyID = 0x00000402
	PropMeteringMode      PropertyID = 0x00000403
	PropAFMode            PropertyID = 0x00000404
	PropAv                PropertyID = 0x00000405
	PropTv                PropertyID = 0x00000406
	PropExposureComp      PropertyID = 0x00000407
	PropAvailableShots    PropertyID = 0x0000040A
	PropEvfOutputDevice   PropertyID = 0x00000500
	PropEvfMode           PropertyID = 0x00000501
	PropEvfAFMode         PropertyID = 0x0000050E
	PropRecord            PropertyID = 0x00000510
	PropMirrorLockUpState PropertyID = 0x01000421
	PropFixedMovie        PropertyID = 0x01000422
	PropContinuousAFMode  PropertyID = 0x01000433
)

// CameraCommand is the command argument of EdsSendCommand.
type CameraCommand uint32

const (
	CommandTakePicture         CameraCommand = 0x00000000
	CommandExtendShutDownTimer CameraCommand = 0x00000001
	CommandPressShutterButton  CameraCommand = 0x00000004
)

// Shutter button states, passed as the parameter of CommandPressShutterButton.
const (
	ShutterOff             int32 = 0x00000000
	ShutterHalfway         int32 = 0x00000001
	ShutterCompletely      int32 = 0x00000003
	ShutterHalfwayNonAF    int32 = 0x00010001
	ShutterCompletelyNonAF int32 = 0x00010003
)

// Save destinations for PropSaveTo.
const (
	SaveToCamera uint32 = 1
	SaveToHost   uint32 = 2
	SaveToBoth   uint32 = 3
)

// Live view output devices for PropEvfOutputDevice.
const (
	EvfOutputOff uint32 = 0
	EvfOutputTFT uint32 = 1
	EvfOutputPC  uint32 = 2
)

// Values for the movie related properties.
const (
	RecordStop  uint32 = 0
	RecordStart uint32 = 4

	FixedMovieStill uint32 = 0
	FixedMovieOn    uint32 = 1

	AFModeOneShot         uint32 = 0
	ContinuousAFDisable   uint32 = 0
	MirrorLockUpDisable   uint32 = 0
	ImageQualityLargeFine uint32 = 0x0013FF0F
)

// ObjectEvent identifies an object event notification.
type ObjectEvent uint32

const (
	ObjectEventAll                    ObjectEvent = 0x00000200
	ObjectEventVolumeInfoChanged      ObjectEvent = 0x00000201
	ObjectEventVolumeUpdateItems      ObjectEvent = 0x00000202
	ObjectEventFolderUpdateItems      ObjectEvent = 0x00000203
	ObjectEventDirItemCreated         ObjectEvent = 0x00000204
	ObjectEventDirItemRemoved         ObjectEvent = 0x00000205
	ObjectEventDirItemInfoChanged     ObjectEvent = 0x00000206
	ObjectEventDirItemContentChanged  ObjectEvent = 0x00000207
	ObjectEventDirItemRequestTransfer ObjectEvent = 0x00000208
)

// StateEvent identifies a camera state notification.
type StateEvent uint32

const (
	StateEventAll              StateEvent = 0x00000300
	StateEventShutdown         StateEvent = 0x00000301
	StateEventJobStatusChanged StateEvent = 0x00000302
	StateEventWillSoonShutDown StateEvent = 0x00000303
	StateEventInternalError    StateEvent = 0x00000306
)

// ObjectEventHandler receives object events during GetEvent. The returned
// Error is handed back to the SDK; return ErrOK for anything not handled.
type ObjectEventHandler func(event ObjectEvent, item Ref) Error

// StateEventHandler receives camera state events during GetEvent.
type StateEventHandler func(event StateEvent, data uint32) Error

const maxName = 256

// Capacity is EdsCapacity. The host advertises it so the camera believes
// it has room to write when saving to host.
type Capacity struct {
	NumberOfFreeClusters int32
	BytesPerSector       int32
	Reset                int32
}

// UnlimitedCapacity is what the host reports while it owns image storage.
var UnlimitedCapacity = Capacity{NumberOfFreeClusters: 0x7FFFFFFF, BytesPerSector: 512, Reset: 1}

type rawDeviceInfo struct {
	PortName          [maxName]byte
	DeviceDescription [maxName]byte
	DeviceSubType     uint32
	Reserved          uint32
}

type rawDirectoryItemInfo struct {
	Size     uint64
	IsFolder int32
	GroupID  uint32
	Option   uint32
	FileName [maxName]byte
	Format   uint32
	DateTime uint32
}

// DeviceInfo describes an attached camera.
type DeviceInfo struct {
	Description string `json:"description"`
	PortName    string `json:"port_name"`
	SubType     uint32 `json:"sub_type"`
}

// DirectoryItemInfo describes a file on the camera or one offered for transfer.
type DirectoryItemInfo struct {
	Size     uint64
	IsFolder bool
	GroupID  uint32
	FileName string
	Format   uint32
	DateTime uint32
}

func (r rawDeviceInfo) info() DeviceInfo {
	return DeviceInfo{
		Description: cString(r.DeviceDescription[:]),
		PortName:    cString(r.PortName[:]),
		SubType:     r.DeviceSubType,
	}
}

func (r rawDirectoryItemInfo) info() DirectoryItemInfo {
	return DirectoryItemInfo{
		Size:     r.Size,
		IsFolder: r.IsFolder != 0,
		GroupID:  r.GroupID,
		FileName: cString(r.FileName[:]),
		Format:   r.Format,
		DateTime: r.DateTime,
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
