package capture

import (
	"github.com/video-system/go-tether/pkg/edsdk"
)

// SDK is the subset of the EDSDK the coordinator drives. *edsdk.Library
// satisfies it; tests substitute a simulated camera.
type SDK interface {
	Initialize() error
	Terminate() error

	CameraList() (edsdk.Ref, error)
	ChildCount(ref edsdk.Ref) (int, error)
	ChildAtIndex(ref edsdk.Ref, index int) (edsdk.Ref, error)
	DeviceInfo(camera edsdk.Ref) (edsdk.DeviceInfo, error)
	Release(ref edsdk.Ref)

	OpenSession(camera edsdk.Ref) error
	CloseSession(camera edsdk.Ref) error
	SendCommand(camera edsdk.Ref, command edsdk.CameraCommand, param int32) error
	PropertyUint32(ref edsdk.Ref, id edsdk.PropertyID) (uint32, error)
	SetPropertyUint32(ref edsdk.Ref, id edsdk.PropertyID, value uint32) error
	SetCapacity(camera edsdk.Ref, c edsdk.Capacity) error

	DirectoryItemInfo(item edsdk.Ref) (edsdk.DirectoryItemInfo, error)
	Download(item edsdk.Ref, size uint64, stream edsdk.Ref) error
	DownloadComplete(item edsdk.Ref) error
	DownloadCancel(item edsdk.Ref) error
	DeleteDirectoryItem(item edsdk.Ref) error

	CreateMemoryStream(size uint64) (edsdk.Ref, error)
	CreateFileStream(path string) (edsdk.Ref, error)
	StreamBytes(stream edsdk.Ref) ([]byte, error)
	CreateEvfImageRef(stream edsdk.Ref) (edsdk.Ref, error)
	DownloadEvfImage(camera edsdk.Ref, evf edsdk.Ref) error

	SetObjectEventHandler(camera edsdk.Ref, h edsdk.ObjectEventHandler) error
	SetStateEventHandler(camera edsdk.Ref, h edsdk.StateEventHandler) error
	GetEvent() error
}

// Loader loads the SDK named by locator. An empty locator means "search
// the default locations".
type Loader func(locator string) (SDK, error)

// LibraryLoader resolves locator with edsdk.Locate, searching dirs after an
// explicit locator, and opens the result.
func LibraryLoader(dirs ...string) Loader {
	return func(locator string) (SDK, error) {
		path, err := edsdk.Locate(locator, dirs...)
		if err != nil {
			return nil, err
		}
		lib, err := edsdk.Open(path)
		if err != nil {
			return nil, err
		}
		return lib, nil
	}
}
