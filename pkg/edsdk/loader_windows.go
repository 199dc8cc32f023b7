//go:build windows

package edsdk

import (
	"github.com/ebitengine/purego"
	"golang.org/x/sys/windows"
)

type capacityCall func(camera uintptr, c Capacity) uint32

// LOAD_WITH_ALTERED_SEARCH_PATH makes the loader resolve EdsImage.dll and
// the other sibling DLLs from the directory of path.
func openLibrary(path string) (uintptr, error) {
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return 0, err
	}
	return uintptr(h), nil
}

// The x64 calling convention passes a 12 byte struct through a pointer to
// a caller-owned copy.
func registerSetCapacity(handle uintptr) capacityCall {
	var fn func(camera uintptr, c *Capacity) uint32
	purego.RegisterLibFunc(&fn, handle, "EdsSetCapacity")
	return func(camera uintptr, c Capacity) uint32 {
		return fn(camera, &c)
	}
}
