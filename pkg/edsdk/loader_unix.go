//go:build !windows

package edsdk

import (
	"github.com/ebitengine/purego"
)

type capacityCall func(camera uintptr, c Capacity) uint32

func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

// EdsCapacity is 12 bytes of integers, which the amd64 and arm64 C ABIs
// pass by value in two registers.
func registerSetCapacity(handle uintptr) capacityCall {
	var fn func(camera uintptr, lo uintptr, hi uintptr) uint32
	purego.RegisterLibFunc(&fn, handle, "EdsSetCapacity")
	return func(camera uintptr, c Capacity) uint32 {
		lo := uint64(uint32(c.NumberOfFreeClusters)) | uint64(uint32(c.BytesPerSector))<<32
		return fn(camera, uintptr(lo), uintptr(uint32(c.Reset)))
	}
}
