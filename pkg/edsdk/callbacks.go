package edsdk

import (
	"sync"

	"github.com/ebitengine/purego"
)

// purego callbacks are never freed, so the two trampolines are created once
// and dispatch to whichever Go handler is currently installed.
var (
	trampolineOnce sync.Once
	objectCallback uintptr
	stateCallback  uintptr
)

func initTrampolines() {
	trampolineOnce.Do(func() {
		objectCallback = purego.NewCallback(func(event, ref, _ uintptr) uintptr {
			return uintptr(dispatchObject(ObjectEvent(event), Ref(ref)))
		})
		stateCallback = purego.NewCallback(func(event, data, _ uintptr) uintptr {
			return uintptr(dispatchState(StateEvent(event), uint32(data)))
		})
	})
}

func objectTrampoline() uintptr {
	initTrampolines()
	return objectCallback
}

func stateTrampoline() uintptr {
	initTrampolines()
	return stateCallback
}
