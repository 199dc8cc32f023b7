package edsdk

import (
	"fmt"
	"sync"

	"github.com/video-system/go-tether/internal/log"
)

var (
	handlerMu     sync.RWMutex
	objectHandler ObjectEventHandler
	stateHandler  StateEventHandler
)

func setObjectHandler(h ObjectEventHandler) {
	handlerMu.Lock()
	objectHandler = h
	handlerMu.Unlock()
}

func setStateHandler(h StateEventHandler) {
	handlerMu.Lock()
	stateHandler = h
	handlerMu.Unlock()
}

// A panic must not unwind into the SDK's stack frames.
func dispatchObject(event ObjectEvent, ref Ref) (code Error) {
	handlerMu.RLock()
	h := objectHandler
	handlerMu.RUnlock()
	if h == nil {
		return ErrOK
	}
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("edsdk")
			logger.Error().
				Interface("panic", r).
				Str("event", event.String()).
				Msg("object event handler panicked")
			code = ErrInternalError
		}
	}()
	return h(event, ref)
}

func dispatchState(event StateEvent, data uint32) (code Error) {
	handlerMu.RLock()
	h := stateHandler
	handlerMu.RUnlock()
	if h == nil {
		return ErrOK
	}
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("edsdk")
			logger.Error().
				Interface("panic", r).
				Str("event", event.String()).
				Msg("state event handler panicked")
			code = ErrInternalError
		}
	}()
	return h(event, data)
}

func (e ObjectEvent) String() string {
	switch e {
	case ObjectEventDirItemCreated:
		return "DirItemCreated"
	case ObjectEventDirItemRequestTransfer:
		return "DirItemRequestTransfer"
	case ObjectEventDirItemRemoved:
		return "DirItemRemoved"
	case ObjectEventVolumeInfoChanged:
		return "VolumeInfoChanged"
	case ObjectEventFolderUpdateItems:
		return "FolderUpdateItems"
	}
	return fmt.Sprintf("ObjectEvent(0x%X)", uint32(e))
}

func (e StateEvent) String() string {
	switch e {
	case StateEventShutdown:
		return "Shutdown"
	case StateEventWillSoonShutDown:
		return "WillSoonShutDown"
	case StateEventJobStatusChanged:
		return "JobStatusChanged"
	case StateEventInternalError:
		return "InternalError"
	}
	return fmt.Sprintf("StateEvent(0x%X)", uint32(e))
}
