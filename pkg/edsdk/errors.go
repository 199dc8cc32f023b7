package edsdk

import "fmt"

// Error is a native EdsError code.
type Error uint32

// Native error codes returned by the SDK.
const (
	ErrOK                          Error = 0x00000000
	ErrUnimplemented               Error = 0x00000001
	ErrInternalError               Error = 0x00000002
	ErrMemAllocFailed              Error = 0x00000003
	ErrMemFreeFailed               Error = 0x00000004
	ErrOperationCancelled          Error = 0x00000005
	ErrIncompatibleVersion         Error = 0x00000006
	ErrNotSupported                Error = 0x00000007
	ErrUnexpectedException         Error = 0x00000008
	ErrProtectionViolation         Error = 0x00000009
	ErrMissingSubcomponent         Error = 0x0000000A
	ErrSelectionUnavailable        Error = 0x0000000B
	ErrFileIOError                 Error = 0x00000020
	ErrFileNotFound                Error = 0x00000022
	ErrFileOpenError               Error = 0x00000023
	ErrFileWriteError              Error = 0x00000026
	ErrFilePermissionError         Error = 0x0000002A
	ErrFileDiskFullError           Error = 0x0000002B
	ErrInvalidParameter            Error = 0x00000060
	ErrInvalidHandle               Error = 0x00000061
	ErrInvalidPointer              Error = 0x00000062
	ErrInvalidIndex                Error = 0x00000063
	ErrInvalidLength               Error = 0x00000064
	ErrDeviceNotFound              Error = 0x00000080
	ErrDeviceBusy                  Error = 0x00000081
	ErrDeviceInvalid               Error = 0x00000082
	ErrDeviceEmergency             Error = 0x00000083
	ErrDeviceMemoryFull            Error = 0x00000084
	ErrDeviceInternalError         Error = 0x00000085
	ErrDeviceNotReleased           Error = 0x00000088
	ErrCommPortInUse               Error = 0x000000C0
	ErrCommDisconnected            Error = 0x000000C1
	ErrCommDeviceIncompatible      Error = 0x000000C2
	ErrCommBufferFull              Error = 0x000000C3
	ErrCommUSBBusError             Error = 0x000000C4
	ErrSessionNotOpen              Error = 0x00002003
	ErrInvalidTransactionID        Error = 0x00002004
	ErrIncompleteTransfer          Error = 0x00002007
	ErrSessionAlreadyOpen          Error = 0x0000201E
	ErrTakePictureAFNG             Error = 0x00008D01
	ErrTakePictureReserved         Error = 0x00008D02
	ErrTakePictureMirrorUpNG       Error = 0x00008D03
	ErrTakePictureSensorCleaningNG Error = 0x00008D04
	ErrTakePictureSilenceNG        Error = 0x00008D05
	ErrTakePictureNoCardNG         Error = 0x00008D06
	ErrTakePictureCardNG           Error = 0x00008D07
	ErrTakePictureCardProtectNG    Error = 0x00008D08
	ErrTakePictureMovieCropNG      Error = 0x00008D09
	ErrTakePictureStroboChargeNG   Error = 0x00008D0A
	ErrTakePictureNoLensNG         Error = 0x00008D0B
	ErrLowBattery                  Error = 0x0000A101
	ErrObjectNotReady              Error = 0x0000A102
)

var errorText = map[Error]string{
	ErrOK:                          "OK",
	ErrUnimplemented:               "Not implemented",
	ErrInternalError:               "Internal error",
	ErrMemAllocFailed:              "Memory allocation failed",
	ErrMemFreeFailed:               "Memory release failed",
	ErrOperationCancelled:          "Operation cancelled",
	ErrIncompatibleVersion:         "Incompatible SDK version",
	ErrNotSupported:                "Not supported",
	ErrUnexpectedException:         "Unexpected exception",
	ErrProtectionViolation:         "Protection violation",
	ErrMissingSubcomponent:         "Missing SDK subcomponent",
	ErrSelectionUnavailable:        "Selection unavailable",
	ErrFileIOError:                 "File I/O error",
	ErrFileNotFound:                "File not found",
	ErrFileOpenError:               "File open error",
	ErrFileWriteError:              "File write error",
	ErrFilePermissionError:         "File permission error",
	ErrFileDiskFullError:           "Disk full",
	ErrInvalidParameter:            "Invalid parameter",
	ErrInvalidHandle:               "Invalid handle",
	ErrInvalidPointer:              "Invalid pointer",
	ErrInvalidIndex:                "Invalid index",
	ErrInvalidLength:               "Invalid length",
	ErrDeviceNotFound:              "Camera not found",
	ErrDeviceBusy:                  "Camera busy",
	ErrDeviceInvalid:               "Camera invalid",
	ErrDeviceEmergency:             "Camera emergency",
	ErrDeviceMemoryFull:            "Camera memory full",
	ErrDeviceInternalError:         "Camera internal error",
	ErrDeviceNotReleased:           "Camera not released",
	ErrCommPortInUse:               "Port in use",
	ErrCommDisconnected:            "Camera disconnected",
	ErrCommDeviceIncompatible:      "Camera incompatible",
	ErrCommBufferFull:              "Communication buffer full",
	ErrCommUSBBusError:             "USB bus error",
	ErrSessionNotOpen:              "Session not open",
	ErrInvalidTransactionID:        "Invalid transaction",
	ErrIncompleteTransfer:          "Incomplete transfer",
	ErrSessionAlreadyOpen:          "Session already open",
	ErrTakePictureAFNG:             "Autofocus failed",
	ErrTakePictureReserved:         "Shooting reserved",
	ErrTakePictureMirrorUpNG:       "Mirror is up",
	ErrTakePictureSensorCleaningNG: "Sensor cleaning in progress",
	ErrTakePictureSilenceNG:        "Silent operation in progress",
	ErrTakePictureNoCardNG:         "No memory card",
	ErrTakePictureCardNG:           "Memory card error",
	ErrTakePictureCardProtectNG:    "Memory card write protected",
	ErrTakePictureMovieCropNG:      "Movie crop active",
	ErrTakePictureStroboChargeNG:   "Flash charging",
	ErrTakePictureNoLensNG:         "No lens attached",
	ErrLowBattery:                  "Low battery",
	ErrObjectNotReady:              "Object not ready",
}

// ErrorString translates a native code into readable text.
func ErrorString(code uint32) string {
	e := Error(code)
	if s, ok := errorText[e]; ok {
		return fmt.Sprintf("%s (0x%08X)", s, code)
	}
	return fmt.Sprintf("EDSDK error 0x%08X", code)
}

func (e Error) Error() string {
	return ErrorString(uint32(e))
}

// Code returns the raw native code.
func (e Error) Code() uint32 {
	return uint32(e)
}

// check turns a native return value into a Go error.
func check(code uint32) error {
	if code == uint32(ErrOK) {
		return nil
	}
	return Error(code)
}
