package edsdk

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		code uint32
		want string
	}{
		{0x81, "Camera busy (0x00000081)"},
		{0x2003, "Session not open (0x00002003)"},
		{0x8D01, "Autofocus failed (0x00008D01)"},
		{0xA101, "Low battery (0x0000A101)"},
		{0x12345, "EDSDK error 0x00012345"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorString(tt.code))
		})
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check(0))

	err := check(uint32(ErrCommDisconnected))
	wrapped := fmt.Errorf("send command: %w", err)

	var code Error
	if assert.True(t, errors.As(wrapped, &code)) {
		assert.Equal(t, uint32(0xC1), code.Code())
	}
	assert.ErrorIs(t, wrapped, ErrCommDisconnected)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "DirItemRequestTransfer", ObjectEventDirItemRequestTransfer.String())
	assert.Equal(t, "ObjectEvent(0x2FF)", ObjectEvent(0x2FF).String())
	assert.Equal(t, "Shutdown", StateEventShutdown.String())
}

func TestCString(t *testing.T) {
	var raw rawDirectoryItemInfo
	copy(raw.FileName[:], "IMG_0001.JPG")
	raw.Size = 42

	info := raw.info()
	assert.Equal(t, "IMG_0001.JPG", info.FileName)
	assert.Equal(t, uint64(42), info.Size)
	assert.False(t, info.IsFolder)
}
