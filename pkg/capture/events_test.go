package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-system/go-tether/pkg/edsdk"
)

func TestShutdownDuringIdlePump(t *testing.T) {
	lost := make(chan Device, 1)
	m, f := newSession(t, WithDisconnectHandler(func(d Device) { lost <- d }))

	f.queueShutdown()
	require.True(t, m.PumpEvents())

	select {
	case d := <-lost:
		assert.Equal(t, "Canon EOS R6", d.Description)
	default:
		t.Fatal("disconnect handler not called")
	}
	assert.Equal(t, []string{"CloseSession"}, f.log())
	assert.Equal(t, 1, f.releasedCount(2000))
	assert.False(t, m.IsConnected())
	assert.False(t, m.Status().Connected)
}

func TestShutdownOutsidePump(t *testing.T) {
	lost := make(chan Device, 1)
	m, f := newSession(t, WithDisconnectHandler(func(d Device) { lost <- d }))

	assert.Equal(t, edsdk.ErrOK, m.handleStateEvent(edsdk.StateEventShutdown, 0))

	require.Len(t, lost, 1)
	assert.False(t, m.shutdownPending.Load(), "torn down immediately")
	assert.Equal(t, []string{"CloseSession"}, f.log())
}

func TestShutdownFailsPendingCapture(t *testing.T) {
	m, f := newSession(t)
	f.setShoot(cmdTake, nil)

	done := make(chan CaptureResult, 1)
	go func() { done <- m.TakePicture() }()
	require.Eventually(t, func() bool { return f.pumpCount() > 0 }, time.Second, time.Millisecond)

	start := time.Now()
	f.queueShutdown()

	select {
	case res := <-done:
		assert.Equal(t, CaptureResult{Error: "camera disconnected"}, res)
		assert.Less(t, time.Since(start), 250*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("capture did not return after shutdown")
	}

	assert.Equal(t, "no camera connected", m.TakePicture().Error)
}

func TestShutdownWhileRecording(t *testing.T) {
	m, f := newSession(t)
	startRecording(t, m, f)

	f.queueShutdown()
	require.True(t, m.PumpEvents())

	assert.False(t, m.IsRecording())
	_, err := m.StopRecordingWait(t.Context())
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestShutdownBeforeSessionCall(t *testing.T) {
	m, f := newSession(t)
	m.shutdownPending.Store(true)

	_, err := m.GetProperty(edsdk.PropBatteryLevel)
	assert.ErrorIs(t, err, ErrNoDeviceConnected)
	assert.Equal(t, []string{"CloseSession"}, f.log())
}

func TestWillSoonShutDownKeepsSession(t *testing.T) {
	m, f := newSession(t)

	assert.Equal(t, edsdk.ErrOK, m.handleStateEvent(edsdk.StateEventWillSoonShutDown, 0))
	assert.True(t, m.IsConnected())
	assert.Empty(t, f.log())
}

func TestUnknownObjectEventReleased(t *testing.T) {
	m, f := newSession(t)

	f.queueObject(edsdk.ObjectEvent(0x0000020C))
	require.True(t, m.PumpEvents())

	assert.Empty(t, f.log())
	assert.Equal(t, 1, f.releasedCount(5001))
}

func TestIsMovieFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"MVI_0001.MOV", true},
		{"MVI_0001.mp4", true},
		{"A001C002.CRM", true},
		{"clip.avi", true},
		{"IMG_0001.JPG", false},
		{"IMG_0001.CR3", false},
		{"MOV", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMovieFile(tt.name))
		})
	}
}
