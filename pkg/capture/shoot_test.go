package capture

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/video-system/go-tether/pkg/edsdk"
)

func TestTakePictureNotInitialized(t *testing.T) {
	m, f := newTestManager(t)

	res := m.TakePicture()
	assert.Equal(t, CaptureResult{Error: "SDK not initialized"}, res)
	assert.Empty(t, f.log())
}

func TestTakePictureNoSession(t *testing.T) {
	m, f := newTestManager(t)
	require.NoError(t, m.Initialize(""))
	_, err := m.Connect(0)
	require.NoError(t, err)

	res := m.TakePicture()
	assert.Equal(t, "session not open", res.Error)
	assert.Zero(t, f.count(cmdTake))
}

func TestTakePicture(t *testing.T) {
	m, f := newSession(t)

	res := m.TakePicture()
	require.True(t, res.Success, res.Error)
	assert.Equal(t, testJPEG, res.Image)
	assert.False(t, res.Pending)

	want := []string{
		"SetObjectEventHandler",
		"SetProperty SaveTo=2",
		"SetCapacity",
		cmdTake,
		"DirectoryItemInfo IMG_0001.JPG",
		"Download IMG_0001.JPG",
		"DownloadComplete IMG_0001.JPG",
	}
	if diff := cmp.Diff(want, f.log()); diff != "" {
		t.Errorf("call log mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, f.releasedCount(5001), "directory item released")
	assert.Equal(t, 1, f.releasedCount(5002), "memory stream released")
}

func TestTakePictureRegistersObjectHandlerOnce(t *testing.T) {
	m, f := newSession(t)

	for range 3 {
		require.True(t, m.TakePicture().Success)
	}
	assert.Equal(t, 1, f.count("SetObjectEventHandler"))
	assert.Equal(t, 3, f.count(cmdTake))
}

func TestTakePictureConcurrentRejected(t *testing.T) {
	m, f := newSession(t)
	f.setShoot(cmdTake, nil)

	first := make(chan CaptureResult, 1)
	go func() { first <- m.TakePicture() }()

	require.Eventually(t, func() bool { return f.pumpCount() > 0 }, time.Second, time.Millisecond)

	second := m.TakePicture()
	assert.Equal(t, CaptureResult{Error: "capture already in progress"}, second)

	f.queueTransfer("IMG_0001.JPG", testJPEG)
	res := <-first
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, 1, f.count(cmdTake), "rejected call never reached the camera")
}

func TestTakePictureCommandFailure(t *testing.T) {
	m, f := newSession(t)
	f.failNext(cmdTake, edsdk.ErrDeviceBusy)

	res := m.TakePicture()
	assert.False(t, res.Success)
	assert.Equal(t, "take picture failed: Camera busy (0x00000081)", res.Error)
	assert.Zero(t, f.pumpCount(), "no wait after a rejected command")

	res = m.TakePicture()
	assert.True(t, res.Success, "guard released after failure: %s", res.Error)
}

func TestTakePictureAutofocusFailure(t *testing.T) {
	m, f := newSession(t)
	f.fail(cmdTake, edsdk.ErrTakePictureAFNG)

	res := m.TakePicture()
	assert.Contains(t, res.Error, "Autofocus failed")
}

func TestTakePictureTimeout(t *testing.T) {
	m, f := newSession(t)
	f.setShoot(cmdTake, nil)

	start := time.Now()
	res := m.TakePicture()
	assert.Equal(t, CaptureResult{Error: "capture timeout"}, res)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

	// A late image is not attributed to anyone.
	f.resetLog()
	f.queueTransfer("IMG_0001.JPG", testJPEG)
	require.True(t, m.PumpEvents())
	assert.Equal(t, []string{"DownloadCancel IMG_0001.JPG"}, f.log())

	res = m.PollCaptureResult()
	assert.Equal(t, "no capture in progress", res.Error)
}

func TestTakePictureDownloadFailure(t *testing.T) {
	m, f := newSession(t)
	f.failNext("Download IMG_0001.JPG", edsdk.ErrCommDisconnected)

	res := m.TakePicture()
	assert.False(t, res.Success)
	assert.Equal(t, "download failed: Camera disconnected (0x000000C1)", res.Error)
	assert.Equal(t, 1, f.count("DownloadCancel IMG_0001.JPG"))
}

func TestTakePictureEmptyImage(t *testing.T) {
	m, f := newSession(t)
	f.setShoot(cmdTake, []byte{})

	res := m.TakePicture()
	assert.Equal(t, CaptureResult{Error: "capture complete but no data"}, res)
}

func TestTakePictureGuardReleasedOnPanic(t *testing.T) {
	m, f := newSession(t)
	f.panicPumps = 1

	assert.Panics(t, func() { m.TakePicture() })
	assert.False(t, m.Status().Capturing)

	res := m.TakePicture()
	assert.True(t, res.Success, res.Error)
}

func TestTakePictureImageProcessor(t *testing.T) {
	small := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	m, _ := newSession(t, WithImageProcessor(func(image []byte) ([]byte, error) {
		assert.Equal(t, testJPEG, image)
		return small, nil
	}))

	res := m.TakePicture()
	assert.Equal(t, small, res.Image)
}

func TestTakePictureImageProcessorErrorKeepsOriginal(t *testing.T) {
	m, _ := newSession(t, WithImageProcessor(func([]byte) ([]byte, error) {
		return nil, errors.New("corrupt jpeg")
	}))

	res := m.TakePicture()
	assert.True(t, res.Success)
	assert.Equal(t, testJPEG, res.Image)
}

func TestSendShutterAndPoll(t *testing.T) {
	m, f := newSession(t)

	assert.Equal(t, "no capture in progress", m.PollCaptureResult().Error)

	res := m.SendShutter()
	assert.Equal(t, CaptureResult{Success: true, Pending: true}, res)
	assert.Equal(t, 1, f.count(cmdTake))

	assert.Equal(t, CaptureResult{Pending: true}, m.PollCaptureResult())

	require.True(t, m.PumpEvents())
	res = m.PollCaptureResult()
	require.True(t, res.Success, res.Error)
	assert.Equal(t, testJPEG, res.Image)

	assert.Equal(t, "no capture in progress", m.PollCaptureResult().Error)
}

// A capture started while a shutter result is still unpolled takes over the
// record: the first image to arrive is returned and the later one cancelled.
func TestTakePictureTakesOverPendingShutter(t *testing.T) {
	m, f := newSession(t)

	require.True(t, m.SendShutter().Pending)
	res := m.TakePicture()
	require.True(t, res.Success, res.Error)
	assert.Equal(t, testJPEG, res.Image)

	assert.Equal(t, 2, f.count(cmdTake))
	assert.Equal(t, 1, f.count("DownloadCancel IMG_0001.JPG"))
	assert.Equal(t, "no capture in progress", m.PollCaptureResult().Error)
}

func TestSendShutterFailure(t *testing.T) {
	m, f := newSession(t)
	f.failNext(cmdTake, edsdk.ErrDeviceBusy)

	res := m.SendShutter()
	assert.Equal(t, "take picture failed: Camera busy (0x00000081)", res.Error)
	assert.Equal(t, "no capture in progress", m.PollCaptureResult().Error)
}

func TestPollWhileCapturing(t *testing.T) {
	m, _ := newSession(t)
	m.capturing.Store(true)
	defer m.capturing.Store(false)

	assert.Equal(t, CaptureResult{Pending: true}, m.PollCaptureResult())
	assert.Equal(t, CaptureResult{Error: "capture already in progress"}, m.SendShutter())
}

func TestPumpEventsSkips(t *testing.T) {
	m, f := newTestManager(t)
	assert.False(t, m.PumpEvents(), "uninitialized")

	require.NoError(t, m.Initialize(""))
	assert.True(t, m.PumpEvents())
	assert.Equal(t, 1, f.pumpCount())

	m.capturing.Store(true)
	assert.False(t, m.PumpEvents(), "capture owns pumping")
	m.capturing.Store(false)

	m.mu.Lock()
	assert.False(t, m.PumpEvents(), "device lock held")
	m.mu.Unlock()

	assert.Equal(t, 1, f.pumpCount())
}

func TestUnsolicitedTransferCancelled(t *testing.T) {
	m, f := newSession(t)

	f.queueTransfer("IMG_0042.JPG", testJPEG)
	require.True(t, m.PumpEvents())

	assert.Equal(t, []string{"DownloadCancel IMG_0042.JPG"}, f.log())
	assert.Equal(t, 1, f.releasedCount(5001))
}
