package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavBytes(pcm []byte) []byte {
	h := make([]byte, 44)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], uint32(36+len(pcm)))
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], 1)
	binary.LittleEndian.PutUint16(h[22:], 1)
	binary.LittleEndian.PutUint32(h[24:], 16000)
	binary.LittleEndian.PutUint32(h[28:], 32000)
	binary.LittleEndian.PutUint16(h[32:], 2)
	binary.LittleEndian.PutUint16(h[34:], 16)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], uint32(len(pcm)))
	return append(h, pcm...)
}

func TestReadWAV(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, wavBytes(pcm), 0644))

	got, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	_, err := parseWAV([]byte("not a wave file at all"))
	assert.Error(t, err)

	bad := wavBytes([]byte{0, 0})
	binary.LittleEndian.PutUint16(bad[34:], 8)
	_, err = parseWAV(bad)
	assert.ErrorContains(t, err, "bit depth")
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS(make([]byte, 64)))

	loud := make([]byte, 4)
	binary.LittleEndian.PutUint16(loud[0:], uint16(16384))
	binary.LittleEndian.PutUint16(loud[2:], uint16(0xC000)) // -16384
	assert.InDelta(t, 0.5, RMS(loud), 1e-9)
}

func TestFakeCaptureInstant(t *testing.T) {
	pcm := make([]byte, fakeFrameSize*fakeBytesPerFrame*2+10)
	capture, err := NewFakeContext(pcm, false).NewCapture(nil, CaptureConfig{})
	require.NoError(t, err)

	var got int
	capture.SetCallback(func(data []byte, frames uint32) {
		got += len(data)
		assert.Equal(t, uint32(len(data)/2), frames)
	})
	require.NoError(t, capture.Start())
	capture.Stop()
	assert.Equal(t, len(pcm), got)
}

func TestFakeCaptureRealtimeStops(t *testing.T) {
	capture, err := NewFakeContext(nil, true).NewCapture(nil, CaptureConfig{})
	require.NoError(t, err)
	fc := capture.(*FakeCapture)

	var mu sync.Mutex
	chunks := 0
	fc.SetCallback(func([]byte, uint32) {
		mu.Lock()
		chunks++
		mu.Unlock()
	})
	require.NoError(t, fc.Start())
	assert.True(t, fc.Running())

	time.Sleep(200 * time.Millisecond)
	fc.Stop()
	assert.False(t, fc.Running())

	mu.Lock()
	n := chunks
	mu.Unlock()
	assert.Positive(t, n, "silence chunks expected in realtime mode")

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, chunks, "no callbacks after Stop")
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext(nil, false)

	dev, err := FindDevice(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, dev)

	dev, err = FindDevice(ctx, "fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", dev.Name)

	_, err = FindDevice(ctx, "missing")
	assert.Error(t, err)
}

func TestIsBluetooth(t *testing.T) {
	assert.True(t, IsBluetooth("AirPods Pro"))
	assert.False(t, IsBluetooth("Built-in Microphone"))
}
