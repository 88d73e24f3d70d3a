//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	initOnce sync.Once

	// Playback state, read from the audio callback
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initPlayback() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx = nil
	}
}

// Init opens the playback device ahead of the first tone.
func Init() {
	initOnce.Do(initPlayback)
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	buf := playBuf.Load()
	if buf == nil {
		clear(out[:want])
		return
	}

	pos := playPos.Load()
	n := min(want, uint32(len(*buf))-pos)
	copy(out[:n], (*buf)[pos:pos+n])
	clear(out[n:want])
	playPos.Store(pos + n)
	if pos+n >= uint32(len(*buf)) {
		playBuf.Store(nil)
	}
}

func toBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func play(samples []int16) {
	initOnce.Do(initPlayback)
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}

	_ = device.Stop()
	buf := toBytes(samples)
	playPos.Store(0)
	playBuf.Store(&buf)

	if err := device.Start(); err != nil {
		// device can go stale across sleep/wake; rebuild once
		device.Uninit()
		if err := initDevice(); err != nil {
			playBuf.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playBuf.Store(nil)
		}
	}
}
