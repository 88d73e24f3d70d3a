// Package doctor runs system diagnostics for murmur.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/encoder"
	"murmur/hotkey"
)

type Options struct {
	Device    string
	DraftsDir string
	OutboxDir string
	// Interactive waits for a real hotkey press instead of only probing
	// the input devices.
	Interactive bool
	CaptureFor  time.Duration

	// nil means the platform implementation
	Audio  audio.Context
	Hotkey hotkey.Hotkey
}

type check struct {
	name string
	run  func(ctx context.Context, w io.Writer, o *Options) bool
}

var checks = []check{
	{"Hotkey detection", checkHotkey},
	{"Microphone capture", checkMic},
	{"Storage", checkStorage},
	{"Clipboard", checkClipboard},
}

// Run executes every check and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, w io.Writer, o Options) int {
	if o.CaptureFor <= 0 {
		o.CaptureFor = 2 * time.Second
	}

	fmt.Fprintln(w, "murmur doctor - system diagnostics")
	fmt.Fprintln(w, "==================================")

	allPass := true
	for i, c := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInterrupted")
			return 1
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(ctx, w, &o) {
			allPass = false
		}
	}

	fmt.Fprintln(w)
	if allPass {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintln(w, "Some checks failed. See details above.")
	return 1
}

func checkHotkey(ctx context.Context, w io.Writer, o *Options) bool {
	if o.Hotkey == nil {
		msg, err := hotkey.Diagnose()
		if err != nil {
			fmt.Fprintf(w, "  FAIL: %v\n", err)
			return false
		}
		fmt.Fprintf(w, "  %s\n", msg)
		if !o.Interactive {
			fmt.Fprintln(w, "  PASS: hotkey backend available")
			return true
		}
		o.Hotkey = hotkey.New()
	}

	hk := o.Hotkey
	if err := hk.Register(); err != nil {
		fmt.Fprintf(w, "  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	fmt.Fprintf(w, "Press %s...\n", hotkey.Combo)
	select {
	case <-hk.Keydown():
		fmt.Fprintln(w, "  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-ctx.Done():
		return false
	case <-time.After(10 * time.Second):
		fmt.Fprintln(w, "  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMic(ctx context.Context, w io.Writer, o *Options) bool {
	actx := o.Audio
	if actx == nil {
		var err error
		actx, err = audio.NewContext()
		if err != nil {
			fmt.Fprintf(w, "  FAIL: cannot connect to audio: %v\n", err)
			return false
		}
		defer actx.Close()
	}

	device, err := audio.FindDevice(actx, o.Device)
	if err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	name := "system default"
	if device != nil {
		name = device.Name
	}
	fmt.Fprintf(w, "  Using device: %s\n", name)
	if audio.IsBluetooth(name) {
		fmt.Fprintln(w, "  Warning: bluetooth microphones switch to a low quality codec while recording")
	}

	fmt.Fprintf(w, "  Speak for %s...\n", o.CaptureFor)
	pcm, err := capture(ctx, actx, device, o.CaptureFor)
	if err != nil {
		fmt.Fprintf(w, "  FAIL: capture: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Fprintln(w, "  FAIL: no audio received")
		return false
	}

	frames := uint64(len(pcm) / 2)
	level := audio.RMS(pcm)
	fmt.Fprintf(w, "  Captured %s, level %.3f\n", encoder.Duration(frames).Round(time.Millisecond), level)
	if level < 0.005 {
		fmt.Fprintln(w, "  Warning: very low level, is the microphone muted?")
	}

	enc, err := encoder.EncodePCM(encoder.FormatFlac, encoder.Samples(pcm))
	if err != nil {
		fmt.Fprintf(w, "  FAIL: flac encode: %v\n", err)
		return false
	}
	if _, err := encoder.ProbeFlac(enc.Bytes()); err != nil {
		fmt.Fprintf(w, "  FAIL: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "  PASS: %d bytes PCM -> %d bytes flac\n", len(pcm), len(enc.Bytes()))
	return true
}

func capture(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, d time.Duration) ([]byte, error) {
	dev, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	var (
		mu  sync.Mutex
		pcm []byte
	)
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		mu.Unlock()
	})
	if err := dev.Start(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
	dev.Stop()
	dev.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	return pcm, ctx.Err()
}

func checkStorage(_ context.Context, w io.Writer, o *Options) bool {
	ok := true
	for _, dir := range []struct{ name, path string }{
		{"drafts", o.DraftsDir},
		{"outbox", o.OutboxDir},
	} {
		if err := writable(dir.path); err != nil {
			fmt.Fprintf(w, "  FAIL: %s dir %s: %v\n", dir.name, dir.path, err)
			ok = false
			continue
		}
		fmt.Fprintf(w, "  PASS: %s dir %s is writable\n", dir.name, dir.path)
	}
	return ok
}

func writable(dir string) error {
	if dir == "" {
		return fmt.Errorf("not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}

// checkClipboard only warns; copy_path is optional.
func checkClipboard(_ context.Context, w io.Writer, _ *Options) bool {
	if !clipboard.Available() {
		fmt.Fprintln(w, "  Warning: no clipboard tool found (install xclip, xsel or wl-clipboard for copy_path)")
		return true
	}
	fmt.Fprintln(w, "  PASS: clipboard backend available")
	return true
}
