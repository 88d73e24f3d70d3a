//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("murmur"))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

// isMonitor reports whether a pulse source records a sink's output rather
// than a microphone.
func isMonitor(id string) bool {
	return strings.HasSuffix(id, ".monitor")
}

// Devices lists microphones. Monitor sources are left out: a memo recorded
// from one would capture the speakers.
func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		if isMonitor(s.ID()) {
			continue
		}
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

// NewCapture resolves the source up front so a missing microphone fails
// before the first press instead of recording from another one.
func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	var (
		source *pulse.Source
		err    error
	)
	if device != nil {
		source, err = p.client.SourceByID(device.ID)
	} else {
		source, err = p.client.DefaultSource()
	}
	if err != nil {
		return nil, fmt.Errorf("pulse source: %w", err)
	}
	return &pulseCapture{client: p.client, source: source, rate: int(config.SampleRate)}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

// pulseCapture keeps one record stream per microphone. Start and Stop
// uncork and cork it, so every memo after the first starts without a new
// stream handshake.
type pulseCapture struct {
	client   *pulse.Client
	source   *pulse.Source
	rate     int
	callback atomic.Pointer[DataCallback]

	// scratch is reused across writes; callbacks copy what they keep
	scratch []byte

	mu     sync.Mutex
	stream *pulse.RecordStream
}

func (c *pulseCapture) write(buf []int16) (int, error) {
	cb := c.callback.Load()
	if cb == nil || len(buf) == 0 {
		return len(buf), nil
	}
	if cap(c.scratch) < len(buf)*2 {
		c.scratch = make([]byte, len(buf)*2)
	}
	data := c.scratch[:len(buf)*2]
	for i, s := range buf {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	(*cb)(data, uint32(len(buf)))
	return len(buf), nil
}

func (c *pulseCapture) open() (*pulse.RecordStream, error) {
	stream, err := c.client.NewRecord(pulse.Int16Writer(c.write),
		pulse.RecordMono,
		pulse.RecordSampleRate(c.rate),
		pulse.RecordLatency(0.05),
		pulse.RecordSource(c.source),
		pulse.RecordMediaName("voice memo"),
		// record at unity gain whatever the source volume is set to
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			r.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}
	return stream, nil
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil || c.stream.Closed() {
		stream, err := c.open()
		if err != nil {
			return err
		}
		c.stream = stream
	}
	c.stream.Start()
	return c.stream.Error()
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Stop()
	}
}

func (c *pulseCapture) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
		c.stream = nil
	}
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.source == nil {
		return "system default"
	}
	return c.source.Name()
}
