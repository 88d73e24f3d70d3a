//go:build linux

package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMonitor(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"alsa_input.usb-Blue_Yeti-00.analog-stereo", false},
		{"alsa_output.pci-0000_00_1f.3.analog-stereo.monitor", true},
		{"bluez_input.AA_BB_CC_DD_EE_FF.0", false},
		{"monitor-mic", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isMonitor(tt.id), tt.id)
	}
}

func TestPulseWriteConvertsAndReusesBuffer(t *testing.T) {
	c := &pulseCapture{}
	n, err := c.write([]int16{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, 2, n, "writes without a callback are consumed")

	var got []int16
	var frames uint32
	c.SetCallback(func(data []byte, fc uint32) {
		frames += fc
		for i := 0; i+1 < len(data); i += 2 {
			got = append(got, int16(binary.LittleEndian.Uint16(data[i:])))
		}
	})
	_, err = c.write([]int16{1, -1, 32767})
	assert.NoError(t, err)
	_, err = c.write([]int16{-32768})
	assert.NoError(t, err)

	assert.Equal(t, []int16{1, -1, 32767, -32768}, got)
	assert.Equal(t, uint32(4), frames)
	assert.Equal(t, 6, cap(c.scratch))
}
