package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatFlac = "flac"
	FormatWav  = "wav"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	EncodeTime() time.Duration
}

func New(format string) (Encoder, error) {
	switch format {
	case FormatFlac:
		return NewFlac()
	case FormatWav:
		return NewWav(), nil
	}
	return nil, fmt.Errorf("unknown audio format %q (use flac or wav)", format)
}

// ValidFormat reports whether New accepts format.
func ValidFormat(format string) bool {
	return format == FormatFlac || format == FormatWav
}

// EncodePCM encodes a whole recording in BlockSize blocks and returns the
// closed encoder.
func EncodePCM(format string, samples []int16) (Encoder, error) {
	enc, err := New(format)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing %s encoder: %w", format, err)
	}
	return enc, nil
}

// Samples decodes little-endian 16-bit PCM.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Duration returns the play time of n mono frames.
func Duration(frames uint64) time.Duration {
	return time.Duration(float64(frames) / float64(SampleRate) * float64(time.Second))
}
