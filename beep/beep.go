// Package beep plays short feedback tones for recording transitions.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

// Disable silences every tone, for tests and headless replay.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Lock: rising two-tone
	lockLowFreq  = 900
	lockHighFreq = 1400
	lockVolume   = 0.45
	lockDecay    = 50

	// Send: medium pitch, slightly longer
	sendFreq   = 900
	sendVolume = 0.5
	sendDecay  = 40

	// Cancel: low pitch double-beep
	cancelFreq   = 350
	cancelVolume = 0.6
	cancelDecay  = 30
)

type Tone int

const (
	ToneStart Tone = iota
	ToneLock
	ToneSend
	ToneCancel
)

var (
	tones     map[Tone][]int16
	tonesOnce sync.Once
)

func buildTones() {
	lock := generateTick(lockLowFreq, 0.06, lockVolume, lockDecay)
	lock = append(lock, generateTick(lockHighFreq, 0.08, lockVolume, lockDecay)...)
	tones = map[Tone][]int16{
		ToneStart:  generateTick(startFreq, 0.2, startVolume, startDecay),
		ToneLock:   lock,
		ToneSend:   generateTick(sendFreq, 0.2, sendVolume, sendDecay),
		ToneCancel: generateDoubleBeep(cancelFreq, 0.08, 0.05, cancelVolume, cancelDecay),
	}
}

// Samples returns the mono 44.1kHz PCM for t.
func Samples(t Tone) []int16 {
	tonesOnce.Do(buildTones)
	return tones[t]
}

func generateTick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// Play plays t asynchronously. It never blocks the caller.
func Play(t Tone) {
	if !Enabled() {
		return
	}
	go play(Samples(t))
}
