package recorder

import "time"

const (
	tickInterval       = 100 * time.Millisecond
	silenceWarnAfter   = 8 * time.Second
	silenceAutoStopDur = 30 * time.Second
	speechMinRatio     = 0.10
	speechClearRatio   = 0.25 // hysteresis
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice for 8s
	SilenceWarnClear              // speech resumed after a warning
	SilenceRepeat                 // repeat warning every 8s while locked
	SilenceAutoStop               // 30s of silence while locked
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "warn"
	case SilenceWarnClear:
		return "clear"
	case SilenceRepeat:
		return "repeat"
	case SilenceAutoStop:
		return "auto_stop"
	default:
		return "none"
	}
}

// silenceMonitor tracks speech over a sliding window of ticks. Repeat
// warnings and auto-stop only apply while isLocked reports true; a held
// recording ends when the finger lifts anyway.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	isLocked func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastWarn    int
}

func newSilenceMonitor(isLocked func() bool) *silenceMonitor {
	warnAt := int(silenceWarnAfter / tickInterval)
	windowSz := int(silenceAutoStopDur / tickInterval)
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		isLocked: isLocked,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) Warned() bool { return m.warned }

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	if !m.isLocked() {
		return SilenceNone
	}

	// auto-stop wins over repeat
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return SilenceAutoStop
	}

	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}
