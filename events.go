package main

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"murmur/draft"
	"murmur/gesture"
	"murmur/log"
	"murmur/outbox"
)

// TUI message types
type GestureMsg struct{ Result gesture.Result }
type RecordingTickMsg struct{ Elapsed time.Duration }
type AudioLevelMsg struct{ Level float64 }
type SilenceWarningMsg struct{ Active bool }
type DraftReadyMsg struct{ Draft draft.Draft }
type MemoSentMsg struct{ Receipt outbox.Receipt }
type ErrorMsg struct{ Err error }
type DeviceLineMsg struct{ Text string }

// tuiSink forwards session events to the TUI. The session calls it with
// its lock held, so posting never blocks: meter updates are dropped when
// the queue is full and anything else is handed to a goroutine that gives
// up once the TUI has stopped.
type tuiSink struct {
	events chan tea.Msg
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func newTUISink() *tuiSink {
	return &tuiSink{events: make(chan tea.Msg, 256), done: make(chan struct{})}
}

// close drops any events still waiting for queue space and returns once
// their goroutines have exited.
func (s *tuiSink) close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *tuiSink) post(msg tea.Msg, droppable bool) {
	select {
	case s.events <- msg:
		return
	case <-s.done:
		return
	default:
	}
	if droppable {
		return
	}
	log.Warn("tui event queue full")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case s.events <- msg:
		case <-s.done:
			log.Warnf("tui stopped, dropping %T", msg)
		}
	}()
}

func (s *tuiSink) Gesture(r gesture.Result)   { s.post(GestureMsg{r}, false) }
func (s *tuiSink) Tick(elapsed time.Duration) { s.post(RecordingTickMsg{elapsed}, true) }
func (s *tuiSink) Level(rms float64)          { s.post(AudioLevelMsg{rms}, true) }
func (s *tuiSink) SilenceWarning(active bool) { s.post(SilenceWarningMsg{active}, false) }
func (s *tuiSink) DraftReady(d draft.Draft)   { s.post(DraftReadyMsg{d}, false) }
func (s *tuiSink) MemoSent(r outbox.Receipt)  { s.post(MemoSentMsg{r}, false) }
func (s *tuiSink) Error(err error)            { s.post(ErrorMsg{err}, false) }

// wait returns a command that delivers the next session event.
func (s *tuiSink) wait() tea.Cmd {
	return func() tea.Msg {
		return <-s.events
	}
}
