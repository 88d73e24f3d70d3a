// Package gesture turns a press/drag/release stream into voice memo
// recording states.
//
// The Controller owns a single State and is driven by Process for gesture
// samples and by Stop, Send, Discard and Cancel for actions that do not come
// from the gesture itself. Every call returns a Result carrying the event
// emitted by that step; the owner reacts to those events (start capture,
// send the memo, and so on). The controller does no I/O and is not safe for
// concurrent use.
package gesture

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidGestureSequence is returned when a press begins while a
	// recording or draft is still open. It means the caller lost track of
	// the session lifecycle.
	ErrInvalidGestureSequence = errors.New("gesture began while a session is open")

	// ErrInvalidAction is returned when an external action does not apply
	// to the current state.
	ErrInvalidAction = errors.New("action not valid in current state")
)

type State int

const (
	Idle State = iota
	Held
	Locked
	Draft
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Held:
		return "held"
	case Locked:
		return "locked"
	case Draft:
		return "draft"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Phase int

const (
	Began Phase = iota
	Changed
	Ended
	Cancelled
	Failed
)

func (p Phase) String() string {
	switch p {
	case Began:
		return "began"
	case Changed:
		return "changed"
	case Ended:
		return "ended"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Event is the notification emitted by a single step.
type Event int

const (
	EventNone Event = iota
	EventStart
	EventLock
	EventCancel
	EventComplete
	EventInterrupt
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventStart:
		return "start"
	case EventLock:
		return "lock"
	case EventCancel:
		return "cancel"
	case EventComplete:
		return "complete"
	case EventInterrupt:
		return "interrupt"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Point is a position in the host's coordinate space.
type Point struct {
	X, Y float64
}

type Sample struct {
	Phase Phase
	Pos   Point
}

type Result struct {
	State          State
	CancelProgress float64
	LockProgress   float64
	Event          Event

	// Debounced marks a Cancel emitted for a press that landed inside the
	// double-tap window after a send.
	Debounced bool

	// Draft is the draft reference for Send and Discard out of Draft.
	Draft string
}

type Config struct {
	LockThreshold   float64
	LockRange       float64
	CancelRange     float64
	DoubleTapWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockThreshold:   20,
		LockRange:       80,
		CancelRange:     100,
		DoubleTapWindow: 2 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.LockThreshold < 0 {
		return fmt.Errorf("lock threshold must not be negative, got %v", c.LockThreshold)
	}
	if c.LockRange <= 0 {
		return fmt.Errorf("lock range must be positive, got %v", c.LockRange)
	}
	if c.CancelRange <= 0 {
		return fmt.Errorf("cancel range must be positive, got %v", c.CancelRange)
	}
	if c.DoubleTapWindow < 0 {
		return fmt.Errorf("double tap window must not be negative, got %v", c.DoubleTapWindow)
	}
	return nil
}

// LockDistance is the vertical displacement at which a held recording locks.
func (c Config) LockDistance() float64 {
	return c.LockThreshold + c.LockRange
}

type Controller struct {
	cfg Config
	now func() time.Time

	state    State
	start    Point
	draft    string
	lastSend time.Time

	// suppressing is set while the rest of a debounced press is ignored.
	suppressing bool
}

type Option func(*Controller)

// WithClock replaces time.Now for the double-tap window.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(cfg Config, opts ...Option) *Controller {
	c := &Controller{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Config() Config { return c.cfg }

// DraftRef returns the reference supplied to Stop while in Draft.
func (c *Controller) DraftRef() string { return c.draft }

func (c *Controller) Process(s Sample) (Result, error) {
	if s.Phase == Began {
		return c.begin(s.Pos)
	}

	if c.suppressing {
		if s.Phase != Changed {
			c.suppressing = false
		}
		return c.result(EventNone), nil
	}

	switch c.state {
	case Held:
		return c.processHeld(s), nil
	case Locked:
		// A locked recording no longer depends on contact.
		return c.result(EventNone), nil
	}
	return c.result(EventNone), nil
}

func (c *Controller) begin(pos Point) (Result, error) {
	if c.state != Idle {
		return c.result(EventNone), fmt.Errorf("%w (state %s)", ErrInvalidGestureSequence, c.state)
	}
	c.suppressing = false
	if !c.lastSend.IsZero() && c.now().Sub(c.lastSend) < c.cfg.DoubleTapWindow {
		c.suppressing = true
		r := c.result(EventCancel)
		r.Debounced = true
		return r, nil
	}
	c.start = pos
	c.state = Held
	return c.result(EventStart), nil
}

func (c *Controller) processHeld(s Sample) Result {
	switch s.Phase {
	case Ended:
		c.completed()
		return c.result(EventComplete)
	case Cancelled, Failed:
		c.state = Idle
		return c.result(EventInterrupt)
	case Changed:
	default:
		return c.result(EventNone)
	}

	h := math.Abs(s.Pos.X - c.start.X)
	v := math.Abs(s.Pos.Y - c.start.Y)
	lock := c.lockProgress(v)
	cancel := clamp01(h / c.cfg.CancelRange)

	lockHit := lock >= 1
	cancelHit := cancel >= 1
	switch {
	case lockHit && (!cancelHit || v > h):
		c.state = Locked
		return Result{State: Locked, LockProgress: 1, Event: EventLock}
	case cancelHit:
		c.state = Idle
		return Result{State: Idle, CancelProgress: 1, LockProgress: lock, Event: EventCancel}
	}
	return Result{State: Held, CancelProgress: cancel, LockProgress: lock}
}

func (c *Controller) lockProgress(v float64) float64 {
	return clamp01((v - c.cfg.LockThreshold) / c.cfg.LockRange)
}

// Stop moves a locked recording into Draft. ref identifies the recorded
// artifact in the caller's draft store.
func (c *Controller) Stop(ref string) (Result, error) {
	if c.state != Locked {
		return c.result(EventNone), c.invalid("stop")
	}
	if ref == "" {
		return c.result(EventNone), fmt.Errorf("stop: empty draft reference")
	}
	c.state = Draft
	c.draft = ref
	return c.result(EventNone), nil
}

// Send completes a draft, or a locked recording without review.
func (c *Controller) Send() (Result, error) {
	switch c.state {
	case Draft, Locked:
		ref := c.draft
		c.completed()
		r := c.result(EventComplete)
		r.Draft = ref
		return r, nil
	}
	return c.result(EventNone), c.invalid("send")
}

func (c *Controller) Discard() (Result, error) {
	if c.state != Draft {
		return c.result(EventNone), c.invalid("discard")
	}
	ref := c.draft
	c.state = Idle
	c.draft = ""
	r := c.result(EventNone)
	r.Draft = ref
	return r, nil
}

// Cancel abandons a held or locked recording. It is the only way to cancel
// once locked.
func (c *Controller) Cancel() (Result, error) {
	switch c.state {
	case Held, Locked:
		c.state = Idle
		return c.result(EventCancel), nil
	}
	return c.result(EventNone), c.invalid("cancel")
}

func (c *Controller) completed() {
	c.state = Idle
	c.draft = ""
	c.lastSend = c.now()
}

func (c *Controller) invalid(action string) error {
	return fmt.Errorf("%s: %w (state %s)", action, ErrInvalidAction, c.state)
}

func (c *Controller) result(ev Event) Result {
	r := Result{State: c.state, Event: ev}
	if c.state == Locked || c.state == Draft {
		r.LockProgress = 1
	}
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
