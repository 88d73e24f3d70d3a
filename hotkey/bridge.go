package hotkey

import (
	"context"
	"time"

	"murmur/gesture"
	"murmur/recorder"
)

const source = "hotkey"

// Bridge maps hotkey presses onto the gesture controller. A key has no
// position, so gestures are synthesized at the origin:
//
//   - hold longer than longPress: a held recording, sent on release
//   - short tap: a vertical drag to the lock distance, locking hands-free
//   - any press while a session is open: Toggle
type Bridge struct {
	hk        Hotkey
	longPress time.Duration
	lockDist  float64
	busy      func() bool
	out       chan<- recorder.Input
}

// NewBridge builds a Bridge. busy reports whether a recording or draft is
// open; lockDistance is the vertical drag that locks a recording.
func NewBridge(hk Hotkey, longPress time.Duration, lockDistance float64, busy func() bool, out chan<- recorder.Input) *Bridge {
	return &Bridge{hk: hk, longPress: longPress, lockDist: lockDistance, busy: busy, out: out}
}

// Run forwards presses until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.hk.Keydown():
		}

		if b.busy() {
			if !b.send(ctx, recorder.CommandInput(source, recorder.Toggle)) {
				return ctx.Err()
			}
			if !b.waitKeyup(ctx) {
				return ctx.Err()
			}
			continue
		}

		if !b.sample(ctx, gesture.Began, 0) {
			return ctx.Err()
		}

		timer := time.NewTimer(b.longPress)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if !b.waitKeyup(ctx) {
				return ctx.Err()
			}
			if !b.sample(ctx, gesture.Ended, 0) {
				return ctx.Err()
			}
		case <-b.hk.Keyup():
			timer.Stop()
			if !b.sample(ctx, gesture.Changed, b.lockDist) || !b.sample(ctx, gesture.Ended, b.lockDist) {
				return ctx.Err()
			}
		}
	}
}

func (b *Bridge) waitKeyup(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-b.hk.Keyup():
		return true
	}
}

func (b *Bridge) sample(ctx context.Context, p gesture.Phase, y float64) bool {
	return b.send(ctx, recorder.SampleInput(source, gesture.Sample{Phase: p, Pos: gesture.Point{Y: y}}))
}

func (b *Bridge) send(ctx context.Context, in recorder.Input) bool {
	select {
	case <-ctx.Done():
		return false
	case b.out <- in:
		return true
	}
}
