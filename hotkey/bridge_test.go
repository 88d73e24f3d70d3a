package hotkey

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"murmur/gesture"
	"murmur/recorder"
)

const testLockDistance = 100

func startBridge(t *testing.T, longPress time.Duration, busy *atomic.Bool) (*FakeHotkey, <-chan recorder.Input) {
	t.Helper()
	fk := NewFake()
	out := make(chan recorder.Input, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	b := NewBridge(fk, longPress, testLockDistance, busy.Load, out)
	go func() {
		defer close(done)
		b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return fk, out
}

func next(t *testing.T, out <-chan recorder.Input) recorder.Input {
	t.Helper()
	select {
	case in := <-out:
		return in
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for input")
		return recorder.Input{}
	}
}

func expectSample(t *testing.T, out <-chan recorder.Input, phase gesture.Phase, y float64) {
	t.Helper()
	in := next(t, out)
	if in.Command != recorder.NoCommand {
		t.Fatalf("got command %s, want %s sample", in.Command, phase)
	}
	if in.Sample.Phase != phase || in.Sample.Pos.Y != y {
		t.Fatalf("got %s at y=%v, want %s at y=%v", in.Sample.Phase, in.Sample.Pos.Y, phase, y)
	}
	if in.Source != "hotkey" {
		t.Errorf("source = %q", in.Source)
	}
}

func expectNothing(t *testing.T, out <-chan recorder.Input) {
	t.Helper()
	select {
	case in := <-out:
		t.Fatalf("unexpected input %+v", in)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridgeLongPressHolds(t *testing.T) {
	var busy atomic.Bool
	threshold := 50 * time.Millisecond
	fk, out := startBridge(t, threshold, &busy)

	fk.SimKeydown()
	expectSample(t, out, gesture.Began, 0)

	time.Sleep(threshold + 20*time.Millisecond)
	expectNothing(t, out)

	fk.SimKeyup()
	expectSample(t, out, gesture.Ended, 0)
}

func TestBridgeShortTapLocks(t *testing.T) {
	var busy atomic.Bool
	fk, out := startBridge(t, 200*time.Millisecond, &busy)

	fk.SimKeydown()
	expectSample(t, out, gesture.Began, 0)
	fk.SimKeyup()
	expectSample(t, out, gesture.Changed, testLockDistance)
	expectSample(t, out, gesture.Ended, testLockDistance)
}

func TestBridgeToggleWhileBusy(t *testing.T) {
	var busy atomic.Bool
	busy.Store(true)
	fk, out := startBridge(t, 50*time.Millisecond, &busy)

	fk.SimKeydown()
	in := next(t, out)
	if in.Command != recorder.Toggle {
		t.Fatalf("got %+v, want toggle", in)
	}
	fk.SimKeyup()
	expectNothing(t, out)
}

func TestBridgeMultipleCycles(t *testing.T) {
	var busy atomic.Bool
	threshold := 50 * time.Millisecond
	fk, out := startBridge(t, threshold, &busy)

	// tap locks
	fk.SimKeydown()
	expectSample(t, out, gesture.Began, 0)
	fk.SimKeyup()
	expectSample(t, out, gesture.Changed, testLockDistance)
	expectSample(t, out, gesture.Ended, testLockDistance)

	// locked: the next two presses toggle
	busy.Store(true)
	for i := 0; i < 2; i++ {
		fk.SimKeydown()
		if in := next(t, out); in.Command != recorder.Toggle {
			t.Fatalf("press %d: got %+v, want toggle", i, in)
		}
		fk.SimKeyup()
	}

	// idle again: hold
	busy.Store(false)
	time.Sleep(20 * time.Millisecond)
	fk.SimKeydown()
	expectSample(t, out, gesture.Began, 0)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	expectSample(t, out, gesture.Ended, 0)
}

func TestBridgeStopsOnCancel(t *testing.T) {
	fk := NewFake()
	out := make(chan recorder.Input)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- NewBridge(fk, time.Second, testLockDistance, func() bool { return false }, out).Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if err != context.Canceled {
			t.Fatalf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestFakeRegistration(t *testing.T) {
	fk := NewFake()
	if err := fk.Register(); err != nil {
		t.Fatal(err)
	}
	if !fk.Registered() {
		t.Fatal("expected registered")
	}
	fk.Unregister()
	if fk.Registered() {
		t.Fatal("expected unregistered")
	}
}
