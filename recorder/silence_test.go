package recorder

import "testing"

func heldMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return false })
}

func lockedMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return true })
}

func feedN(m *silenceMonitor, speech bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %s", i, ev)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected warn at tick 80, got %s", ev)
	}
	if !m.Warned() {
		t.Fatal("monitor should report warned")
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := heldMonitor()
	feedN(m, false, 80)

	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected warn clear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestLockedRepeatWarning(t *testing.T) {
	m := lockedMonitor()
	feedN(m, false, 80)
	for i := 0; i < 100; i++ {
		if m.Tick(false) == SilenceRepeat {
			return
		}
	}
	t.Fatal("expected repeat warning while locked")
}

func TestAutoStopPriorityOverRepeat(t *testing.T) {
	m := lockedMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoStop {
			if i != 299 {
				t.Fatalf("auto-stop at tick %d, want 299", i)
			}
			return
		}
		if i >= 299 && ev == SilenceRepeat {
			t.Fatalf("repeat fired at tick %d instead of auto-stop", i)
		}
	}
	t.Fatal("expected auto-stop within 400 ticks")
}

func TestNoAutoStopWhileHeld(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceAutoStop, SilenceRepeat:
			t.Fatalf("unexpected locked-only event while held at tick %d", i)
		}
	}
}

func TestAutoStopPreventedBySpeech(t *testing.T) {
	m := lockedMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == SilenceAutoStop {
			t.Fatalf("unexpected auto-stop with speech at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := heldMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if m.Tick(false) == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 warn while held, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := heldMonitor()
	feedN(m, false, 80)

	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10%, below the clear threshold
		if m.Tick(speech) == SilenceWarnClear {
			t.Fatalf("warning cleared by sparse noise at tick %d", i)
		}
	}
}
