package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("MURMUR_LOG_PATH", "/tmp/murmur-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/murmur-env-log" {
		t.Errorf("got %q, want /tmp/murmur-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("MURMUR_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, appName) {
		t.Errorf("default dir %q does not mention %s", got, appName)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagFileName, memoFileName} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestMemoSentJournal(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	MemoSent(MemoMetrics{ID: "abc123", Path: "/tmp/outbox/abc123.flac", AudioS: 2.5})

	data, err := os.ReadFile(filepath.Join(tmp, memoFileName))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "abc123") || !strings.Contains(line, "2.5s") {
		t.Errorf("memo journal missing entry, got: %q", line)
	}
	if strings.Count(line, "\t") != 4 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}

	diag, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(diag), "memo_sent") {
		t.Errorf("diagnostics missing memo_sent, got: %q", diag)
	}
}

func TestGestureAndDraftLines(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Gesture("changed", "locked", "lock", 0, 1)
	DraftSaved("d1", "review", 1500*time.Millisecond, 12.5)

	diag, err := os.ReadFile(filepath.Join(tmp, diagFileName))
	if err != nil {
		t.Fatal(err)
	}
	out := string(diag)
	for _, want := range []string{"gesture", "event=lock", "draft_saved", "reason=review"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics missing %q in %q", want, out)
		}
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	setupLogDir(t)
	// must not panic or create files
	Info("x")
	Warnf("y %d", 1)
	MemoSent(MemoMetrics{ID: "z"})
	if _, err := os.Stat(filepath.Join(Dir(), diagFileName)); err == nil {
		t.Error("diagnostics file created before Init")
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close()
}
