//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MURMUR_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MURMUR_TEST_BIN not set; build murmur and point MURMUR_TEST_BIN at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// generateToneWAV writes a 16 kHz mono 440 Hz tone.
func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}
	return os.WriteFile(path, buf, 0644)
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type env struct {
	dir    string
	logDir string
	drafts string
	outbox string
	wav    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:    dir,
		logDir: filepath.Join(dir, "logs"),
		drafts: filepath.Join(dir, "drafts"),
		outbox: filepath.Join(dir, "outbox"),
		wav:    filepath.Join(dir, "tone.wav"),
	}
	if err := generateToneWAV(e.wav, 16000, 1.0); err != nil {
		t.Fatalf("failed to generate tone.wav: %v", err)
	}
	return e
}

func (e *env) command(args ...string) *exec.Cmd {
	cmd := exec.Command(testBinary, append([]string{"--logpath", e.logDir}, args...)...)
	cmd.Dir = e.dir
	cmd.Env = append(os.Environ(),
		"MURMUR_STORAGE__DRAFTS_DIR="+e.drafts,
		"MURMUR_STORAGE__OUTBOX_DIR="+e.outbox,
		"MURMUR_FEEDBACK__BEEP=false",
	)
	return cmd
}

func (e *env) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.command(args...).CombinedOutput()
	if err != nil {
		t.Fatalf("murmur %v exited with error: %v\noutput: %s", args, err, out)
	}
	return string(out)
}

func (e *env) replay(t *testing.T, script string, args ...string) string {
	t.Helper()
	path := filepath.Join(e.dir, "script.txt")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}
	return e.run(t, append([]string{"replay", "--wav", e.wav, path}, args...)...)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func files(t *testing.T, dir, suffix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestHoldAndRelease(t *testing.T) {
	e := newEnv(t)
	out := e.replay(t, lines("BEGAN 0 0", "SLEEP 200", "END", "QUIT"))

	if !strings.Contains(out, "event=complete") {
		t.Errorf("expected a complete event:\n%s", out)
	}
	if got := files(t, e.outbox, ".flac"); len(got) != 1 {
		t.Fatalf("outbox has %v, want one flac memo", got)
	}
	if !strings.Contains(readLog(t, e.logDir, "memo_log.txt"), ".flac") {
		t.Error("memo_log.txt should list the memo path")
	}
	diag := readLog(t, e.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "memo_sent", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("expected %s in diagnostics", want)
		}
	}
}

func TestWavFormat(t *testing.T) {
	e := newEnv(t)
	e.replay(t, lines("BEGAN 0 0", "END"), "--format", "wav")
	if got := files(t, e.outbox, ".wav"); len(got) != 1 {
		t.Fatalf("outbox has %v, want one wav memo", got)
	}
}

func TestSwipeCancel(t *testing.T) {
	e := newEnv(t)
	out := e.replay(t, lines("BEGAN 0 0", "MOVE 150 0", "END", "QUIT"))
	if !strings.Contains(out, "event=cancel") {
		t.Errorf("expected a cancel event:\n%s", out)
	}
	if got := files(t, e.outbox, ".flac"); len(got) != 0 {
		t.Errorf("cancelled recording was sent: %v", got)
	}
}

func TestLockReviewSend(t *testing.T) {
	e := newEnv(t)
	out := e.replay(t, lines("BEGAN 0 0", "MOVE 0 -150", "END", "STOP", "SEND", "QUIT"))
	if !strings.Contains(out, "event=lock") || !strings.Contains(out, "draft=") {
		t.Errorf("expected lock then a send carrying the draft:\n%s", out)
	}
	if got := files(t, e.outbox, ".flac"); len(got) != 1 {
		t.Errorf("outbox has %v, want one memo", got)
	}
	if got := files(t, e.drafts, ".yaml"); len(got) != 0 {
		t.Errorf("sent draft left behind: %v", got)
	}
}

func TestDraftSurvivesAndSendsLater(t *testing.T) {
	e := newEnv(t)
	e.replay(t, lines("BEGAN 0 0", "MOVE 0 -150", "STOP", "QUIT"))

	metas := files(t, e.drafts, ".yaml")
	if len(metas) != 1 {
		t.Fatalf("drafts has %v, want one", metas)
	}
	id := strings.TrimSuffix(metas[0], ".yaml")

	if list := e.run(t, "drafts", "list"); !strings.Contains(list, id) {
		t.Errorf("drafts list missing %s:\n%s", id, list)
	}
	e.run(t, "drafts", "send", id)
	if got := files(t, e.outbox, ".flac"); len(got) != 1 {
		t.Errorf("outbox has %v, want one memo", got)
	}
	if got := files(t, e.drafts, ".yaml"); len(got) != 0 {
		t.Errorf("draft not removed after send: %v", got)
	}
}

func TestQuitWhileLockedKeepsDraft(t *testing.T) {
	e := newEnv(t)
	e.replay(t, lines("BEGAN 0 0", "MOVE 0 -150", "QUIT"))
	if got := files(t, e.drafts, ".yaml"); len(got) != 1 {
		t.Errorf("drafts has %v, want the interrupted recording", got)
	}
}

func TestBadScript(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "bad.txt")
	if err := os.WriteFile(path, []byte("BEGAN 0 0\nJUMP\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := e.command("replay", path).CombinedOutput()
	if err == nil {
		t.Fatal("expected a non-zero exit")
	}
	if !strings.Contains(string(out), "line 2") {
		t.Errorf("error should name the line:\n%s", out)
	}
}

func TestConfigShow(t *testing.T) {
	e := newEnv(t)
	out := e.run(t, "config", "show")
	if !strings.Contains(out, e.drafts) {
		t.Errorf("config show should reflect env overrides:\n%s", out)
	}
}
