package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	appName = "murmur"

	diagFileName  = "diagnostics_log.txt"
	memoFileName  = "memo_log.txt"
	crashFileName = "crash_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	memoFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

// ResolveDir picks the log directory: flag, then MURMUR_LOG_PATH, then the
// OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absPath(flagPath)
	}
	if envPath := os.Getenv("MURMUR_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// InitCrashLog routes fatal runtime output to crash_log.txt.
func InitCrashLog() {
	f, err := os.OpenFile(filepath.Join(dir, crashFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	memoFile, err = os.OpenFile(filepath.Join(dir, memoFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if memoFile != nil {
		memoFile.Close()
		memoFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Gesture records one controller step that emitted an event.
func Gesture(input, state, event string, cancel, lock float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("input", input).
		Str("state", state).
		Str("event", event).
		Float64("cancel", cancel).
		Float64("lock", lock).
		Msg("gesture")
}

func DraftSaved(id, reason string, duration time.Duration, sizeKB float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("reason", reason).
		Float64("audio_s", duration.Seconds()).
		Float64("size_kb", sizeKB).
		Msg("draft_saved")
}

type MemoMetrics struct {
	ID        string
	Path      string
	Format    string
	AudioS    float64
	RawKB     float64
	EncodedKB float64
	EncodeMs  float64
	FromDraft bool
}

// MemoSent logs a structured diagnostics line and appends the memo to the
// memo journal.
func MemoSent(m MemoMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", m.ID).
		Str("format", m.Format).
		Bool("from_draft", m.FromDraft).
		Float64("audio_s", m.AudioS).
		Float64("raw_kb", m.RawKB).
		Float64("encoded_kb", m.EncodedKB).
		Float64("encode_ms", m.EncodeMs).
		Msg("memo_sent")

	logMu.Lock()
	defer logMu.Unlock()
	if memoFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\t%.1fs\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, m.ID, m.AudioS, m.Path)
	memoFile.WriteString(line)
}

func SessionStart(source, format string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(sent, drafts int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sent", sent).
		Int("drafts", drafts).
		Msg("session_end")
}
