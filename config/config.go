package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"murmur/encoder"
	"murmur/gesture"
)

const (
	envPrefix       = "MURMUR_"
	defaultFileName = "murmur.toml"
)

// Config is the merged configuration: defaults, then the TOML file, then
// MURMUR_<SECTION>__<KEY> environment variables, then command line
// overrides.
type Config struct {
	Gesture struct {
		LockThreshold   float64       `koanf:"lock_threshold"`
		LockRange       float64       `koanf:"lock_range"`
		CancelRange     float64       `koanf:"cancel_range"`
		DoubleTapWindow time.Duration `koanf:"double_tap_window"`
	} `koanf:"gesture"`

	Recording struct {
		Format          string        `koanf:"format"`
		MinDuration     time.Duration `koanf:"min_duration"`
		KeepInterrupted bool          `koanf:"keep_interrupted"`
		Device          string        `koanf:"device"`
		LongPress       time.Duration `koanf:"longpress"`
	} `koanf:"recording"`

	Storage struct {
		DraftsDir string `koanf:"drafts_dir"`
		OutboxDir string `koanf:"outbox_dir"`
	} `koanf:"storage"`

	TUI struct {
		CellWidth  float64 `koanf:"cell_width"`
		CellHeight float64 `koanf:"cell_height"`
	} `koanf:"tui"`

	Feedback struct {
		Beep     bool `koanf:"beep"`
		CopyPath bool `koanf:"copy_path"`
	} `koanf:"feedback"`

	// Source is the config file that was loaded, empty when none was.
	Source string `koanf:"-"`

	k *koanf.Koanf
}

func defaults() map[string]interface{} {
	g := gesture.DefaultConfig()
	data := dataDir()
	return map[string]interface{}{
		"gesture.lock_threshold":    g.LockThreshold,
		"gesture.lock_range":        g.LockRange,
		"gesture.cancel_range":      g.CancelRange,
		"gesture.double_tap_window": g.DoubleTapWindow.String(),

		"recording.format":           encoder.FormatFlac,
		"recording.min_duration":     "100ms",
		"recording.keep_interrupted": true,
		"recording.device":           "",
		"recording.longpress":        "350ms",

		"storage.drafts_dir": filepath.Join(data, "drafts"),
		"storage.outbox_dir": filepath.Join(data, "outbox"),

		"tui.cell_width":  8.0,
		"tui.cell_height": 16.0,

		"feedback.beep":      true,
		"feedback.copy_path": false,
	}
}

// Load builds the configuration. An explicit path must exist; otherwise the
// default locations are tried in order and silently skipped when absent.
// overrides use dotted keys such as "recording.device".
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	var source string
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
		source = path
	} else {
		for _, p := range DefaultPaths() {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := k.Load(file.Provider(p), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", p, err)
			}
			source = p
			break
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("applying overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.Source = source
	cfg.k = k
	cfg.Storage.DraftsDir = expandHome(cfg.Storage.DraftsDir)
	cfg.Storage.OutboxDir = expandHome(cfg.Storage.OutboxDir)
	return &cfg, nil
}

// envKey maps MURMUR_RECORDING__MIN_DURATION to recording.min_duration.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func DefaultPaths() []string {
	paths := []string{defaultFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "murmur", defaultFileName))
	}
	return paths
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "murmur")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "murmur-data"
	}
	return filepath.Join(home, ".local", "share", "murmur")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

func (c *Config) GestureConfig() gesture.Config {
	return gesture.Config{
		LockThreshold:   c.Gesture.LockThreshold,
		LockRange:       c.Gesture.LockRange,
		CancelRange:     c.Gesture.CancelRange,
		DoubleTapWindow: c.Gesture.DoubleTapWindow,
	}
}

func (c *Config) Validate() error {
	var errs []error
	if err := c.GestureConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gesture: %w", err))
	}
	if !encoder.ValidFormat(c.Recording.Format) {
		errs = append(errs, fmt.Errorf("recording.format %q must be flac or wav", c.Recording.Format))
	}
	if c.Recording.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("recording.min_duration must not be negative"))
	}
	if c.Recording.LongPress <= 0 {
		errs = append(errs, fmt.Errorf("recording.longpress must be positive"))
	}
	if c.Storage.DraftsDir == "" || c.Storage.OutboxDir == "" {
		errs = append(errs, fmt.Errorf("storage.drafts_dir and storage.outbox_dir are required"))
	}
	if c.TUI.CellWidth <= 0 || c.TUI.CellHeight <= 0 {
		errs = append(errs, fmt.Errorf("tui.cell_width and tui.cell_height must be positive"))
	}
	return errors.Join(errs...)
}

// TOML renders the merged configuration.
func (c *Config) TOML() ([]byte, error) {
	if c.k == nil {
		return nil, fmt.Errorf("config was not loaded")
	}
	return c.k.Marshal(toml.Parser())
}

const sampleConfig = `# murmur configuration

[gesture]
# vertical drag (host units) before the lock indicator starts filling
lock_threshold = 20.0
# further vertical drag needed to lock
lock_range = 80.0
# horizontal drag that cancels a held recording
cancel_range = 100.0
# a press this soon after sending is treated as an accidental double tap
double_tap_window = "2s"

[recording]
format = "flac"          # flac or wav
min_duration = "100ms"   # shorter recordings are dropped
keep_interrupted = true  # save interrupted recordings as drafts
device = ""              # capture device name, empty for system default
longpress = "350ms"      # hotkey hold threshold

[storage]
drafts_dir = "~/.local/share/murmur/drafts"
outbox_dir = "~/.local/share/murmur/outbox"

[tui]
cell_width = 8.0
cell_height = 16.0

[feedback]
beep = true
copy_path = false
`

func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(sampleConfig), 0644)
}
