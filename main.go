package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/draft"
	"murmur/gesture"
	"murmur/hotkey"
	"murmur/log"
	"murmur/outbox"
	"murmur/recorder"
	"murmur/shutdown"
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "murmur",
		Usage:   "hold-to-talk voice memos from the terminal",
		Version: version,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./murmur.toml, then the user config dir)",
			},
			&cli.StringFlag{
				Name:  "logpath",
				Usage: "log directory `PATH` (default: OS-specific location, use ./ for current dir)",
			},
		}, recordFlags()...),
		Before: initLogging,
		After: func(*cli.Context) error {
			log.Close()
			return nil
		},
		Action: runRecord,
		Commands: []*cli.Command{
			recordCommand(),
			replayCommand(),
			draftsCommand(),
			configCommand(),
			doctorCommand(),
		},
	}
}

func run() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func initLogging(c *cli.Context) error {
	dir, err := log.ResolveDir(c.String("logpath"))
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	log.InitCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	return nil
}

// loadConfig merges the config file with command line overrides and
// validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	overrides := map[string]interface{}{}
	if c.IsSet("device") {
		overrides["recording.device"] = c.String("device")
	}
	if c.IsSet("format") {
		overrides["recording.format"] = c.String("format")
	}
	if c.IsSet("longpress") {
		overrides["recording.longpress"] = c.Duration("longpress")
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.Feedback.Beep {
		beep.Disable()
	}
	return cfg, nil
}

func recordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "device", Usage: "Use named microphone `DEVICE`"},
		&cli.BoolFlag{Name: "setup", Usage: "Select microphone device interactively"},
		&cli.BoolFlag{Name: "hotkey", Usage: "Also listen for the global " + hotkey.Combo + " hotkey"},
		&cli.StringFlag{Name: "format", Usage: "Audio `FORMAT`: flac or wav"},
		&cli.DurationFlag{Name: "longpress", Usage: "Hotkey hold threshold (e.g. 350ms)"},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:   "record",
		Usage:  "Record memos with mouse gestures in the terminal (default)",
		Flags:  recordFlags(),
		Action: runRecord,
	}
}

// deps are the collaborators shared by record and replay.
type deps struct {
	store  *draft.Store
	sender *outbox.DirSender
}

func openStorage(cfg *config.Config) (deps, error) {
	store, err := draft.NewStore(cfg.Storage.DraftsDir)
	if err != nil {
		return deps{}, err
	}
	sender, err := outbox.NewDirSender(cfg.Storage.OutboxDir, cfg.Feedback.CopyPath)
	if err != nil {
		return deps{}, err
	}
	return deps{store: store, sender: sender}, nil
}

func sessionConfig(cfg *config.Config, device *audio.DeviceInfo) recorder.Config {
	return recorder.Config{
		Format:          cfg.Recording.Format,
		MinDuration:     cfg.Recording.MinDuration,
		KeepInterrupted: cfg.Recording.KeepInterrupted,
		Device:          device,
	}
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func pickDevice(c *cli.Context, actx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name == "" && c.Bool("setup") {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			return nil, nil
		}
		return dev, nil
	}
	return audio.FindDevice(actx, name)
}

func runRecord(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := shutdown.Context(c.Context)
	defer stop()

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		return fmt.Errorf("initializing audio context: %w", err)
	}
	defer actx.Close()

	device, err := pickDevice(c, actx, cfg.Recording.Device)
	if err != nil {
		return err
	}

	d, err := openStorage(cfg)
	if err != nil {
		return err
	}

	if beep.Enabled() {
		go beep.Init()
	}

	sink := newTUISink()
	gcfg := cfg.GestureConfig()
	sess := recorder.New(gesture.New(gcfg), sessionConfig(cfg, device), recorder.Deps{
		Audio:  actx,
		Store:  d.store,
		Sender: d.sender,
		Sink:   sink,
	})
	inputs := make(chan recorder.Input, 64)

	useHotkey := c.Bool("hotkey")
	if useHotkey {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Errorf("hotkey register error: %v", err)
			return fmt.Errorf("registering hotkey: %w", err)
		}
		defer hk.Unregister()
		bridge := hotkey.NewBridge(hk, cfg.Recording.LongPress, gcfg.LockDistance(), sess.Busy, inputs)
		go bridge.Run(ctx)
	}

	log.SessionStart("tui", cfg.Recording.Format)
	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(ctx, inputs) }()

	p := NewTUIProgram(newTUIModel(inputs, sink, cfg.TUI.CellWidth, cfg.TUI.CellHeight, useHotkey))
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	go p.Send(DeviceLineMsg{Text: deviceLineText(device)})

	_, err = p.Run()
	if err != nil {
		log.Errorf("TUI error: %v", err)
	}
	stop()
	<-sessDone
	sink.close()

	sent, drafts := sess.Stats()
	if sent > 0 || drafts > 0 {
		fmt.Printf("%d memo(s) sent, %d draft(s) saved\n", sent, drafts)
	}
	return err
}
