package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"murmur/audio"
	"murmur/beep"
	"murmur/config"
	"murmur/doctor"
	"murmur/draft"
	"murmur/encoder"
	"murmur/gesture"
	"murmur/log"
	"murmur/recorder"
	"murmur/replay"
	"murmur/shutdown"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Drive the recorder from a gesture script and print each result",
		ArgsUsage: "<script>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "wav", Usage: "Feed audio from WAV `FILE` instead of silence"},
			&cli.BoolFlag{Name: "realtime", Usage: "Feed audio at real-time pace"},
			&cli.StringFlag{Name: "format", Usage: "Audio `FORMAT`: flac or wav"},
		},
		Action: runReplay,
	}
}

func runReplay(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: murmur replay <script> [--wav file]")
	}
	beep.Disable()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	steps, err := replay.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing script: %w", err)
	}

	var actx *audio.FakeContext
	if wav := c.String("wav"); wav != "" {
		actx, err = audio.NewFakeContextFromWAV(wav, c.Bool("realtime"))
		if err != nil {
			return fmt.Errorf("loading wav: %w", err)
		}
	} else {
		// one second of silence so that held gestures clear the minimum duration
		actx = audio.NewFakeContext(make([]byte, encoder.SampleRate*2), c.Bool("realtime"))
	}

	d, err := openStorage(cfg)
	if err != nil {
		return err
	}

	sess := recorder.New(gesture.New(cfg.GestureConfig()), sessionConfig(cfg, nil), recorder.Deps{
		Audio:  actx,
		Store:  d.store,
		Sender: d.sender,
	})
	log.SessionStart("replay", cfg.Recording.Format)

	ctx, stop := shutdown.Context(c.Context)
	defer stop()
	err = replay.Run(ctx, steps, sess, os.Stdout)
	sess.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func draftsCommand() *cli.Command {
	return &cli.Command{
		Name:  "drafts",
		Usage: "Manage recordings saved for review",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved drafts, newest first",
				Action: listDrafts,
			},
			{
				Name:      "send",
				Usage:     "Send a saved draft to the outbox",
				ArgsUsage: "<id>",
				Action:    sendDraft,
			},
			{
				Name:      "discard",
				Usage:     "Delete a saved draft",
				ArgsUsage: "<id>",
				Action:    discardDraft,
			},
		},
	}
}

func openStore(c *cli.Context) (*config.Config, *draft.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	store, err := draft.NewStore(cfg.Storage.DraftsDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func listDrafts(c *cli.Context) error {
	_, store, err := openStore(c)
	if err != nil {
		return err
	}
	drafts, err := store.List()
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		fmt.Println("No drafts.")
		return nil
	}
	fmt.Println(draftTable(drafts))
	return nil
}

func draftTable(drafts []draft.Draft) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("ID", "CREATED", "LENGTH", "FORMAT", "REASON", "SIZE")
	for _, d := range drafts {
		t.Row(
			d.ID,
			d.CreatedAt.Local().Format("2006-01-02 15:04"),
			d.Duration.Round(100*time.Millisecond).String(),
			d.Format,
			string(d.Reason),
			fmt.Sprintf("%.1f KB", float64(d.SizeBytes)/1024),
		)
	}
	return t.Render()
}

func draftID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("usage: murmur drafts %s <id>", c.Command.Name)
	}
	return c.Args().First(), nil
}

func sendDraft(c *cli.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d, err := openStorage(cfg)
	if err != nil {
		return err
	}
	receipt, err := recorder.SendStored(c.Context, d.store, d.sender, id)
	if err != nil {
		return err
	}
	fmt.Printf("Sent %s -> %s\n", id, receipt.Path)
	if receipt.Copied {
		fmt.Println("Path copied to clipboard")
	}
	return nil
}

func discardDraft(c *cli.Context) error {
	id, err := draftID(c)
	if err != nil {
		return err
	}
	_, store, err := openStore(c)
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	fmt.Printf("Discarded %s\n", id)
	return nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a commented default configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output `FILE` (default: user config dir)",
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("output")
					if path == "" {
						paths := config.DefaultPaths()
						path = paths[len(paths)-1]
					}
					if err := config.WriteDefault(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"), nil)
					if err != nil {
						return err
					}
					out, err := cfg.TOML()
					if err != nil {
						return err
					}
					if cfg.Source != "" {
						fmt.Printf("# loaded from %s\n", cfg.Source)
					} else {
						fmt.Println("# built-in defaults")
					}
					fmt.Print(string(out))
					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("invalid configuration: %w", err)
					}
					return nil
				},
			},
		},
	}
}

func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Run system diagnostics (hotkey, microphone, storage, clipboard)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "device", Usage: "Check named microphone `DEVICE`"},
			&cli.BoolFlag{Name: "interactive", Usage: "Wait for a real hotkey press"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx, stop := shutdown.Context(c.Context)
			defer stop()
			code := doctor.Run(ctx, os.Stdout, doctor.Options{
				Device:      cfg.Recording.Device,
				DraftsDir:   cfg.Storage.DraftsDir,
				OutboxDir:   cfg.Storage.OutboxDir,
				Interactive: c.Bool("interactive"),
			})
			if code != 0 {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}
