package main

import (
	"strings"
	"testing"
	"time"

	"murmur/audio"
	"murmur/draft"
)

func TestCommandsRegistered(t *testing.T) {
	app := newApp()
	for _, name := range []string{"record", "replay", "drafts", "config", "doctor"} {
		if app.Command(name) == nil {
			t.Errorf("missing command %q", name)
		}
	}
	drafts := app.Command("drafts")
	for _, name := range []string{"list", "send", "discard"} {
		if drafts.Command(name) == nil {
			t.Errorf("missing drafts subcommand %q", name)
		}
	}
}

func TestDraftTable(t *testing.T) {
	out := draftTable([]draft.Draft{
		{ID: "aaaa-1", CreatedAt: time.Now(), Duration: 3200 * time.Millisecond, Format: "flac", Reason: draft.ReasonReview, SizeBytes: 2048},
		{ID: "bbbb-2", CreatedAt: time.Now(), Duration: time.Second, Format: "wav", Reason: draft.ReasonSilence, SizeBytes: 512},
	})
	for _, want := range []string{"ID", "aaaa-1", "3.2s", "review", "2.0 KB", "bbbb-2", "silence"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestDeviceLineText(t *testing.T) {
	tests := []struct {
		dev  *audio.DeviceInfo
		want string
	}{
		{nil, "mic: system default"},
		{&audio.DeviceInfo{Name: "USB Mic"}, "mic: USB Mic"},
		{&audio.DeviceInfo{Name: "AirPods Pro"}, "mic: AirPods Pro (BT!)"},
	}
	for _, tt := range tests {
		if got := deviceLineText(tt.dev); got != tt.want {
			t.Errorf("deviceLineText = %q, want %q", got, tt.want)
		}
	}
}
