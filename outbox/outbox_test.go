package outbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, copyPath bool) (*DirSender, *[]string) {
	t.Helper()
	s, err := NewDirSender(filepath.Join(t.TempDir(), "outbox"), copyPath)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) }
	var copied []string
	s.copy = func(text string) error {
		copied = append(copied, text)
		return nil
	}
	return s, &copied
}

func TestSendWritesFile(t *testing.T) {
	s, copied := newTestSender(t, false)

	r, err := s.Send(context.Background(), Memo{ID: "m1", Format: "flac", Audio: []byte("audio")})
	require.NoError(t, err)
	assert.Equal(t, "m1", r.ID)
	assert.Equal(t, filepath.Join(s.Dir, "20260504-103000-m1.flac"), r.Path)
	assert.False(t, r.Copied)
	assert.Empty(t, *copied)

	data, err := os.ReadFile(r.Path)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"), "leftover %s", e.Name())
	}
}

func TestSendAssignsIDAndCopiesPath(t *testing.T) {
	s, copied := newTestSender(t, true)

	r, err := s.Send(context.Background(), Memo{Format: "wav", Audio: []byte("x")})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.True(t, r.Copied)
	assert.Equal(t, []string{r.Path}, *copied)
}

func TestSendClipboardFailureIsNotFatal(t *testing.T) {
	s, _ := newTestSender(t, true)
	s.copy = func(string) error { return errors.New("no xclip") }

	r, err := s.Send(context.Background(), Memo{Format: "wav", Audio: []byte("x")})
	require.NoError(t, err)
	assert.False(t, r.Copied)
	assert.FileExists(t, r.Path)
}

func TestSendRejects(t *testing.T) {
	s, _ := newTestSender(t, false)

	_, err := s.Send(context.Background(), Memo{Format: "wav"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Send(ctx, Memo{Format: "wav", Audio: []byte("x")})
	assert.ErrorIs(t, err, context.Canceled)
}
