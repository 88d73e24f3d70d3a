// Package outbox delivers finished voice memos.
package outbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"murmur/clipboard"
	"murmur/log"
)

type Memo struct {
	ID        string
	Format    string
	Audio     []byte
	Duration  time.Duration
	RawBytes  int
	EncodeDur time.Duration
	FromDraft bool
}

type Receipt struct {
	ID     string
	Path   string
	SentAt time.Time
	Copied bool
}

type Sender interface {
	Send(ctx context.Context, m Memo) (Receipt, error)
}

// DirSender delivers memos by writing them into an outbox directory, where
// a sync client or another program picks them up.
type DirSender struct {
	Dir string
	// CopyPath copies the delivered file path to the clipboard.
	CopyPath bool

	now  func() time.Time
	copy func(string) error
}

func NewDirSender(dir string, copyPath bool) (*DirSender, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating outbox dir: %w", err)
	}
	return &DirSender{Dir: dir, CopyPath: copyPath, now: time.Now, copy: clipboard.Copy}, nil
}

func (s *DirSender) Send(ctx context.Context, m Memo) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if len(m.Audio) == 0 {
		return Receipt{}, fmt.Errorf("memo has no audio")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	now := s.now()
	name := fmt.Sprintf("%s-%s.%s", now.Format("20060102-150405"), m.ID, m.Format)
	path := filepath.Join(s.Dir, name)

	tmp := path + ".part"
	if err := os.WriteFile(tmp, m.Audio, 0644); err != nil {
		return Receipt{}, fmt.Errorf("writing memo: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Receipt{}, fmt.Errorf("publishing memo: %w", err)
	}

	r := Receipt{ID: m.ID, Path: path, SentAt: now}
	if s.CopyPath {
		if err := s.copy(path); err != nil {
			log.Warnf("clipboard copy failed: %v", err)
		} else {
			r.Copied = true
		}
	}

	log.MemoSent(log.MemoMetrics{
		ID:        m.ID,
		Path:      path,
		Format:    m.Format,
		AudioS:    m.Duration.Seconds(),
		RawKB:     float64(m.RawBytes) / 1024,
		EncodedKB: float64(len(m.Audio)) / 1024,
		EncodeMs:  float64(m.EncodeDur.Microseconds()) / 1000,
		FromDraft: m.FromDraft,
	})
	return r, nil
}
