// Package draft stores recorded voice memos that are waiting to be sent or
// discarded. Each draft is an audio file plus a YAML sidecar in one
// directory.
package draft

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("draft not found")

type Reason string

const (
	ReasonReview      Reason = "review"
	ReasonInterrupted Reason = "interrupted"
	ReasonSilence     Reason = "silence"
)

type Draft struct {
	ID        string        `yaml:"id"`
	CreatedAt time.Time     `yaml:"created_at"`
	Duration  time.Duration `yaml:"duration"`
	Format    string        `yaml:"format"`
	Reason    Reason        `yaml:"reason"`
	AudioFile string        `yaml:"audio_file"`
	SizeBytes int64         `yaml:"size_bytes"`
}

type Store struct {
	dir string
	now func() time.Time
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating drafts dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes audio and metadata for d. An empty ID or CreatedAt is filled
// in; the stored draft is returned.
func (s *Store) Save(d Draft, audio []byte) (Draft, error) {
	if d.Format == "" {
		return Draft{}, fmt.Errorf("draft format is required")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	} else if !validID(d.ID) {
		return Draft{}, fmt.Errorf("invalid draft id %q", d.ID)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}
	if d.Reason == "" {
		d.Reason = ReasonReview
	}
	d.AudioFile = d.ID + "." + d.Format
	d.SizeBytes = int64(len(audio))

	if err := writeAtomic(filepath.Join(s.dir, d.AudioFile), audio); err != nil {
		return Draft{}, fmt.Errorf("writing draft audio: %w", err)
	}
	meta, err := yaml.Marshal(d)
	if err != nil {
		return Draft{}, fmt.Errorf("encoding draft metadata: %w", err)
	}
	if err := writeAtomic(s.metaPath(d.ID), meta); err != nil {
		os.Remove(filepath.Join(s.dir, d.AudioFile))
		return Draft{}, fmt.Errorf("writing draft metadata: %w", err)
	}
	return d, nil
}

func (s *Store) Get(id string) (Draft, error) {
	if !validID(id) {
		return Draft{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(s.metaPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return Draft{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decoding draft %s: %w", id, err)
	}
	return d, nil
}

// Load returns the draft and its audio.
func (s *Store) Load(id string) (Draft, []byte, error) {
	d, err := s.Get(id)
	if err != nil {
		return Draft{}, nil, err
	}
	audio, err := os.ReadFile(s.AudioPath(d))
	if err != nil {
		return Draft{}, nil, fmt.Errorf("reading draft audio: %w", err)
	}
	return d, audio, nil
}

func (s *Store) AudioPath(d Draft) string {
	return filepath.Join(s.dir, d.AudioFile)
}

// List returns every draft, newest first. Unreadable sidecars are skipped.
func (s *Store) List() ([]Draft, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var drafts []Draft
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		d, err := s.Get(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}
		drafts = append(drafts, d)
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})
	return drafts, nil
}

func (s *Store) Delete(id string) error {
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.AudioPath(d)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing draft audio: %w", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("removing draft metadata: %w", err)
	}
	return nil
}

func (s *Store) metaPath(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

// validID keeps ids from escaping the store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`) && id == filepath.Base(id)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
