// Package recorder turns gesture controller events into recordings: it
// drives audio capture, saves drafts and sends finished memos.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"murmur/audio"
	"murmur/beep"
	"murmur/draft"
	"murmur/encoder"
	"murmur/gesture"
	"murmur/log"
	"murmur/outbox"
)

// speechLevel is the RMS level above which a tick counts as speech.
const speechLevel = 0.02

type Command int

const (
	NoCommand Command = iota
	StopAndReview
	SendDraft
	DiscardDraft
	CancelRecording
	// Toggle is a single press while a session is open: it stops a locked
	// recording for review and sends a pending draft.
	Toggle
)

func (c Command) String() string {
	switch c {
	case StopAndReview:
		return "stop_and_review"
	case SendDraft:
		return "send_draft"
	case DiscardDraft:
		return "discard_draft"
	case CancelRecording:
		return "cancel_recording"
	case Toggle:
		return "toggle"
	default:
		return "none"
	}
}

// Input is a touch sample or, when Command is set, an external action.
type Input struct {
	Sample  gesture.Sample
	Command Command
	// Source names the input device for the log ("mouse", "hotkey", ...).
	Source string
}

func SampleInput(source string, s gesture.Sample) Input {
	return Input{Sample: s, Source: source}
}

func CommandInput(source string, c Command) Input {
	return Input{Command: c, Source: source}
}

// EventSink receives UI feedback. Methods are called with the session lock
// held; they must not block or call back into the Session.
type EventSink interface {
	Gesture(r gesture.Result)
	Tick(elapsed time.Duration)
	Level(rms float64)
	SilenceWarning(active bool)
	DraftReady(d draft.Draft)
	MemoSent(r outbox.Receipt)
	Error(err error)
}

type NopSink struct{}

func (NopSink) Gesture(gesture.Result)  {}
func (NopSink) Tick(time.Duration)      {}
func (NopSink) Level(float64)           {}
func (NopSink) SilenceWarning(bool)     {}
func (NopSink) DraftReady(draft.Draft)  {}
func (NopSink) MemoSent(outbox.Receipt) {}
func (NopSink) Error(error)             {}

type Config struct {
	Format string
	// MinDuration drops recordings shorter than this.
	MinDuration time.Duration
	// KeepInterrupted saves recordings cut short by the system as drafts.
	KeepInterrupted bool
	Device          *audio.DeviceInfo
}

type Deps struct {
	Audio  audio.Context
	Store  *draft.Store
	Sender outbox.Sender
	Sink   EventSink
}

type Session struct {
	mu   sync.Mutex
	ctrl *gesture.Controller
	cfg  Config
	deps Deps
	ctx  context.Context
	now  func() time.Time

	tickEvery time.Duration

	capture audio.CaptureDevice
	rec     *recording
	// pending is the audio of a locked recording whose capture stopped but
	// which could not be saved. It stays Locked until sent, saved or
	// cancelled.
	pending []byte

	sent   int
	drafts int
}

// recording is one capture from Start until it is sent, saved or dropped.
type recording struct {
	mu      sync.Mutex
	pcm     []byte
	metered int

	started time.Time
	silence *silenceMonitor
	stop    chan struct{}
}

func (r *recording) append(data []byte) {
	r.mu.Lock()
	r.pcm = append(r.pcm, data...)
	r.mu.Unlock()
}

// unmetered returns the PCM captured since the previous call.
func (r *recording) unmetered() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk := r.pcm[r.metered:]
	r.metered = len(r.pcm)
	return chunk
}

func (r *recording) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pcm
}

func New(ctrl *gesture.Controller, cfg Config, deps Deps) *Session {
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatFlac
	}
	return &Session{
		ctrl:      ctrl,
		cfg:       cfg,
		deps:      deps,
		ctx:       context.Background(),
		now:       time.Now,
		tickEvery: tickInterval,
	}
}

func (s *Session) State() gesture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// Busy reports whether a recording or draft is open.
func (s *Session) Busy() bool {
	return s.State() != gesture.Idle
}

// Run handles inputs until ctx is done or the channel closes, then closes
// the session.
func (s *Session) Run(ctx context.Context, inputs <-chan Input) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-inputs:
			if !ok {
				return nil
			}
			s.Handle(in)
		}
	}
}

// Handle processes one input. Errors are also reported to the sink.
func (s *Session) Handle(in Input) (gesture.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		r   gesture.Result
		err error
	)
	if in.Command == NoCommand {
		r, err = s.handleSample(in)
	} else {
		r, err = s.handleCommand(in)
	}
	if err != nil {
		if errors.Is(err, gesture.ErrInvalidGestureSequence) {
			log.Errorf("%s %s: %v", in.Source, describe(in), err)
		} else {
			log.Warnf("%s %s: %v", in.Source, describe(in), err)
		}
		s.deps.Sink.Error(err)
	}
	s.deps.Sink.Gesture(r)
	return r, err
}

func describe(in Input) string {
	if in.Command != NoCommand {
		return in.Command.String()
	}
	return in.Sample.Phase.String()
}

func (s *Session) handleSample(in Input) (gesture.Result, error) {
	r, err := s.ctrl.Process(in.Sample)
	if err != nil {
		return r, err
	}
	if r.Event != gesture.EventNone {
		log.Gesture(in.Source, r.State.String(), r.Event.String(), r.CancelProgress, r.LockProgress)
	}

	switch r.Event {
	case gesture.EventStart:
		if err := s.startRecording(); err != nil {
			cr, _ := s.ctrl.Cancel()
			return cr, fmt.Errorf("starting capture: %w", err)
		}
		beep.Play(beep.ToneStart)
	case gesture.EventLock:
		beep.Play(beep.ToneLock)
	case gesture.EventCancel:
		if r.Debounced {
			log.Info("double_tap_suppressed")
			return r, nil
		}
		s.dropRecording()
		beep.Play(beep.ToneCancel)
	case gesture.EventComplete:
		return r, s.sendRecording()
	case gesture.EventInterrupt:
		return r, s.interruptRecording()
	}
	return r, nil
}

func (s *Session) handleCommand(in Input) (gesture.Result, error) {
	cmd := in.Command
	if cmd == Toggle {
		switch s.ctrl.State() {
		case gesture.Locked:
			cmd = StopAndReview
		case gesture.Draft:
			cmd = SendDraft
		default:
			return s.current(), s.reject(cmd)
		}
	}

	var (
		r   gesture.Result
		err error
	)
	switch cmd {
	case StopAndReview:
		r, err = s.stopAndReview(draft.ReasonReview)
	case SendDraft:
		r, err = s.sendDraft()
	case DiscardDraft:
		r, err = s.discardDraft()
	case CancelRecording:
		r, err = s.ctrl.Cancel()
		if err == nil {
			s.dropRecording()
			beep.Play(beep.ToneCancel)
		}
	default:
		return s.current(), fmt.Errorf("unknown command %d", cmd)
	}
	if err == nil {
		log.Gesture(in.Source, r.State.String(), cmd.String(), r.CancelProgress, r.LockProgress)
	}
	return r, err
}

// current reports the current state without an event.
func (s *Session) current() gesture.Result {
	r := gesture.Result{State: s.ctrl.State()}
	if r.State == gesture.Locked || r.State == gesture.Draft {
		r.LockProgress = 1
	}
	return r
}

func (s *Session) reject(cmd Command) error {
	return fmt.Errorf("%s: %w (state %s)", cmd, gesture.ErrInvalidAction, s.ctrl.State())
}

func (s *Session) stopAndReview(reason draft.Reason) (gesture.Result, error) {
	if s.ctrl.State() != gesture.Locked {
		return s.current(), s.reject(StopAndReview)
	}
	pcm := s.stopRecording()
	if s.tooShort(pcm) {
		r, err := s.ctrl.Cancel()
		beep.Play(beep.ToneCancel)
		if err != nil {
			return r, err
		}
		log.Info("recording too short, dropped")
		return r, nil
	}

	d, err := s.saveDraft(pcm, reason)
	if err != nil {
		// stay Locked holding the audio; stop, send or cancel can follow
		s.pending = pcm
		return s.current(), err
	}
	r, err := s.ctrl.Stop(d.ID)
	if err != nil {
		return r, err
	}
	s.deps.Sink.DraftReady(d)
	return r, nil
}

func (s *Session) sendDraft() (gesture.Result, error) {
	switch s.ctrl.State() {
	case gesture.Locked:
		pcm := s.stopRecording()
		if s.tooShort(pcm) {
			r, err := s.ctrl.Cancel()
			beep.Play(beep.ToneCancel)
			return r, err
		}
		if err := s.encodeAndSend(pcm, ""); err != nil {
			return s.keepUnsent(pcm, err)
		}
		return s.ctrl.Send()

	case gesture.Draft:
		ref := s.ctrl.DraftRef()
		if err := s.sendStoredDraft(ref); err != nil {
			// stay in Draft so the user can retry or discard
			return s.current(), err
		}
		return s.ctrl.Send()
	}
	return s.current(), s.reject(SendDraft)
}

// keepUnsent saves a locked recording whose send failed and moves it into
// Draft, where the send can be retried. If the draft cannot be saved either,
// the audio is held and the session stays Locked.
func (s *Session) keepUnsent(pcm []byte, sendErr error) (gesture.Result, error) {
	d, err := s.saveDraft(pcm, draft.ReasonInterrupted)
	if err != nil {
		s.pending = pcm
		return s.current(), errors.Join(sendErr, err)
	}
	r, err := s.ctrl.Stop(d.ID)
	if err != nil {
		return r, errors.Join(sendErr, err)
	}
	s.deps.Sink.DraftReady(d)
	return r, sendErr
}

func (s *Session) discardDraft() (gesture.Result, error) {
	if s.ctrl.State() != gesture.Draft {
		return s.current(), s.reject(DiscardDraft)
	}
	ref := s.ctrl.DraftRef()
	if err := s.deps.Store.Delete(ref); err != nil {
		if !errors.Is(err, draft.ErrNotFound) {
			return s.current(), fmt.Errorf("discarding draft %s: %w", ref, err)
		}
		log.Warnf("discarding draft %s: %v", ref, err)
	}
	r, err := s.ctrl.Discard()
	if err == nil {
		beep.Play(beep.ToneCancel)
	}
	return r, err
}

func (s *Session) startRecording() error {
	if s.capture == nil {
		if s.deps.Audio == nil {
			return fmt.Errorf("no audio context")
		}
		c, err := s.deps.Audio.NewCapture(s.cfg.Device, audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		})
		if err != nil {
			return err
		}
		s.capture = c
	}

	rec := &recording{started: s.now(), stop: make(chan struct{})}
	rec.silence = newSilenceMonitor(func() bool { return s.ctrl.State() == gesture.Locked })
	s.rec = rec

	s.capture.SetCallback(func(data []byte, _ uint32) { rec.append(data) })
	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		s.rec = nil
		return err
	}
	go s.tickLoop(rec)
	return nil
}

// stopRecording stops capture and returns the recorded PCM, or the pending
// audio of a locked recording that is no longer capturing.
func (s *Session) stopRecording() []byte {
	rec := s.rec
	if rec == nil {
		pcm := s.pending
		s.pending = nil
		return pcm
	}
	s.rec = nil
	close(rec.stop)
	s.capture.Stop()
	s.capture.ClearCallback()
	if rec.silence.Warned() {
		s.deps.Sink.SilenceWarning(false)
	}
	return rec.bytes()
}

func (s *Session) dropRecording() {
	s.stopRecording()
}

func (s *Session) tooShort(pcm []byte) bool {
	frames := uint64(len(pcm) / 2)
	return frames == 0 || encoder.Duration(frames) < s.cfg.MinDuration
}

func (s *Session) sendRecording() error {
	pcm := s.stopRecording()
	if s.tooShort(pcm) {
		log.Info("recording too short, dropped")
		beep.Play(beep.ToneCancel)
		return nil
	}
	if err := s.encodeAndSend(pcm, ""); err != nil {
		// keep the audio rather than lose it
		if d, serr := s.saveDraft(pcm, draft.ReasonInterrupted); serr == nil {
			s.deps.Sink.DraftReady(d)
		}
		return err
	}
	return nil
}

func (s *Session) interruptRecording() error {
	pcm := s.stopRecording()
	beep.Play(beep.ToneCancel)
	if !s.cfg.KeepInterrupted || s.tooShort(pcm) {
		return nil
	}
	d, err := s.saveDraft(pcm, draft.ReasonInterrupted)
	if err != nil {
		return err
	}
	s.deps.Sink.DraftReady(d)
	return nil
}

func (s *Session) encode(pcm []byte) (encoder.Encoder, error) {
	enc, err := encoder.EncodePCM(s.cfg.Format, encoder.Samples(pcm))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", s.cfg.Format, err)
	}
	return enc, nil
}

func (s *Session) encodeAndSend(pcm []byte, id string) error {
	enc, err := s.encode(pcm)
	if err != nil {
		return err
	}
	receipt, err := s.deps.Sender.Send(s.ctx, outbox.Memo{
		ID:        id,
		Format:    s.cfg.Format,
		Audio:     enc.Bytes(),
		Duration:  encoder.Duration(enc.TotalFrames()),
		RawBytes:  len(pcm),
		EncodeDur: enc.EncodeTime(),
	})
	if err != nil {
		return fmt.Errorf("sending memo: %w", err)
	}
	s.sent++
	beep.Play(beep.ToneSend)
	s.deps.Sink.MemoSent(receipt)
	return nil
}

func (s *Session) saveDraft(pcm []byte, reason draft.Reason) (draft.Draft, error) {
	enc, err := s.encode(pcm)
	if err != nil {
		return draft.Draft{}, err
	}
	d, err := s.deps.Store.Save(draft.Draft{
		Format:   s.cfg.Format,
		Duration: encoder.Duration(enc.TotalFrames()),
		Reason:   reason,
	}, enc.Bytes())
	if err != nil {
		return draft.Draft{}, fmt.Errorf("saving draft: %w", err)
	}
	s.drafts++
	log.DraftSaved(d.ID, string(d.Reason), d.Duration, float64(d.SizeBytes)/1024)
	return d, nil
}

func (s *Session) sendStoredDraft(id string) error {
	receipt, err := SendStored(s.ctx, s.deps.Store, s.deps.Sender, id)
	if err != nil {
		return err
	}
	s.sent++
	beep.Play(beep.ToneSend)
	s.deps.Sink.MemoSent(receipt)
	return nil
}

// SendStored sends a saved draft and removes it from the store. FLAC drafts
// are checked for a readable stream header first.
func SendStored(ctx context.Context, store *draft.Store, sender outbox.Sender, id string) (outbox.Receipt, error) {
	d, data, err := store.Load(id)
	if err != nil {
		return outbox.Receipt{}, err
	}
	if d.Format == encoder.FormatFlac {
		if _, err := encoder.ProbeFlac(data); err != nil {
			return outbox.Receipt{}, fmt.Errorf("draft %s is not valid flac: %w", id, err)
		}
	}
	receipt, err := sender.Send(ctx, outbox.Memo{
		ID:        d.ID,
		Format:    d.Format,
		Audio:     data,
		Duration:  d.Duration,
		FromDraft: true,
	})
	if err != nil {
		return outbox.Receipt{}, fmt.Errorf("sending draft %s: %w", id, err)
	}
	if err := store.Delete(id); err != nil {
		log.Warnf("removing sent draft %s: %v", id, err)
	}
	return receipt, nil
}

func (s *Session) tickLoop(rec *recording) {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-rec.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.tick(rec)
			s.mu.Unlock()
		}
	}
}

// tick meters the audio captured since the last tick and feeds the silence
// monitor. Caller holds s.mu.
func (s *Session) tick(rec *recording) {
	if s.rec != rec {
		return
	}
	level := audio.RMS(rec.unmetered())
	s.deps.Sink.Tick(s.now().Sub(rec.started))
	s.deps.Sink.Level(level)

	switch ev := rec.silence.Tick(level >= speechLevel); ev {
	case SilenceWarn, SilenceRepeat:
		log.Warnf("silence: %s", ev)
		beep.Play(beep.ToneCancel)
		s.deps.Sink.SilenceWarning(true)
	case SilenceWarnClear:
		s.deps.Sink.SilenceWarning(false)
	case SilenceAutoStop:
		log.Info("silence: auto-stopping locked recording")
		r, err := s.stopAndReview(draft.ReasonSilence)
		if err != nil {
			log.Errorf("silence auto-stop: %v", err)
			s.deps.Sink.Error(err)
		}
		s.deps.Sink.Gesture(r)
	}
}

// Close ends any open recording, saving it as an interrupted draft when
// configured, and releases the capture device.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.ctrl.State() {
	case gesture.Held:
		if _, err := s.ctrl.Process(gesture.Sample{Phase: gesture.Cancelled}); err == nil {
			if err := s.interruptRecording(); err != nil {
				log.Errorf("saving interrupted recording: %v", err)
			}
		}
	case gesture.Locked:
		// a locked recording was deliberate; keep it for review
		if _, err := s.stopAndReview(draft.ReasonInterrupted); err != nil {
			log.Errorf("saving locked recording: %v", err)
		}
	}

	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}
	log.SessionEnd(s.sent, s.drafts)
}

// Stats returns how many memos were sent and drafts saved.
func (s *Session) Stats() (sent, drafts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.drafts
}
