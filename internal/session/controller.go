// Package session owns the dictation lifecycle: capture on press, then
// transcription, formatting and delivery on release.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/foreground"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/stt"
)

// DefaultMinDuration is the shortest recording sent for transcription.
const DefaultMinDuration = 150 * time.Millisecond

// Options tunes the controller.
type Options struct {
	// SilenceThreshold is the normalized RMS below which a recording is
	// treated as silent. Zero uses audiocapture.DefaultSilenceThreshold.
	SilenceThreshold float64

	// MinDuration rejects taps too short to contain speech.
	// Zero uses DefaultMinDuration.
	MinDuration time.Duration
}

// Controller runs at most one session at a time.
type Controller struct {
	capture     audiocapture.Capturer
	transcriber stt.Transcriber
	formatter   Formatter
	deliverer   Deliverer
	foreground  foreground.Detector
	events      EventSink
	opts        Options

	now   func() time.Time
	newID func() string

	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *activeSession
	closed  bool
}

type activeSession struct {
	id        string
	state     State
	startedAt time.Time
	app       types.ForegroundApp
	buf       audiocapture.ChunkBuffer
	stream    audiocapture.Stream

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController wires a controller. A nil foreground detector or event sink
// is replaced with a no-op.
func NewController(
	capture audiocapture.Capturer,
	transcriber stt.Transcriber,
	formatter Formatter,
	deliverer Deliverer,
	fg foreground.Detector,
	events EventSink,
	opts Options,
) *Controller {
	if fg == nil {
		fg = noForeground{}
	}
	if events == nil {
		events = nopSink{}
	}
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = audiocapture.DefaultSilenceThreshold
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = DefaultMinDuration
	}

	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		capture:     capture,
		transcriber: transcriber,
		formatter:   formatter,
		deliverer:   deliverer,
		foreground:  fg,
		events:      events,
		opts:        opts,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
		base:        base,
		cancel:      cancel,
	}
}

// Start begins capturing. It returns ErrSessionActive, without side effects,
// while another session is running.
func (c *Controller) Start(ctx context.Context) (types.SessionStatus, error) {
	if err := ctx.Err(); err != nil {
		return types.SessionStatus{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return types.SessionStatus{}, ErrClosed
	}
	if c.current != nil {
		c.mu.Unlock()
		return types.SessionStatus{}, ErrSessionActive
	}

	// A partial result (pid without name) still identifies the paste target.
	app, err := c.foreground.Current()
	if err != nil {
		slog.Debug("detect foreground app", "pid", app.PID, "error", err)
	}

	s := &activeSession{
		id:        c.newID(),
		state:     Idle,
		startedAt: c.now(),
		app:       app,
	}
	s.ctx, s.cancel = context.WithCancel(c.base)

	stream, err := c.capture.Start(s.ctx, s.buf.Append)
	if err != nil {
		s.cancel()
		c.mu.Unlock()
		serr := &Error{Kind: KindCapture, SessionID: s.id, Err: fmt.Errorf("start capture: %w", err)}
		c.events.SessionError(toEvent(serr))
		return types.SessionStatus{}, serr
	}
	s.stream = stream
	c.current = s
	if err := c.transitionLocked(s, Capturing); err != nil {
		// Unreachable: Idle -> Capturing is always legal.
		c.mu.Unlock()
		return types.SessionStatus{}, err
	}
	status := statusOf(s)
	c.mu.Unlock()

	slog.Info("session started", "session", s.id, "app", app.Name)
	c.events.StateChanged(status)
	return status, nil
}

// Stop ends capture and runs the pipeline to completion. Capture and
// transcription failures abort the session and are returned as *Error.
// Formatting and delivery failures degrade: the result is still returned and
// the failure is reported through the event sink.
func (c *Controller) Stop(ctx context.Context) (types.Result, error) {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return types.Result{}, ErrNoActiveSession
	}
	if s.state != Capturing {
		c.mu.Unlock()
		return types.Result{}, fmt.Errorf("stop session in state %s: %w", s.state, ErrInvalidTransition)
	}
	if err := c.transitionLocked(s, Transcribing); err != nil {
		c.mu.Unlock()
		return types.Result{}, err
	}
	status := statusOf(s)
	c.mu.Unlock()

	defer c.finish(s)
	c.events.StateChanged(status)

	if err := s.stream.Stop(); err != nil {
		slog.Warn("stop capture stream", "session", s.id, "error", err)
	}

	pctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	unhook := context.AfterFunc(ctx, cancel)
	defer unhook()

	format := c.capture.Format()
	pcm := wholeFrames(s.buf.Bytes(), format)
	duration := s.buf.Duration(format)
	if len(pcm) == 0 || time.Duration(duration)*time.Millisecond < c.opts.MinDuration {
		return types.Result{}, c.fail(s, KindTranscription, stt.ErrEmptyAudio)
	}
	speech := audiocapture.TrimSilence(pcm, format, c.opts.SilenceThreshold, audiocapture.DefaultSpeechPad)
	if speech == nil {
		return types.Result{}, c.fail(s, KindTranscription, ErrSilentAudio)
	}

	payload, err := audiocapture.EncodeWAV(speech, format)
	if err != nil {
		return types.Result{}, c.fail(s, KindCapture, fmt.Errorf("encode audio: %w", err))
	}

	raw, err := c.transcriber.Transcribe(pctx, stt.WAV(payload))
	if err != nil {
		return types.Result{}, c.fail(s, KindTranscription, err)
	}

	if err := c.transition(s, Formatting); err != nil {
		return types.Result{}, c.fail(s, KindTranscription, err)
	}
	result := types.Result{
		SessionID: s.id,
		Raw:       raw,
		Text:      raw,
		App:       s.app,
		Duration:  duration,
	}
	f, err := c.formatter.Format(pctx, raw, s.app)
	result.Style = f.Style
	result.Language = f.Language
	if err != nil {
		c.warn(s, KindFormatting, err)
	} else {
		result.Text = f.Text
		result.Formatted = true
	}

	if err := c.transition(s, Delivering); err != nil {
		return result, c.fail(s, KindDelivery, err)
	}
	c.events.TranscriptReady(result)

	copied, pasted, err := c.deliverer.Deliver(pctx, result.Text, s.app)
	result.Copied, result.Pasted = copied, pasted
	if err != nil {
		c.warn(s, KindDelivery, err)
	}

	slog.Info("session delivered",
		"session", s.id,
		"formatted", result.Formatted,
		"style", result.Style,
		"copied", copied,
		"pasted", pasted,
		"duration_ms", duration)
	return result, nil
}

// Abort discards a capturing session without transcribing it.
func (c *Controller) Abort() error {
	c.mu.Lock()
	s := c.current
	if s == nil || s.state != Capturing {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.detachLocked(s)
	c.mu.Unlock()

	c.release(s)
	slog.Info("session aborted", "session", s.id)
	return nil
}

// Shutdown cancels any in-flight session, releases the capture stream and
// rejects further sessions. It is safe to call more than once.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.closed = true
	s := c.current
	c.mu.Unlock()

	c.cancel()
	if s != nil {
		c.finish(s)
	}
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() types.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return types.SessionStatus{State: string(Idle)}
	}
	return statusOf(c.current)
}

// ─── internal ───────────────────────────────────────────────

func (c *Controller) transition(s *activeSession, to State) error {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return fmt.Errorf("session %s: %w", s.id, context.Canceled)
	}
	if err := c.transitionLocked(s, to); err != nil {
		c.mu.Unlock()
		return err
	}
	status := statusOf(s)
	c.mu.Unlock()

	c.events.StateChanged(status)
	return nil
}

func (c *Controller) transitionLocked(s *activeSession, to State) error {
	if !CanTransition(s.state, to) {
		return fmt.Errorf("%s -> %s: %w", s.state, to, ErrInvalidTransition)
	}
	slog.Debug("session state", "session", s.id, "from", s.state, "to", to)
	s.state = to
	return nil
}

// finish returns the controller to Idle and releases every resource held by
// s. Only the first call for a session has any effect.
func (c *Controller) finish(s *activeSession) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.detachLocked(s)
	c.mu.Unlock()

	c.release(s)
}

func (c *Controller) detachLocked(s *activeSession) {
	slog.Debug("session state", "session", s.id, "from", s.state, "to", Idle)
	c.current = nil
	s.state = Idle
}

func (c *Controller) release(s *activeSession) {
	s.cancel()
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			slog.Warn("release capture stream", "session", s.id, "error", err)
		}
	}
	s.buf.Reset()
	c.events.StateChanged(types.SessionStatus{State: string(Idle)})
}

func (c *Controller) fail(s *activeSession, kind Kind, err error) error {
	serr := &Error{Kind: kind, SessionID: s.id, Err: err}
	if errors.Is(err, context.Canceled) {
		slog.Info("session cancelled", "session", s.id, "kind", kind)
	} else {
		slog.Error("session failed", "session", s.id, "kind", kind, "error", err)
	}
	c.events.SessionError(toEvent(serr))
	return serr
}

func (c *Controller) warn(s *activeSession, kind Kind, err error) {
	serr := &Error{Kind: kind, SessionID: s.id, Err: err}
	slog.Warn("session degraded", "session", s.id, "kind", kind, "error", err)
	c.events.SessionError(toEvent(serr))
}

// wholeFrames drops a trailing partial frame, such as half a sample left by
// a capture process killed mid-write.
func wholeFrames(pcm []byte, f audiocapture.Format) []byte {
	frame := 2 * max(f.Channels, 1)
	return pcm[:len(pcm)-len(pcm)%frame]
}

func statusOf(s *activeSession) types.SessionStatus {
	return types.SessionStatus{
		State:     string(s.state),
		Active:    true,
		SessionID: s.id,
		StartedAt: s.startedAt.UnixMilli(),
		App:       s.app.Name,
	}
}

func toEvent(e *Error) types.SessionError {
	return types.SessionError{
		SessionID: e.SessionID,
		Kind:      string(e.Kind),
		Message:   e.Err.Error(),
		Fatal:     e.Kind.Fatal(),
	}
}

type noForeground struct{}

func (noForeground) Current() (types.ForegroundApp, error) {
	return types.ForegroundApp{}, foreground.ErrUnknown
}

type nopSink struct{}

func (nopSink) StateChanged(types.SessionStatus) {}
func (nopSink) TranscriptReady(types.Result)     {}
func (nopSink) SessionError(types.SessionError)  {}
