package session

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.aimuz.me/murmur/audiocapture"
	"go.aimuz.me/murmur/internal/types"
	"go.aimuz.me/murmur/stt"
)

var testFormat = audiocapture.Format{SampleRate: 16000, Channels: 1}

func TestControllerFullCycle(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{chunks: [][]byte{tone(250), tone(250)}}
	transcriber := &fakeTranscriber{text: "hello world"}
	formatter := &fakeFormatter{out: Formatted{Text: "Hello world.", Style: "chat", Language: "en"}}
	deliverer := &fakeDeliverer{copied: true, pasted: true}
	events := &fakeEventSink{}
	fg := fakeForeground{app: types.ForegroundApp{PID: 42, Name: "Slack"}}

	c := NewController(capture, transcriber, formatter, deliverer, fg, events, Options{})

	status, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if status.State != string(Capturing) || !status.Active || status.App != "Slack" {
		t.Fatalf("unexpected start status: %+v", status)
	}

	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.Raw != "hello world" || result.Text != "Hello world." || !result.Formatted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Style != "chat" || result.Language != "en" {
		t.Fatalf("unexpected style/language: %q %q", result.Style, result.Language)
	}
	if !result.Copied || !result.Pasted || result.App.PID != 42 {
		t.Fatalf("unexpected delivery fields: %+v", result)
	}
	if result.Duration != 500 {
		t.Fatalf("duration = %d, want 500", result.Duration)
	}

	want := []State{Capturing, Transcribing, Formatting, Delivering, Idle}
	got := events.snapshotStates()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}

	if n := len(events.snapshotResults()); n != 1 {
		t.Fatalf("expected 1 transcript-ready event, got %d", n)
	}
	if deliverer.text != "Hello world." {
		t.Fatalf("deliverer got %q", deliverer.text)
	}
	if transcriber.audio.ContentType != "audio/wav" || len(transcriber.audio.Data) <= 44 {
		t.Fatalf("unexpected transcription payload: %q, %d bytes", transcriber.audio.ContentType, len(transcriber.audio.Data))
	}
	if s := c.Status(); s.Active || s.State != string(Idle) {
		t.Fatalf("expected idle after stop, got %+v", s)
	}
	if capture.lastStream().ActiveTracks() != 0 {
		t.Fatalf("expected stream released")
	}
}

func TestControllerStartWhileActive(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{chunks: [][]byte{tone(300)}}
	events := &fakeEventSink{}
	c := NewController(capture, &fakeTranscriber{text: "x"}, &fakeFormatter{}, &fakeDeliverer{}, nil, events, Options{})

	first, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if _, err := c.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	if n := capture.startCalls(); n != 1 {
		t.Fatalf("capture started %d times, want 1", n)
	}
	if got := c.Status(); got.SessionID != first.SessionID || got.State != string(Capturing) {
		t.Fatalf("second start changed the session: %+v", got)
	}
	if n := len(events.snapshotStates()); n != 1 {
		t.Fatalf("expected 1 state event, got %d", n)
	}
}

func TestControllerConcurrentStartCreatesOneSession(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{chunks: [][]byte{tone(300)}}
	c := NewController(capture, &fakeTranscriber{text: "x"}, &fakeFormatter{}, &fakeDeliverer{}, nil, nil, Options{})

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Start(context.Background()); err == nil {
				ok.Add(1)
			} else if !errors.Is(err, ErrSessionActive) {
				t.Errorf("unexpected start error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Fatalf("expected exactly one successful start, got %d", ok.Load())
	}
	if n := capture.startCalls(); n != 1 {
		t.Fatalf("capture started %d times, want 1", n)
	}
}

func TestControllerFormattingFallback(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	deliverer := &fakeDeliverer{copied: true}
	c := NewController(
		&fakeCapture{chunks: [][]byte{tone(400)}},
		&fakeTranscriber{text: "raw words"},
		&fakeFormatter{out: Formatted{Style: "email"}, err: errors.New("service unavailable")},
		deliverer,
		nil,
		events,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.Text != "raw words" || result.Formatted {
		t.Fatalf("expected raw fallback, got %+v", result)
	}
	if result.Style != "email" {
		t.Fatalf("style = %q, want email", result.Style)
	}
	if deliverer.text != "raw words" {
		t.Fatalf("delivered %q, want raw transcript", deliverer.text)
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].Kind != string(KindFormatting) || errs[0].Fatal {
		t.Fatalf("expected one non-fatal formatting error, got %+v", errs)
	}
}

func TestControllerDeliveryFailureKeepsResult(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	c := NewController(
		&fakeCapture{chunks: [][]byte{tone(400)}},
		&fakeTranscriber{text: "text"},
		&fakeFormatter{out: Formatted{Text: "Text."}},
		&fakeDeliverer{err: errors.New("clipboard down")},
		nil,
		events,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.Copied || result.Text != "Text." {
		t.Fatalf("unexpected result: %+v", result)
	}

	ready := events.snapshotResults()
	if len(ready) != 1 || ready[0].Text != "Text." {
		t.Fatalf("expected result shown before delivery, got %+v", ready)
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].Kind != string(KindDelivery) || errs[0].Fatal {
		t.Fatalf("expected one non-fatal delivery error, got %+v", errs)
	}
}

func TestControllerRejectsUnusableAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks [][]byte
		want   error
	}{
		{"empty", nil, stt.ErrEmptyAudio},
		{"too short", [][]byte{tone(50)}, stt.ErrEmptyAudio},
		{"silent", [][]byte{make([]byte, 16000)}, ErrSilentAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transcriber := &fakeTranscriber{text: "x"}
			formatter := &fakeFormatter{}
			deliverer := &fakeDeliverer{}
			events := &fakeEventSink{}
			c := NewController(&fakeCapture{chunks: tt.chunks}, transcriber, formatter, deliverer, nil, events, Options{})

			if _, err := c.Start(context.Background()); err != nil {
				t.Fatalf("start failed: %v", err)
			}
			_, err := c.Stop(context.Background())
			if !IsKind(err, KindTranscription) {
				t.Fatalf("expected transcription error, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if transcriber.calls() != 0 || formatter.calls() != 0 || deliverer.calls() != 0 {
				t.Fatalf("pipeline ran on unusable audio")
			}
			if s := c.Status(); s.State != string(Idle) {
				t.Fatalf("expected idle, got %s", s.State)
			}
			errs := events.snapshotErrors()
			if len(errs) != 1 || !errs[0].Fatal {
				t.Fatalf("expected one fatal error event, got %+v", errs)
			}
		})
	}
}

func TestControllerTrimsSilenceAroundSpeech(t *testing.T) {
	t.Parallel()

	silence := make([]byte, 2*testFormat.BytesPerSecond())
	transcriber := &fakeTranscriber{text: "yes"}
	c := NewController(
		&fakeCapture{chunks: [][]byte{silence, tone(200), silence}},
		transcriber,
		&fakeFormatter{},
		&fakeDeliverer{},
		nil,
		nil,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("quiet recording with speech was rejected: %v", err)
	}
	if result.Duration != 4200 {
		t.Fatalf("duration = %d, want full recording length 4200", result.Duration)
	}
	// 200ms of speech plus padding, far less than the 4.2s recording.
	if n := len(transcriber.audio.Data); n >= testFormat.BytesPerSecond() {
		t.Fatalf("uploaded %d bytes, expected silence to be trimmed", n)
	}
}

func TestControllerDropsTrailingPartialSample(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{text: "hello"}
	c := NewController(
		&fakeCapture{chunks: [][]byte{tone(500), {0x01}}},
		transcriber,
		&fakeFormatter{},
		&fakeDeliverer{},
		nil,
		nil,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("odd-length recording was rejected: %v", err)
	}
	if result.Raw != "hello" || transcriber.calls() != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if n := len(transcriber.audio.Data); n == 0 || n%2 != 0 {
		t.Fatalf("uploaded wav has %d bytes, want whole samples", n)
	}
}

func TestControllerKeepsPartialForegroundApp(t *testing.T) {
	t.Parallel()

	deliverer := &fakeDeliverer{copied: true}
	fg := fakeForeground{
		app: types.ForegroundApp{PID: 4242},
		err: errors.New("find process name: permission denied"),
	}
	c := NewController(
		&fakeCapture{chunks: [][]byte{tone(400)}},
		&fakeTranscriber{text: "ok"},
		&fakeFormatter{},
		deliverer,
		fg,
		nil,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.App.PID != 4242 {
		t.Fatalf("result app = %+v, want pid 4242", result.App)
	}
	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if deliverer.app.PID != 4242 {
		t.Fatalf("delivered to %+v, want pid 4242", deliverer.app)
	}
}

func TestControllerTranscriptionFailure(t *testing.T) {
	t.Parallel()

	formatter := &fakeFormatter{}
	c := NewController(
		&fakeCapture{chunks: [][]byte{tone(400)}},
		&fakeTranscriber{err: errors.New("503 service unavailable")},
		formatter,
		&fakeDeliverer{},
		nil,
		nil,
		Options{},
	)

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, err := c.Stop(context.Background())

	var serr *Error
	if !errors.As(err, &serr) || serr.Kind != KindTranscription || serr.SessionID == "" {
		t.Fatalf("expected *Error of kind transcription, got %v", err)
	}
	if formatter.calls() != 0 {
		t.Fatalf("formatter ran after transcription failure")
	}
	if c.Status().Active {
		t.Fatalf("expected idle after failure")
	}
}

func TestControllerCaptureStartFailure(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	c := NewController(
		&fakeCapture{err: errors.New("no input device")},
		&fakeTranscriber{},
		&fakeFormatter{},
		&fakeDeliverer{},
		nil,
		events,
		Options{},
	)

	_, err := c.Start(context.Background())
	if !IsKind(err, KindCapture) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if c.Status().Active {
		t.Fatalf("failed start left an active session")
	}
	if len(events.snapshotStates()) != 0 {
		t.Fatalf("failed start emitted a state change")
	}
	if errs := events.snapshotErrors(); len(errs) != 1 || !errs[0].Fatal {
		t.Fatalf("expected one fatal capture error, got %+v", errs)
	}
}

func TestControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	c := NewController(&fakeCapture{}, &fakeTranscriber{}, &fakeFormatter{}, &fakeDeliverer{}, nil, nil, Options{})
	if _, err := c.Stop(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if err := c.Abort(); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestControllerStopDuringPipeline(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{text: "x", block: make(chan struct{}), entered: make(chan struct{})}
	c := NewController(&fakeCapture{chunks: [][]byte{tone(400)}}, transcriber, &fakeFormatter{}, &fakeDeliverer{}, nil, nil, Options{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Stop(context.Background())
		done <- err
	}()
	<-transcriber.entered

	if _, err := c.Stop(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := c.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	close(transcriber.block)
	if err := <-done; err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
}

func TestControllerAbort(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{chunks: [][]byte{tone(400)}}
	transcriber := &fakeTranscriber{text: "x"}
	events := &fakeEventSink{}
	c := NewController(capture, transcriber, &fakeFormatter{}, &fakeDeliverer{}, nil, events, Options{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := c.Abort(); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if capture.lastStream().ActiveTracks() != 0 {
		t.Fatalf("expected stream released on abort")
	}
	if transcriber.calls() != 0 {
		t.Fatalf("aborted session was transcribed")
	}
	states := events.snapshotStates()
	if states[len(states)-1] != Idle {
		t.Fatalf("expected idle, got %v", states)
	}
}

func TestControllerShutdownDuringCapture(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{chunks: [][]byte{tone(400)}}
	c := NewController(capture, &fakeTranscriber{text: "x"}, &fakeFormatter{}, &fakeDeliverer{}, nil, nil, Options{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	stream := capture.lastStream()
	if stream.ActiveTracks() != 1 {
		t.Fatalf("expected 1 active track while capturing")
	}

	c.Shutdown()
	c.Shutdown()

	if stream.ActiveTracks() != 0 {
		t.Fatalf("expected 0 active tracks after shutdown")
	}
	if c.Status().Active {
		t.Fatalf("expected idle after shutdown")
	}
	if _, err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestControllerShutdownCancelsTranscription(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{block: make(chan struct{}), entered: make(chan struct{})}
	formatter := &fakeFormatter{}
	c := NewController(&fakeCapture{chunks: [][]byte{tone(400)}}, transcriber, formatter, &fakeDeliverer{}, nil, nil, Options{})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Stop(context.Background())
		done <- err
	}()
	<-transcriber.entered

	c.Shutdown()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after shutdown")
	}
	if formatter.calls() != 0 {
		t.Fatalf("formatter ran after shutdown")
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Capturing, true},
		{Capturing, Transcribing, true},
		{Transcribing, Formatting, true},
		{Formatting, Delivering, true},
		{Delivering, Idle, true},
		{Capturing, Idle, true},
		{Idle, Transcribing, false},
		{Capturing, Formatting, false},
		{Transcribing, Delivering, false},
		{Delivering, Capturing, false},
		{Idle, Idle, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	err := error(&Error{Kind: KindFormatting, SessionID: "s1", Err: errors.New("boom")})
	if !IsKind(err, KindFormatting) || IsKind(err, KindCapture) {
		t.Fatalf("IsKind mismatch for %v", err)
	}
	if IsKind(errors.New("plain"), KindFormatting) {
		t.Fatalf("plain error matched a kind")
	}
	if KindFormatting.Fatal() || KindDelivery.Fatal() || !KindCapture.Fatal() || !KindTranscription.Fatal() {
		t.Fatalf("unexpected Fatal classification")
	}
}

// ─── fakes ──────────────────────────────────────────────────

// tone returns ms milliseconds of a loud square wave in testFormat.
func tone(ms int) []byte {
	n := testFormat.SampleRate * ms / 1000
	out := make([]byte, n*2)
	for i := range n {
		v := int16(8000)
		if (i/20)%2 == 1 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

type fakeCapture struct {
	chunks [][]byte
	err    error

	mu      sync.Mutex
	starts  int
	streams []*fakeStream
}

func (f *fakeCapture) Start(_ context.Context, h audiocapture.Handler) (audiocapture.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.chunks {
		h(append([]byte(nil), c...))
	}
	s := &fakeStream{}
	s.tracks.Store(1)
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeCapture) Format() audiocapture.Format { return testFormat }

func (f *fakeCapture) startCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeCapture) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[len(f.streams)-1]
}

type fakeStream struct {
	tracks atomic.Int32
}

func (s *fakeStream) Stop() error {
	s.tracks.Store(0)
	return nil
}

func (s *fakeStream) ActiveTracks() int { return int(s.tracks.Load()) }

type fakeTranscriber struct {
	text    string
	err     error
	block   chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	n     int
	audio stt.Audio
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, a stt.Audio) (string, error) {
	f.mu.Lock()
	f.n++
	f.audio = a
	f.mu.Unlock()

	if f.block != nil {
		close(f.entered)
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakeFormatter struct {
	out Formatted
	err error

	mu sync.Mutex
	n  int
}

func (f *fakeFormatter) Format(_ context.Context, text string, _ types.ForegroundApp) (Formatted, error) {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
	out := f.out
	if out.Text == "" && f.err == nil {
		out.Text = text
	}
	return out, f.err
}

func (f *fakeFormatter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakeDeliverer struct {
	copied, pasted bool
	err            error

	mu   sync.Mutex
	n    int
	text string
	app  types.ForegroundApp
}

func (f *fakeDeliverer) Deliver(_ context.Context, text string, app types.ForegroundApp) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.text = text
	f.app = app
	return f.copied, f.pasted, f.err
}

func (f *fakeDeliverer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

type fakeForeground struct {
	app types.ForegroundApp
	err error
}

func (f fakeForeground) Current() (types.ForegroundApp, error) { return f.app, f.err }

type fakeEventSink struct {
	mu      sync.Mutex
	states  []State
	results []types.Result
	errs    []types.SessionError
}

func (f *fakeEventSink) StateChanged(s types.SessionStatus) {
	f.mu.Lock()
	f.states = append(f.states, State(s.State))
	f.mu.Unlock()
}

func (f *fakeEventSink) TranscriptReady(r types.Result) {
	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
}

func (f *fakeEventSink) SessionError(e types.SessionError) {
	f.mu.Lock()
	f.errs = append(f.errs, e)
	f.mu.Unlock()
}

func (f *fakeEventSink) snapshotStates() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

func (f *fakeEventSink) snapshotResults() []types.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Result(nil), f.results...)
}

func (f *fakeEventSink) snapshotErrors() []types.SessionError {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.SessionError(nil), f.errs...)
}
