package stt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type transcriptionServer struct {
	calls     atomic.Int32
	responses []func(w http.ResponseWriter)

	lastModel    atomic.Value
	lastLanguage atomic.Value
	lastFile     atomic.Value
}

func (s *transcriptionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(s.calls.Add(1)) - 1
	if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.lastModel.Store(r.FormValue("model"))
	s.lastLanguage.Store(r.FormValue("language"))
	if f, h, err := r.FormFile("file"); err == nil {
		f.Close()
		s.lastFile.Store(h.Filename)
	}

	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	s.responses[n](w)
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestClient(t *testing.T, srv *transcriptionServer, cfg Config) *OpenAI {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	cfg.BaseURL = ts.URL + "/v1/"
	c := NewOpenAI(cfg)
	c.retryWait = time.Millisecond
	return c
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := &transcriptionServer{responses: []func(http.ResponseWriter){
		reply(http.StatusOK, `{"text":"  hello world \n"}`),
	}}
	c := newTestClient(t, srv, Config{Language: "en"})

	got, err := c.Transcribe(context.Background(), WAV([]byte("RIFF....")))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "hello world" {
		t.Errorf("text = %q, want %q", got, "hello world")
	}
	if srv.lastModel.Load() != "whisper-1" {
		t.Errorf("model = %v, want whisper-1", srv.lastModel.Load())
	}
	if srv.lastLanguage.Load() != "en" {
		t.Errorf("language = %v, want en", srv.lastLanguage.Load())
	}
	if srv.lastFile.Load() != "audio.wav" {
		t.Errorf("filename = %v, want audio.wav", srv.lastFile.Load())
	}
}

func TestTranscribeAutoLanguageOmitted(t *testing.T) {
	t.Parallel()

	srv := &transcriptionServer{responses: []func(http.ResponseWriter){
		reply(http.StatusOK, `{"text":"bonjour"}`),
	}}
	c := newTestClient(t, srv, Config{Language: "auto", Model: "gpt-4o-mini-transcribe"})

	if _, err := c.Transcribe(context.Background(), WAV([]byte("x"))); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if srv.lastLanguage.Load() != "" {
		t.Errorf("language = %v, want empty", srv.lastLanguage.Load())
	}
	if srv.lastModel.Load() != "gpt-4o-mini-transcribe" {
		t.Errorf("model = %v", srv.lastModel.Load())
	}
}

func TestTranscribeRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responses []func(http.ResponseWriter)
		wantCalls int32
		wantErr   bool
		wantText  string
	}{
		{
			name: "5xx then success",
			responses: []func(http.ResponseWriter){
				reply(http.StatusBadGateway, `{"error":{"message":"upstream"}}`),
				reply(http.StatusOK, `{"text":"ok"}`),
			},
			wantCalls: 2,
			wantText:  "ok",
		},
		{
			name: "429 then success",
			responses: []func(http.ResponseWriter){
				reply(http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`),
				reply(http.StatusOK, `{"text":"ok"}`),
			},
			wantCalls: 2,
			wantText:  "ok",
		},
		{
			name: "5xx twice gives up",
			responses: []func(http.ResponseWriter){
				reply(http.StatusInternalServerError, `{"error":{"message":"boom"}}`),
			},
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name: "4xx is not retried",
			responses: []func(http.ResponseWriter){
				reply(http.StatusUnauthorized, `{"error":{"message":"bad key"}}`),
			},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := &transcriptionServer{responses: tt.responses}
			c := newTestClient(t, srv, Config{})

			got, err := c.Transcribe(context.Background(), WAV([]byte("x")))
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantText {
				t.Errorf("text = %q, want %q", got, tt.wantText)
			}
			if srv.calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", srv.calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestTranscribeEmpty(t *testing.T) {
	t.Parallel()

	srv := &transcriptionServer{responses: []func(http.ResponseWriter){
		reply(http.StatusOK, `{"text":"   "}`),
	}}
	c := newTestClient(t, srv, Config{})

	if _, err := c.Transcribe(context.Background(), Audio{}); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if srv.calls.Load() != 0 {
		t.Fatalf("empty audio should not be uploaded")
	}

	if _, err := c.Transcribe(context.Background(), WAV([]byte("x"))); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestTranscribeWithoutKey(t *testing.T) {
	c := NewOpenAI(Config{})
	if _, err := c.Transcribe(context.Background(), WAV([]byte("x"))); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain", errors.New("decode failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
