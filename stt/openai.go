package stt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel     = "whisper-1"
	defaultTimeout   = 60 * time.Second
	defaultRetryWait = 500 * time.Millisecond

	// One bounded retry for transient failures.
	maxAttempts = 2
)

// Config holds configuration for the OpenAI transcription client.
type Config struct {
	APIKey   string
	BaseURL  string // Optional, for OpenAI-compatible services
	Model    string // Optional, defaults to "whisper-1"
	Language string // ISO-639-1 code; empty or "auto" means auto-detect
	Prompt   string // Optional vocabulary hint

	HTTPClient *http.Client
}

// OpenAI transcribes audio with the OpenAI audio transcriptions API.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
	prompt   string
	ready    bool

	retryWait time.Duration
}

// NewOpenAI creates a transcription client.
func NewOpenAI(cfg Config) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // retries are ours
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	language := strings.TrimSpace(cfg.Language)
	if strings.EqualFold(language, "auto") {
		language = ""
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		language:  language,
		prompt:    cfg.Prompt,
		ready:     cfg.APIKey != "",
		retryWait: defaultRetryWait,
	}
}

// Model returns the transcription model in use.
func (o *OpenAI) Model() string { return o.model }

// Transcribe uploads audio and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", ErrEmptyAudio
	}
	if !o.ready {
		return "", ErrNotConfigured
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryWait

	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := o.request(ctx, audio)
		if err != nil && !isRetryable(err) {
			return "", backoff.Permanent(err)
		}
		return text, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("transcription failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func (o *OpenAI) request(ctx context.Context, audio Audio) (string, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio.Data), filename, contentType),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	if o.prompt != "" {
		params.Prompt = openai.String(o.prompt)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
