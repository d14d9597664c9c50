// Package audiocapture provides microphone capture for dictation sessions.
package audiocapture

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned when the configured backend is not available.
	ErrUnsupported = errors.New("audiocapture: backend not supported")

	// ErrRunning is returned when trying to start capture while already capturing.
	ErrRunning = errors.New("audiocapture: already capturing")
)

// Format describes the PCM layout of captured chunks.
// Samples are always signed 16-bit little-endian.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Handler receives captured PCM chunks. The slice is owned by the callee.
type Handler func(chunk []byte)

// Stream is a live capture acquired by Capturer.Start.
// Stop is idempotent and releases every device or process held by the stream.
type Stream interface {
	Stop() error

	// ActiveTracks returns the number of input tracks still held, 0 once released.
	ActiveTracks() int
}

// Capturer opens microphone streams.
// Implementations allow at most one live stream at a time and return ErrRunning otherwise.
type Capturer interface {
	Start(ctx context.Context, handler Handler) (Stream, error)
	Format() Format
}

// Config holds configuration for audio capture.
type Config struct {
	Backend       string // "malgo" (default) or "ffmpeg"
	SampleRate    int    // Default 16000 Hz (optimal for Whisper)
	Channels      int    // Default 1
	FFmpegCommand string // ffmpeg binary, default "ffmpeg"
	InputFormat   string // ffmpeg input format, default per platform
	InputDevice   string // ffmpeg input device, default per platform
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		Backend:    "malgo",
		SampleRate: 16000,
		Channels:   1,
	}
}

// New creates a Capturer for the configured backend.
func New(cfg Config) (Capturer, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	format := Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}

	switch cfg.Backend {
	case "", "malgo":
		return NewMalgo(format), nil
	case "ffmpeg":
		return NewFFmpeg(cfg.FFmpegCommand, cfg.InputFormat, cfg.InputDevice, format), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Backend)
	}
}
