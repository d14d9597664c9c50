// Package stt provides speech-to-text clients for recorded audio.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrEmptyAudio is returned when there is no audio to transcribe.
	ErrEmptyAudio = errors.New("stt: empty audio")

	// ErrEmptyTranscript is returned when the service recognized no speech.
	ErrEmptyTranscript = errors.New("stt: empty transcript")

	// ErrNotConfigured is returned when the client has no credentials.
	ErrNotConfigured = errors.New("stt: api key required")
)

// Audio is an encoded recording ready for upload.
type Audio struct {
	Data        []byte
	Filename    string // e.g. "audio.wav"
	ContentType string // e.g. "audio/wav"
}

// WAV wraps WAV-encoded bytes.
func WAV(data []byte) Audio {
	return Audio{Data: data, Filename: "audio.wav", ContentType: "audio/wav"}
}

// Transcriber converts a recording to plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}
