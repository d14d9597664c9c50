// Package app provides the core application service for Wails bindings.
package app

import (
	"go.aimuz.me/murmur/internal/types"
)

// Event names for frontend communication.
const (
	EventSessionState      = "session-state"
	EventTranscriptReady   = "transcript-ready"
	EventSessionError      = "session-error"
	EventAudioLevel        = "audio-level"
	EventHistoryChanged    = "history-changed"
	EventAccessibilityPerm = "accessibility-permission"
)

// AudioLevel is a typed event carrying the input loudness while recording.
type AudioLevel struct {
	Level     float64 `json:"level"`     // normalized RMS, 0..1
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
	Seq       int     `json:"seq"`
}

// emitter sends an event to the frontend.
type emitter func(name string, data any)

// eventSink forwards session notifications to the frontend.
type eventSink struct {
	emit emitter
}

func (e eventSink) StateChanged(status types.SessionStatus) {
	e.emit(EventSessionState, status)
}

func (e eventSink) TranscriptReady(result types.Result) {
	e.emit(EventTranscriptReady, result)
}

func (e eventSink) SessionError(err types.SessionError) {
	e.emit(EventSessionError, err)
}
