package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionActive is returned by Start while another session is running.
	ErrSessionActive = errors.New("session: a session is already active")

	// ErrNoActiveSession is returned when there is no session to stop or abort.
	ErrNoActiveSession = errors.New("session: no active session")

	// ErrInvalidTransition is returned for an illegal state change.
	ErrInvalidTransition = errors.New("session: invalid state transition")

	// ErrSilentAudio is returned when a recording holds no audible speech.
	ErrSilentAudio = errors.New("session: recording is silent")

	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("session: controller is shut down")
)

// Kind classifies session failures.
type Kind string

const (
	// KindCapture aborts the session.
	KindCapture Kind = "capture"
	// KindTranscription aborts the session.
	KindTranscription Kind = "transcription"
	// KindFormatting falls back to the raw transcript.
	KindFormatting Kind = "formatting"
	// KindDelivery keeps the result visible in the panel.
	KindDelivery Kind = "delivery"
)

// Fatal reports whether failures of this kind abort the session.
func (k Kind) Fatal() bool {
	return k == KindCapture || k == KindTranscription
}

// Error is a failure in one step of a session.
type Error struct {
	Kind      Kind
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (session %s): %v", e.Kind, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a session Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}
