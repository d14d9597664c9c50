package session

import (
	"context"

	"go.aimuz.me/murmur/internal/types"
)

// Formatted is the output of a formatting request.
type Formatted struct {
	Text     string
	Style    string
	Language string
}

// Formatter restyles a transcript for the focused application.
// On error the returned Style and Language may still be set.
type Formatter interface {
	Format(ctx context.Context, text string, app types.ForegroundApp) (Formatted, error)
}

// Deliverer hands the final text to the user.
type Deliverer interface {
	Deliver(ctx context.Context, text string, app types.ForegroundApp) (copied, pasted bool, err error)
}

// EventSink receives session notifications. Implementations must not block.
type EventSink interface {
	StateChanged(status types.SessionStatus)
	TranscriptReady(result types.Result)
	SessionError(err types.SessionError)
}
