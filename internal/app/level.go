package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.aimuz.me/murmur/audiocapture"
)

// levelInterval limits audio-level events to what a meter can draw.
const levelInterval = 50 * time.Millisecond

// levelMeter wraps a Capturer and reports input loudness to the panel while
// a recording is in progress.
type levelMeter struct {
	audiocapture.Capturer
	emit emitter
	now  func() time.Time
}

func newLevelMeter(c audiocapture.Capturer, emit emitter) *levelMeter {
	return &levelMeter{Capturer: c, emit: emit, now: time.Now}
}

// Start starts the wrapped capturer with a handler that also meters chunks.
func (m *levelMeter) Start(ctx context.Context, h audiocapture.Handler) (audiocapture.Stream, error) {
	var (
		mu   sync.Mutex
		last time.Time
		seq  int
	)

	return m.Capturer.Start(ctx, func(chunk []byte) {
		h(chunk)

		now := m.now()
		mu.Lock()
		if now.Sub(last) < levelInterval {
			mu.Unlock()
			return
		}
		last = now
		seq++
		n := seq
		mu.Unlock()

		m.emit(EventAudioLevel, AudioLevel{
			Level:     audiocapture.RMS(chunk),
			Timestamp: now.UnixMilli(),
			Seq:       n,
		})
		if n%100 == 0 {
			slog.Debug("metered audio chunks", "count", n, "bytes", len(chunk))
		}
	})
}
