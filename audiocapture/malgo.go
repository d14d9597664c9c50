package audiocapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoCapturer captures audio through miniaudio.
type MalgoCapturer struct {
	format Format

	mu     sync.Mutex
	active *malgoStream
}

// NewMalgo creates a miniaudio-backed Capturer.
func NewMalgo(format Format) *MalgoCapturer {
	return &MalgoCapturer{format: format}
}

// Format returns the PCM format produced by the capturer.
func (c *MalgoCapturer) Format() Format { return c.format }

// Start opens the default input device and feeds PCM chunks to handler until
// the stream is stopped or ctx is cancelled.
func (c *MalgoCapturer) Start(ctx context.Context, handler Handler) (Stream, error) {
	if handler == nil {
		return nil, errors.New("audiocapture: handler is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrRunning
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(c.format.Channels)
	cfg.SampleRate = uint32(c.format.SampleRate)
	cfg.Alsa.NoMMap = 1

	onFrames := func(_, in []byte, _ uint32) {
		if len(in) == 0 {
			return
		}
		// miniaudio reuses the input buffer between callbacks.
		chunk := make([]byte, len(in))
		copy(chunk, in)
		handler(chunk)
	}

	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: onFrames})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	s := &malgoStream{ctx: mctx, dev: dev, done: make(chan struct{})}
	s.tracks.Store(1)
	s.release = func() {
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()
	}
	c.active = s

	go func() {
		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				slog.Warn("stop capture on cancel", "error", err)
			}
		case <-s.done:
		}
	}()

	return s, nil
}

type malgoStream struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device

	tracks  atomic.Int32
	done    chan struct{}
	release func()

	stopOnce sync.Once
	stopErr  error
}

func (s *malgoStream) ActiveTracks() int { return int(s.tracks.Load()) }

func (s *malgoStream) Stop() error {
	s.stopOnce.Do(func() {
		// Stop must precede Uninit.
		if err := s.dev.Stop(); err != nil {
			s.stopErr = fmt.Errorf("stop capture device: %w", err)
		}
		s.dev.Uninit()
		freeContext(s.ctx)
		s.tracks.Store(0)
		close(s.done)
		s.release()
	})
	return s.stopErr
}

func freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		slog.Warn("uninit audio context", "error", err)
	}
	ctx.Free()
}
