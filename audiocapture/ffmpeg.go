package audiocapture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	ffmpegStartGrace = 250 * time.Millisecond
	ffmpegStopGrace  = 1200 * time.Millisecond
	ffmpegReadSize   = 3200 // 100ms of 16 kHz mono s16le
)

// FFmpegCapturer streams microphone PCM through an ffmpeg child process.
type FFmpegCapturer struct {
	command     string
	inputFormat string
	inputDevice string
	format      Format

	mu     sync.Mutex
	active *ffmpegStream
}

// NewFFmpeg creates an ffmpeg-backed Capturer. Empty input format and device
// fall back to the platform default.
func NewFFmpeg(command, inputFormat, inputDevice string, format Format) *FFmpegCapturer {
	if command == "" {
		command = "ffmpeg"
	}
	if inputFormat == "" || inputDevice == "" {
		defFormat, defDevice := defaultFFmpegInput(runtime.GOOS)
		if inputFormat == "" {
			inputFormat = defFormat
		}
		if inputDevice == "" {
			inputDevice = defDevice
		}
	}
	return &FFmpegCapturer{
		command:     command,
		inputFormat: inputFormat,
		inputDevice: inputDevice,
		format:      format,
	}
}

func defaultFFmpegInput(goos string) (format, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// Format returns the PCM format produced by the capturer.
func (c *FFmpegCapturer) Format() Format { return c.format }

func (c *FFmpegCapturer) args() []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", c.inputFormat,
		"-i", c.inputDevice,
		"-ac", strconv.Itoa(c.format.Channels),
		"-ar", strconv.Itoa(c.format.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// Start launches ffmpeg and feeds its stdout to handler.
func (c *FFmpegCapturer) Start(ctx context.Context, handler Handler) (Stream, error) {
	if handler == nil {
		return nil, errors.New("audiocapture: handler is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, ErrRunning
	}

	cmd := exec.CommandContext(ctx, c.command, c.args()...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		readEnd: make(chan struct{}),
		waitErr: make(chan error, 1),
	}
	s.tracks.Store(1)

	// The reader must drain stdout before Wait closes the pipe.
	go s.read(handler)
	go func() {
		<-s.readEnd
		s.waitErr <- cmd.Wait()
		close(s.waitErr)
	}()

	select {
	case err := <-s.waitErr:
		s.tracks.Store(0)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(ffmpegStartGrace):
	}

	s.release = func() {
		c.mu.Lock()
		if c.active == s {
			c.active = nil
		}
		c.mu.Unlock()
	}
	c.active = s
	return s, nil
}

type ffmpegStream struct {
	stdout  io.ReadCloser
	stderr  *syncBuffer
	process *os.Process

	readEnd chan struct{}
	waitErr chan error
	tracks  atomic.Int32
	release func()

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) read(handler Handler) {
	defer close(s.readEnd)
	buf := make([]byte, ffmpegReadSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			handler(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Debug("ffmpeg read", "error", err)
			}
			return
		}
	}
}

func (s *ffmpegStream) ActiveTracks() int { return int(s.tracks.Load()) }

// Stop interrupts ffmpeg so it flushes, then kills it after a grace period.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(ffmpegStopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			// Orphaned children may still hold the pipe open.
			_ = s.stdout.Close()
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimOutput(s.stderr.String()))
		}
		s.tracks.Store(0)
		if s.release != nil {
			s.release()
		}
	})
	return s.stopErr
}

// normalizeStopErr treats a non-zero exit after an interrupt as a clean stop.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(s string) string {
	return strings.TrimSpace(s)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
