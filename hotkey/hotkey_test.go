package hotkey

import (
	"errors"
	"sync"
	"testing"
	"time"

	hook "github.com/robotn/gohook"
)

type fakeSource struct {
	mu     sync.Mutex
	ch     chan KeyEvent
	opened int
	closed int
	err    error
}

func (s *fakeSource) Open() (<-chan KeyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.opened++
	s.ch = make(chan KeyEvent, 16)
	return s.ch, nil
}

func (s *fakeSource) Close() {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
}

func (s *fakeSource) send(code uint16, down bool) {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	ch <- KeyEvent{Code: code, Down: down}
}

type signals struct {
	mu     sync.Mutex
	events []string
}

func (s *signals) add(name string) {
	s.mu.Lock()
	s.events = append(s.events, name)
	s.mu.Unlock()
}

func (s *signals) wait(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.events) >= n {
			out := append([]string(nil), s.events...)
			s.mu.Unlock()
			return out
		}
		s.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d signals", n)
	return nil
}

func newTestManager(t *testing.T, src Source, sig *signals) *Manager {
	t.Helper()
	m, err := newManager(src, "", func() { sig.add("press") }, func() { sig.add("release") })
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	m.permission = func(bool) bool { return true }
	return m
}

func TestManagerPressRelease(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	var sig signals
	m := newTestManager(t, src, &sig)

	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop()

	src.send(vcShiftL, true)
	src.send(hook.Keycode["z"], true)
	src.send(hook.Keycode["z"], true)
	src.send(hook.Keycode["z"], false)

	got := sig.wait(t, 2)
	if len(got) != 2 || got[0] != "press" || got[1] != "release" {
		t.Fatalf("unexpected signals: %v", got)
	}
}

func TestManagerDoubleStart(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	m := newTestManager(t, src, &signals{})

	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}

	m.Stop()
	m.Stop()
	if src.closed != 1 {
		t.Fatalf("expected source closed once, got %d", src.closed)
	}
}

func TestManagerSourceError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("no hook")}
	m := newTestManager(t, src, &signals{})

	if err := m.Start(); err == nil {
		t.Fatal("expected error from source")
	}
	// A failed start can be retried.
	src.err = nil
	if err := m.Start(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	m.Stop()
}

func TestManagerWaitsForPermission(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	m, err := newManager(src, "", nil, nil)
	if err != nil {
		t.Fatalf("newManager: %v", err)
	}
	m.permission = func(bool) bool { return false }

	var mu sync.Mutex
	var statuses []bool
	m.SetStatusCallback(func(granted bool) {
		mu.Lock()
		statuses = append(statuses, granted)
		mu.Unlock()
	})

	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 1 || statuses[0] {
		t.Fatalf("expected a single denied status, got %v", statuses)
	}
	if src.opened != 0 {
		t.Fatalf("hook should not open without permission")
	}
}

func TestManagerSetAccelerator(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	var sig signals
	m := newTestManager(t, src, &sig)

	if err := m.SetAccelerator("Ctrl+Space"); err != nil {
		t.Fatalf("SetAccelerator: %v", err)
	}
	if m.Accelerator() != "Ctrl+Space" {
		t.Fatalf("Accelerator() = %q", m.Accelerator())
	}
	if err := m.SetAccelerator("Nope+1"); err == nil {
		t.Fatal("expected error for invalid accelerator")
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer m.Stop()

	src.send(vcCtrlR, true)
	src.send(vcSpace, true)
	src.send(vcCtrlR, false)

	got := sig.wait(t, 2)
	if got[0] != "press" || got[1] != "release" {
		t.Fatalf("unexpected signals: %v", got)
	}
}
