// Package hotkey detects a global press-and-hold key combination.
package hotkey

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunning is returned when starting a Manager that is already listening.
var ErrRunning = errors.New("hotkey: already running")

const permissionPollInterval = 2 * time.Second

// KeyEvent is a raw key transition from the keyboard hook.
type KeyEvent struct {
	Code uint16
	Down bool
}

// Source delivers raw key events until closed.
type Source interface {
	Open() (<-chan KeyEvent, error)
	Close()
}

// Listener signals press and release of the registered combination.
type Listener interface {
	Start() error
	Stop()
	SetAccelerator(accel string) error
}

// Manager turns raw key events into press/release callbacks.
// Callbacks run on the event loop and must not block.
type Manager struct {
	source    Source
	onPress   func()
	onRelease func()

	mu         sync.Mutex
	gesture    *Gesture
	accel      string
	running    bool
	stopCh     chan struct{}
	onStatus   func(granted bool)
	permission func(prompt bool) bool
}

// NewManager creates a Manager listening for accel through the global keyboard hook.
func NewManager(accel string, onPress, onRelease func()) (*Manager, error) {
	return newManager(hookSource{}, accel, onPress, onRelease)
}

func newManager(src Source, accel string, onPress, onRelease func()) (*Manager, error) {
	if accel == "" {
		accel = DefaultAccelerator
	}
	combo, err := ParseAccelerator(accel)
	if err != nil {
		return nil, err
	}
	return &Manager{
		source:     src,
		onPress:    onPress,
		onRelease:  onRelease,
		gesture:    NewGesture(combo),
		accel:      accel,
		permission: IsAccessibilityEnabled,
	}, nil
}

// SetStatusCallback sets a callback reporting accessibility permission changes.
func (m *Manager) SetStatusCallback(fn func(granted bool)) {
	m.mu.Lock()
	m.onStatus = fn
	m.mu.Unlock()
}

// Accelerator returns the registered combination.
func (m *Manager) Accelerator() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accel
}

// SetAccelerator replaces the registered combination. A held gesture is dropped.
func (m *Manager) SetAccelerator(accel string) error {
	combo, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.gesture = NewGesture(combo)
	m.accel = accel
	m.mu.Unlock()
	return nil
}

// Start begins listening. Without accessibility permission it prompts once and
// waits in the background until permission is granted.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrRunning
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	m.mu.Unlock()

	granted := m.permission(true)
	m.reportStatus(granted)
	if granted {
		return m.listen(stop)
	}

	go func() {
		ticker := time.NewTicker(permissionPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !m.permission(false) {
					continue
				}
				m.reportStatus(true)
				if err := m.listen(stop); err != nil {
					slog.Error("start keyboard hook", "error", err)
				}
				return
			}
		}
	}()
	return nil
}

func (m *Manager) listen(stop <-chan struct{}) error {
	events, err := m.source.Open()
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}
	go m.loop(events, stop)
	return nil
}

func (m *Manager) loop(events <-chan KeyEvent, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handle(ev)
		}
	}
}

func (m *Manager) handle(ev KeyEvent) {
	m.mu.Lock()
	sig := m.gesture.Feed(ev.Code, ev.Down)
	m.mu.Unlock()

	switch sig {
	case Press:
		slog.Debug("hotkey press")
		if m.onPress != nil {
			m.onPress()
		}
	case Release:
		slog.Debug("hotkey release")
		if m.onRelease != nil {
			m.onRelease()
		}
	}
}

// Stop ends listening. It is safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
	m.source.Close()
	m.gesture.Reset()
}

func (m *Manager) reportStatus(granted bool) {
	m.mu.Lock()
	fn := m.onStatus
	m.mu.Unlock()
	if fn != nil {
		fn(granted)
	}
}
