// Package clipboard delivers text through the system clipboard and a
// simulated paste keystroke.
package clipboard

import (
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard reads and writes plain text on the system clipboard.
type Clipboard interface {
	SetText(text string) error
	GetText() (string, error)
}

// System is the OS clipboard.
type System struct {
	mu sync.Mutex
}

// SetText replaces the clipboard contents.
func (s *System) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clipboard.WriteAll(text)
}

// GetText returns the current clipboard text.
func (s *System) GetText() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clipboard.ReadAll()
}

// Unsupported reports whether no clipboard utility is available (e.g. a
// Linux session without xclip, xsel or wl-clipboard).
func Unsupported() bool {
	return clipboard.Unsupported
}
