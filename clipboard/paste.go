package clipboard

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// ErrNoTarget is returned when there is no application to paste into.
var ErrNoTarget = errors.New("clipboard: no paste target")

// Paster simulates the platform paste chord in an application.
type Paster interface {
	Paste(pid int) error
}

// KeyPaster activates the target process and sends the paste chord.
type KeyPaster struct{}

// Paste focuses pid and presses Cmd+V on macOS or Ctrl+V elsewhere.
func (KeyPaster) Paste(pid int) error {
	if pid <= 0 {
		return ErrNoTarget
	}
	if err := robotgo.ActivePid(pid); err != nil {
		return fmt.Errorf("activate pid %d: %w", pid, err)
	}
	return sendPasteChord()
}

func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

var currentModifier = pasteModifier(runtime.GOOS)
