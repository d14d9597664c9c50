// Package foreground reports the application that currently has focus.
package foreground

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-vgo/robotgo"

	"go.aimuz.me/murmur/internal/types"
)

// ErrUnknown is returned when no focused application could be found.
var ErrUnknown = errors.New("foreground: no focused application")

// Detector returns the focused application.
type Detector interface {
	Current() (types.ForegroundApp, error)
}

// System reads the focused window through robotgo.
type System struct{}

// Current returns the pid, process name and window title of the focused app.
// The app itself is never reported as a paste target.
func (System) Current() (types.ForegroundApp, error) {
	pid := robotgo.GetPid()
	if pid <= 0 || pid == os.Getpid() {
		return types.ForegroundApp{}, ErrUnknown
	}

	name, err := robotgo.FindName(pid)
	if err != nil {
		return types.ForegroundApp{PID: pid}, fmt.Errorf("find process name: %w", err)
	}
	return types.ForegroundApp{
		PID:   pid,
		Name:  CleanName(name),
		Title: robotgo.GetTitle(),
	}, nil
}

// CleanName strips directories and executable suffixes from a process name.
func CleanName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	for _, ext := range []string{".exe", ".app"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
		}
	}
	if name == "." || name == "/" {
		return ""
	}
	return name
}
