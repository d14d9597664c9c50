package hotkey

import (
	hook "github.com/robotn/gohook"
)

// hookSource reads the process-wide gohook event stream.
type hookSource struct{}

func (hookSource) Open() (<-chan KeyEvent, error) {
	raw := hook.Start()
	out := make(chan KeyEvent, 64)
	go func() {
		defer close(out)
		for ev := range raw {
			switch ev.Kind {
			// KeyDown carries typed characters; KeyHold is the physical press.
			case hook.KeyHold:
				out <- KeyEvent{Code: ev.Keycode, Down: true}
			case hook.KeyUp:
				out <- KeyEvent{Code: ev.Keycode, Down: false}
			}
		}
	}()
	return out, nil
}

func (hookSource) Close() {
	hook.End()
}
