package hotkey

import (
	"errors"
	"fmt"
	"strings"

	hook "github.com/robotn/gohook"
)

// ErrInvalidAccelerator is returned for accelerator strings that cannot be parsed.
var ErrInvalidAccelerator = errors.New("hotkey: invalid accelerator")

// DefaultAccelerator is the hold-to-dictate combination used when none is configured.
const DefaultAccelerator = "Shift+Z"

// hook.Keycode has no right control entry.
const vcCtrlR uint16 = 0x0E1D

// aliases maps accepted names onto hook.Keycode names.
var aliases = map[string]string{
	"control":   "ctrl",
	"option":    "alt",
	"command":   "cmd",
	"super":     "cmd",
	"meta":      "cmd",
	"return":    "enter",
	"escape":    "esc",
	"backspace": "delete",
}

// Modifiers match either side of the keyboard.
var rightSide = map[string]string{
	"shift": "rshift",
	"alt":   "ralt",
	"cmd":   "rcmd",
}

// hook.Keycode reports num lock and scroll lock codes for these.
var overrides = map[string]uint16{
	"f11": 0x0057,
	"f12": 0x0058,
}

// KeySet is one key of a combination; any of its codes satisfies it.
type KeySet []uint16

// Has reports whether code belongs to the set.
func (k KeySet) Has(code uint16) bool {
	for _, c := range k {
		if c == code {
			return true
		}
	}
	return false
}

// Combo is a parsed accelerator.
type Combo []KeySet

// Has reports whether code belongs to any key of the combination.
func (c Combo) Has(code uint16) bool {
	for _, k := range c {
		if k.Has(code) {
			return true
		}
	}
	return false
}

// ParseAccelerator parses strings like "Shift+Z" or "Ctrl+Alt+Space".
// Names are case-insensitive.
func ParseAccelerator(s string) (Combo, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAccelerator)
	}

	var combo Combo
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, "+") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			// "Shift++" names the plus key, which is not supported.
			return nil, fmt.Errorf("%w: %q", ErrInvalidAccelerator, s)
		}
		set, err := lookupKey(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAccelerator, s, err)
		}
		key := fmt.Sprint(set)
		if seen[key] {
			return nil, fmt.Errorf("%w: %q: duplicate key %q", ErrInvalidAccelerator, s, name)
		}
		seen[key] = true
		combo = append(combo, set)
	}
	return combo, nil
}

func lookupKey(name string) (KeySet, error) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if code, ok := overrides[name]; ok {
		return KeySet{code}, nil
	}
	code, ok := hook.Keycode[name]
	if !ok {
		return nil, fmt.Errorf("unknown key %q", name)
	}
	if name == "ctrl" {
		return KeySet{code, vcCtrlR}, nil
	}
	if right, ok := rightSide[name]; ok {
		return KeySet{code, hook.Keycode[right]}, nil
	}
	return KeySet{code}, nil
}
