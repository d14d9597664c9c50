package hotkey

// Signal is the outcome of feeding one key event to a Gesture.
type Signal int

const (
	None Signal = iota
	Press
	Release
)

func (s Signal) String() string {
	switch s {
	case Press:
		return "press"
	case Release:
		return "release"
	default:
		return "none"
	}
}

// Gesture tracks a press-and-hold of a key combination.
//
// Press fires once when every key of the combination is down. Auto-repeat
// key-downs while held are ignored. Release fires on the first key-up of any
// key in the combination. Keys outside the combination are ignored.
// A Gesture is not safe for concurrent use.
type Gesture struct {
	combo  Combo
	down   map[uint16]bool
	active bool
}

// NewGesture creates a Gesture for combo.
func NewGesture(combo Combo) *Gesture {
	return &Gesture{combo: combo, down: make(map[uint16]bool)}
}

// Active reports whether the combination is currently held.
func (g *Gesture) Active() bool { return g.active }

// Feed records a key event and returns the resulting signal.
func (g *Gesture) Feed(code uint16, down bool) Signal {
	if !g.combo.Has(code) {
		return None
	}

	if !down {
		delete(g.down, code)
		if g.active {
			g.active = false
			return Release
		}
		return None
	}

	if g.down[code] {
		return None // auto-repeat
	}
	g.down[code] = true
	if !g.active && g.satisfied() {
		g.active = true
		return Press
	}
	return None
}

// Reset forgets all held keys without emitting a signal.
func (g *Gesture) Reset() {
	clear(g.down)
	g.active = false
}

func (g *Gesture) satisfied() bool {
	if len(g.combo) == 0 {
		return false
	}
	for _, set := range g.combo {
		held := false
		for _, c := range set {
			if g.down[c] {
				held = true
				break
			}
		}
		if !held {
			return false
		}
	}
	return true
}
