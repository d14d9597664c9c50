//go:build !windows

package clipboard

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

func sendPasteChord() error {
	if err := robotgo.KeyTap("v", currentModifier); err != nil {
		return fmt.Errorf("send paste chord: %w", err)
	}
	return nil
}
