//go:build windows

package clipboard

import (
	"fmt"

	"github.com/micmonay/keybd_event"
)

func sendPasteChord() error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("init keyboard: %w", err)
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("send paste chord: %w", err)
	}
	return nil
}
