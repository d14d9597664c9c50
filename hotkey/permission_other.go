//go:build !darwin

package hotkey

// IsAccessibilityEnabled always reports true; only macOS gates global key events.
func IsAccessibilityEnabled(bool) bool { return true }

// OpenAccessibilitySettings is a no-op outside macOS.
func OpenAccessibilitySettings() error { return nil }
