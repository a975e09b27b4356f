//go:build !darwin

package hotkey

// IsAccessibilityEnabled always returns true on this platform.
func IsAccessibilityEnabled(bool) bool {
	return true
}
