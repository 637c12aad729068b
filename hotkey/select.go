package hotkey

import "strings"

// IsWayland reports whether the session runs under a Wayland compositor.
func IsWayland(getenv func(string) string) bool {
	if getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	return strings.EqualFold(getenv("XDG_SESSION_TYPE"), "wayland")
}
