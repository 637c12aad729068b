//go:build linux

package hotkey

import "os"

// Select picks the backend for the current session: the portal with an
// evdev fallback on Wayland, evdev everywhere else.
func Select(combo Combo) Backend {
	if IsWayland(os.Getenv) {
		return NewFallback(NewPortal(combo), NewEvdev(combo))
	}
	return NewEvdev(combo)
}

func Diagnose(combo Combo) (string, error) {
	msg, err := diagnoseEvdev()
	if err != nil {
		return "", err
	}
	if IsWayland(os.Getenv) {
		msg = "wayland session, portal preferred; evdev fallback: " + msg
	}
	return msg, nil
}
