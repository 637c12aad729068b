package hotkey

import (
	"errors"
)

const (
	ShortcutID          = "record-toggle"
	ShortcutDescription = "Toggle Recording"
	DefaultCombo        = "CommandOrControl+Shift+Space"
)

var (
	ErrPortalUnavailable = errors.New("global shortcuts portal unavailable")
	ErrRegistering       = errors.New("hotkey registration already in progress")
)

// Backend delivers a trigger every time the global shortcut fires.
// Triggers is valid after a successful Register.
type Backend interface {
	Name() string
	Register() error
	Unregister()
	Triggers() <-chan struct{}
}

// notify performs a non-blocking send; a trigger arriving while the previous
// one is still queued is dropped.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
