//go:build darwin || windows

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	combo    Combo
	hk       *hotkey.Hotkey
	triggers chan struct{}
	stop     chan struct{}
}

// NewNative registers the combo with the OS (Cocoa or Win32). On macOS the
// process must be running under mainthread.Init.
func NewNative(combo Combo) Backend {
	return &xHotkey{
		combo:    combo,
		triggers: make(chan struct{}, 1),
	}
}

func (h *xHotkey) Name() string { return "native" }

func (h *xHotkey) Register() error {
	key, ok := xKeys[h.combo.Key]
	if !ok {
		return fmt.Errorf("key %s is not supported by the native hotkey backend", h.combo.Key)
	}
	h.hk = hotkey.New(xModifiers(h.combo), key)
	if err := h.hk.Register(); err != nil {
		return err
	}
	h.stop = make(chan struct{})
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				notify(h.triggers)
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	if h.stop == nil {
		return
	}
	close(h.stop)
	h.stop = nil
	h.hk.Unregister()
}

func (h *xHotkey) Triggers() <-chan struct{} {
	return h.triggers
}

var xKeys = map[string]hotkey.Key{
	"SPACE": hotkey.KeySpace, "ENTER": hotkey.KeyReturn, "TAB": hotkey.KeyTab, "ESCAPE": hotkey.KeyEscape,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD, "E": hotkey.KeyE,
	"F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH, "I": hotkey.KeyI, "J": hotkey.KeyJ,
	"K": hotkey.KeyK, "L": hotkey.KeyL, "M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO,
	"P": hotkey.KeyP, "Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX, "Y": hotkey.KeyY,
	"Z": hotkey.KeyZ,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
}

// Select returns the OS hotkey backend.
func Select(combo Combo) Backend {
	return NewNative(combo)
}

func Diagnose(combo Combo) (string, error) {
	if _, ok := xKeys[combo.Key]; !ok {
		return "", fmt.Errorf("key %s is not supported", combo.Key)
	}
	return fmt.Sprintf("native hotkey support available (%s)", combo), nil
}
