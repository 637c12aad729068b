//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

var evdevModifiers = map[uint16]Modifier{
	29:  ModCtrl,  // KEY_LEFTCTRL
	97:  ModCtrl,  // KEY_RIGHTCTRL
	42:  ModShift, // KEY_LEFTSHIFT
	54:  ModShift, // KEY_RIGHTSHIFT
	56:  ModAlt,   // KEY_LEFTALT
	100: ModAlt,   // KEY_RIGHTALT
	125: ModSuper, // KEY_LEFTMETA
	126: ModSuper, // KEY_RIGHTMETA
}

var evdevKeys = func() map[string]uint16 {
	m := map[string]uint16{
		"ESCAPE": 1,
		"TAB":    15,
		"ENTER":  28,
		"SPACE":  57,
		"0":      11,
		"F11":    87,
		"F12":    88,
	}
	for i, k := range "123456789" {
		m[string(k)] = uint16(2 + i)
	}
	rows := []struct {
		keys  string
		first uint16
	}{
		{"QWERTYUIOP", 16},
		{"ASDFGHJKL", 30},
		{"ZXCVBNM", 44},
	}
	for _, r := range rows {
		for i, k := range r.keys {
			m[string(k)] = r.first + uint16(i)
		}
	}
	for i := range 10 {
		m[fmt.Sprintf("F%d", i+1)] = uint16(59 + i)
	}
	return m
}()

type evdevHotkey struct {
	combo    Combo
	code     uint16
	triggers chan struct{}
	files    []*os.File
	stop     chan struct{}
	once     sync.Once
}

// NewEvdev reads /dev/input directly. The user must be in the 'input' group.
func NewEvdev(combo Combo) Backend {
	return &evdevHotkey{
		combo:    combo,
		code:     evdevKeys[combo.Key],
		triggers: make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Name() string { return "evdev" }

func (h *evdevHotkey) Register() error {
	if h.code == 0 {
		return fmt.Errorf("key %s has no evdev code", h.combo.Key)
	}
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *evdevHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	m := matcher{combo: h.combo, code: h.code}

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey {
				continue
			}
			if m.feed(evCode, evValue) {
				notify(h.triggers)
			}
		}
	}
}

// matcher tracks held modifiers for one keyboard. Left and right variants
// are counted separately so releasing one keeps the other held.
type matcher struct {
	combo   Combo
	code    uint16
	held    map[uint16]bool
	keyDown bool
}

// feed returns true on the press that completes the combo. Auto-repeat
// (value 2) and a held key never fire again until released.
func (m *matcher) feed(code uint16, value int32) bool {
	if m.held == nil {
		m.held = make(map[uint16]bool)
	}
	pressed := value == keyPress
	released := value == keyRelease

	if _, ok := evdevModifiers[code]; ok {
		if pressed {
			m.held[code] = true
		} else if released {
			delete(m.held, code)
		}
		return false
	}
	if code != m.code {
		return false
	}
	if released {
		m.keyDown = false
		return false
	}
	if !pressed || m.keyDown {
		return false
	}
	var mods Modifier
	for c := range m.held {
		mods |= evdevModifiers[c]
	}
	if mods&m.combo.Mods != m.combo.Mods {
		return false
	}
	m.keyDown = true
	return true
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Triggers() <-chan struct{} {
	return h.triggers
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

func diagnoseEvdev() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
