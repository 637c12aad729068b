package hotkey

import (
	"fmt"
	"runtime"
	"strings"
)

type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

var modifierOrder = []struct {
	mod    Modifier
	label  string
	portal string
}{
	{ModCtrl, "Ctrl", "CTRL"},
	{ModAlt, "Alt", "ALT"},
	{ModShift, "Shift", "SHIFT"},
	{ModSuper, "Super", "LOGO"},
}

// Combo is a parsed accelerator such as "CommandOrControl+Shift+Space".
// Key is the canonical upper-case key name.
type Combo struct {
	Mods Modifier
	Key  string
}

func (c Combo) Has(m Modifier) bool { return c.Mods&m != 0 }

func (c Combo) String() string {
	var parts []string
	for _, m := range modifierOrder {
		if c.Has(m.mod) {
			parts = append(parts, m.label)
		}
	}
	key := c.Key
	if len(key) > 1 && !strings.HasPrefix(key, "F") {
		key = key[:1] + strings.ToLower(key[1:])
	}
	return strings.Join(append(parts, key), "+")
}

// Portal renders the combo in the XDG shortcuts trigger format.
func (c Combo) Portal() string {
	var parts []string
	for _, m := range modifierOrder {
		if c.Has(m.mod) {
			parts = append(parts, m.portal)
		}
	}
	key, ok := portalKeys[c.Key]
	if !ok {
		key = strings.ToLower(c.Key)
	}
	return strings.Join(append(parts, key), "+")
}

var portalKeys = map[string]string{
	"SPACE":  "space",
	"ENTER":  "Return",
	"TAB":    "Tab",
	"ESCAPE": "Escape",
}

// ParseCombo parses an accelerator string. CommandOrControl means Cmd on
// macOS and Ctrl elsewhere.
func ParseCombo(s string) (Combo, error) {
	return parseCombo(s, runtime.GOOS)
}

func parseCombo(s, goos string) (Combo, error) {
	var c Combo
	parts := strings.Split(s, "+")
	for i, raw := range parts {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key", s)
		}
		if mod, ok := modifierFor(tok, goos); ok {
			if i == len(parts)-1 {
				return Combo{}, fmt.Errorf("hotkey %q: missing key after modifiers", s)
			}
			c.Mods |= mod
			continue
		}
		if i != len(parts)-1 {
			return Combo{}, fmt.Errorf("hotkey %q: %q is not a modifier", s, raw)
		}
		key, ok := canonicalKey(tok)
		if !ok {
			return Combo{}, fmt.Errorf("hotkey %q: unsupported key %q", s, raw)
		}
		c.Key = key
	}
	if c.Mods == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: at least one modifier is required", s)
	}
	return c, nil
}

func modifierFor(tok, goos string) (Modifier, bool) {
	switch tok {
	case "commandorcontrol", "cmdorctrl":
		if goos == "darwin" {
			return ModSuper, true
		}
		return ModCtrl, true
	case "control", "ctrl":
		return ModCtrl, true
	case "shift":
		return ModShift, true
	case "alt", "option":
		return ModAlt, true
	case "super", "meta", "command", "cmd", "win":
		return ModSuper, true
	}
	return 0, false
}

var keyAliases = map[string]string{
	"space":  "SPACE",
	"enter":  "ENTER",
	"return": "ENTER",
	"tab":    "TAB",
	"esc":    "ESCAPE",
	"escape": "ESCAPE",
}

func canonicalKey(tok string) (string, bool) {
	if k, ok := keyAliases[tok]; ok {
		return k, true
	}
	if len(tok) == 1 {
		ch := tok[0]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			return strings.ToUpper(tok), true
		}
		return "", false
	}
	if tok[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(tok, "f%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprintf("f%d", n) == tok {
			return strings.ToUpper(tok), true
		}
	}
	return "", false
}
