//go:build linux || windows

package paste

import "github.com/micmonay/keybd_event"

func setModifier(kb *keybd_event.KeyBonding) { kb.HasCTRL(true) }
