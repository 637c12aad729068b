package hotkey

import "golang.design/x/hotkey"

func xModifiers(c Combo) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if c.Has(ModCtrl) {
		mods = append(mods, hotkey.ModCtrl)
	}
	if c.Has(ModShift) {
		mods = append(mods, hotkey.ModShift)
	}
	if c.Has(ModAlt) {
		mods = append(mods, hotkey.ModAlt)
	}
	if c.Has(ModSuper) {
		mods = append(mods, hotkey.ModWin)
	}
	return mods
}
