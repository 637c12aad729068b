//go:build !windows

package doctor

import "os/exec"

// resetTerminal undoes raw mode a hotkey backend or picker may have left.
func resetTerminal() {
	_ = exec.Command("stty", "sane").Run()
}
