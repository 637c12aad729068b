//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// golang.design/x/hotkey needs the OS main thread on macOS and Windows.
func main() {
	mainthread.Init(run)
}
