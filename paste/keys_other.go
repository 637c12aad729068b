//go:build !linux && !darwin && !windows

package paste

import "errors"

func Init() error { return errors.New("paste keystroke not supported on this platform") }

func Send() error { return Init() }
