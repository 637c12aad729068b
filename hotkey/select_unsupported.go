//go:build !linux && !darwin && !windows

package hotkey

import "errors"

var errUnsupported = errors.New("no global hotkey backend for this platform")

type unsupported struct{}

func Select(Combo) Backend { return unsupported{} }

func Diagnose(Combo) (string, error) { return "", errUnsupported }

func (unsupported) Name() string { return "none" }

func (unsupported) Register() error { return errUnsupported }

func (unsupported) Unregister() {}

func (unsupported) Triggers() <-chan struct{} { return nil }
