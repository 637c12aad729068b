//go:build !whispercpp

package transcriber

import "errors"

var errNoNative = errors.New("whisper.cpp support not compiled in, rebuild with -tags whispercpp")

type stubEngine struct{}

// Native returns a placeholder engine whose loads always fail.
func Native() Engine { return stubEngine{} }

func (stubEngine) Name() string         { return "stub" }
func (stubEngine) AccelAvailable() bool { return false }

func (stubEngine) Load(string, bool) (Model, error) { return nil, errNoNative }
