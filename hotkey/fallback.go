package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"whispr/log"
)

// fallback registers primary and, if that fails, secondary.
type fallback struct {
	primary, secondary Backend

	mu     sync.Mutex
	active Backend
}

func NewFallback(primary, secondary Backend) Backend {
	return &fallback{primary: primary, secondary: secondary}
}

// Name reports the backend in use, or both candidates before Register.
func (f *fallback) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return f.active.Name()
	}
	return f.primary.Name() + "/" + f.secondary.Name()
}

func (f *fallback) Register() error {
	err := f.primary.Register()
	if err == nil {
		f.setActive(f.primary)
		return nil
	}
	if errors.Is(err, ErrRegistering) {
		return err
	}
	log.Warnf("%s hotkey unavailable, falling back to %s: %v", f.primary.Name(), f.secondary.Name(), err)
	if err2 := f.secondary.Register(); err2 != nil {
		return fmt.Errorf("%s: %w; %s: %w", f.primary.Name(), err, f.secondary.Name(), err2)
	}
	f.setActive(f.secondary)
	return nil
}

func (f *fallback) setActive(b Backend) {
	f.mu.Lock()
	f.active = b
	f.mu.Unlock()
}

func (f *fallback) Unregister() {
	f.mu.Lock()
	b := f.active
	f.active = nil
	f.mu.Unlock()
	if b != nil {
		b.Unregister()
	}
}

func (f *fallback) Triggers() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil
	}
	return f.active.Triggers()
}
