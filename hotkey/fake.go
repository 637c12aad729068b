package hotkey

import "sync"

type Fake struct {
	name     string
	triggers chan struct{}

	mu          sync.Mutex
	RegisterErr error
	registered  bool
	registers   int
}

func NewFake() *Fake {
	return &Fake{name: "fake", triggers: make(chan struct{}, 1)}
}

func (f *Fake) Name() string { return f.name }

func (f *Fake) Register() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.registered = true
	return nil
}

func (f *Fake) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

func (f *Fake) Triggers() <-chan struct{} { return f.triggers }

func (f *Fake) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

// SimTrigger fires the shortcut once, blocking until the previous trigger
// has been consumed.
func (f *Fake) SimTrigger() { f.triggers <- struct{}{} }
