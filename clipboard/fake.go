package clipboard

import "sync"

// Fake is an in-memory Clipboard.
type Fake struct {
	mu      sync.Mutex
	text    string
	history []string
}

func (f *Fake) Read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *Fake) Write(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.history = append(f.history, text)
	return nil
}

// History returns every value written, oldest first.
func (f *Fake) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}
