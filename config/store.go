package config

import "sync"

// Store holds the current settings. Readers get a copy; Update swaps the
// whole value and notifies subscribers.
type Store struct {
	mu   sync.RWMutex
	cur  Settings
	subs []func(old, cur Settings)
}

func NewStore(s Settings) *Store {
	return &Store{cur: s}
}

func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Update validates s and replaces the current settings. Subscribers run on
// the caller's goroutine after the lock is released.
func (st *Store) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	old := st.cur
	st.cur = s
	subs := append([]func(old, cur Settings){}, st.subs...)
	st.mu.Unlock()

	for _, fn := range subs {
		fn(old, s)
	}
	return nil
}

// Modify applies fn to a copy of the current settings and stores the result.
func (st *Store) Modify(fn func(*Settings)) error {
	s := st.Get()
	fn(&s)
	return st.Update(s)
}

func (st *Store) Subscribe(fn func(old, cur Settings)) {
	st.mu.Lock()
	st.subs = append(st.subs, fn)
	st.mu.Unlock()
}
