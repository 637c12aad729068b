package clipboard

import cb "github.com/atotto/clipboard"

// Clipboard is the system clipboard as seen by the paste sink.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

type system struct{}

func (system) Read() (string, error)   { return cb.ReadAll() }
func (system) Write(text string) error { return cb.WriteAll(text) }

// System returns the OS clipboard.
func System() Clipboard { return system{} }

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Unsupported reports whether no clipboard utility is available.
func Unsupported() bool {
	return cb.Unsupported
}
