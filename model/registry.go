package model

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

type Info struct {
	ID     string
	SizeMB int
}

// Known lists the ggml whisper models the app knows how to name.
var Known = []Info{
	{"tiny", 75},
	{"base", 142},
	{"small", 466},
	{"medium", 1500},
	{"large", 2900},
	{"turbo", 809},
}

func Lookup(id string) (Info, bool) {
	for _, m := range Known {
		if m.ID == id {
			return m, true
		}
	}
	return Info{}, false
}

func FileName(id string) string { return "ggml-" + id + ".bin" }

// NotFoundError reports a model file missing from the models directory.
type NotFoundError struct {
	ID   string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model '%s' not found, download it first (expected %s)", e.ID, e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrModelNotFound }

// Resolver returns a ResolveFunc for dir. The directory is read through
// dirFn on every call so a settings change takes effect on the next load.
func Resolver(dirFn func() string) ResolveFunc {
	return func(id string) (string, error) {
		return Path(dirFn(), id)
	}
}

func Path(dir, id string) (string, error) {
	p := filepath.Join(dir, FileName(id))
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return "", &NotFoundError{ID: id, Path: p}
	}
	return p, nil
}

// Available returns the known models present in dir.
func Available(dir string) []Info {
	var out []Info
	for _, m := range Known {
		if _, err := Path(dir, m.ID); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func DefaultDir() string {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "whispr", "models")
	}
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "whispr", "models")
		}
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "whispr", "models")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "whispr", "models")
}
