package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const fileName = "settings.yaml"

// DefaultPath returns $XDG_CONFIG_HOME/whispr/settings.yaml, or the OS
// config directory when XDG_CONFIG_HOME is unset.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "whispr", fileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "whispr", fileName), nil
}

// Loader reads the settings file and applies environment overrides. Tests
// can set Lookup to inject a deterministic environment.
type Loader struct {
	Path   string
	Lookup func(string) (string, bool)
}

// Load returns validated settings. A missing file is created with defaults.
func (l Loader) Load() (Settings, error) {
	l.Lookup = lookupOrEnv(l.Lookup)
	if l.Path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Settings{}, fmt.Errorf("config: locate settings: %w", err)
		}
		l.Path = p
	}

	s, err := ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s = Defaults()
		if err := WriteFile(l.Path, s); err != nil {
			return Settings{}, err
		}
	} else if err != nil {
		return Settings{}, err
	}

	if err := applyEnv(l.Lookup, &s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ReadFile decodes a settings file without validating it.
func ReadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return s, nil
}

func WriteFile(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

func applyEnv(lookup func(string) (string, bool), s *Settings) error {
	overrideString(lookup, "WHISPR_MODEL", &s.Model)
	overrideString(lookup, "WHISPR_LANGUAGE", &s.Language)
	overrideString(lookup, "WHISPR_MODELS_DIR", &s.ModelsDir)
	if err := overrideBool(lookup, "WHISPR_ACCEL", &s.Accel); err != nil {
		return err
	}
	return overrideBool(lookup, "WHISPR_TRANSLATE", &s.Translate)
}

func lookupOrEnv(lookup func(string) (string, bool)) func(string) (string, bool) {
	if lookup == nil {
		return os.LookupEnv
	}
	return lookup
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = b
	return nil
}
