package config

import (
	"fmt"
	"time"

	"whispr/encoder"
	"whispr/hotkey"
	"whispr/transcriber"
)

const (
	DefaultModel           = "base"
	DefaultLanguage        = "en"
	DefaultHotkey          = hotkey.DefaultCombo
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultReclaimInterval = 30 * time.Second
	DefaultResetDelay      = 2500 * time.Millisecond
	MinResetDelay          = 2 * time.Second
	MaxResetDelay          = 3 * time.Second
	DefaultThreads         = 4
	DefaultCaptureRate     = 16000
)

// Settings is the on-disk configuration. Zero values are replaced by
// defaults in Validate.
type Settings struct {
	Model       string `yaml:"model"`
	Accel       bool   `yaml:"accel"`
	AccelPolicy string `yaml:"accel_policy"`
	Language    string `yaml:"language"`
	Translate   bool   `yaml:"translate"`
	Hotkey      string `yaml:"hotkey"`
	ModelsDir   string `yaml:"models_dir,omitempty"`
	Threads     int    `yaml:"threads"`

	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ReclaimInterval time.Duration `yaml:"reclaim_interval"`
	ResetDelay      time.Duration `yaml:"reset_delay"`

	Device          string `yaml:"device,omitempty"`
	CaptureRate     int    `yaml:"capture_rate"`
	CaptureChannels int    `yaml:"capture_channels"`

	AutoPaste     bool   `yaml:"auto_paste"`
	ArchiveDir    string `yaml:"archive_dir,omitempty"`
	ArchiveFormat string `yaml:"archive_format,omitempty"`
	Beep          bool   `yaml:"beep"`
	Notify        bool   `yaml:"notify"`
}

// Defaults returns the settings written on first run.
func Defaults() Settings {
	s := Settings{Beep: true, Notify: true}
	_ = s.Validate()
	return s
}

// Validate fills defaults and rejects values the app cannot use.
func (s *Settings) Validate() error {
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.Language == "" {
		s.Language = DefaultLanguage
	}
	s.Language = transcriber.NormalizeLanguage(s.Language)
	if s.Hotkey == "" {
		s.Hotkey = DefaultHotkey
	}
	if s.AccelPolicy == "" {
		s.AccelPolicy = string(transcriber.PolicyFallback)
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ReclaimInterval == 0 {
		s.ReclaimInterval = DefaultReclaimInterval
	}
	if s.ResetDelay == 0 {
		s.ResetDelay = DefaultResetDelay
	}
	if s.Threads == 0 {
		s.Threads = DefaultThreads
	}
	if s.CaptureRate == 0 {
		s.CaptureRate = DefaultCaptureRate
	}
	if s.CaptureChannels == 0 {
		s.CaptureChannels = 1
	}

	if _, err := transcriber.ParseAccelPolicy(s.AccelPolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := hotkey.ParseCombo(s.Hotkey); err != nil {
		return fmt.Errorf("config: hotkey: %w", err)
	}
	if s.ArchiveFormat != "" {
		if _, err := encoder.ParseFormat(s.ArchiveFormat); err != nil {
			return fmt.Errorf("config: archive_format: %w", err)
		}
	}
	if s.IdleTimeout < 0 || s.ReclaimInterval < 0 || s.ResetDelay < 0 {
		return fmt.Errorf("config: durations must be positive")
	}
	if s.ResetDelay < MinResetDelay || s.ResetDelay > MaxResetDelay {
		return fmt.Errorf("config: reset_delay must be between %v and %v, got %v", MinResetDelay, MaxResetDelay, s.ResetDelay)
	}
	if s.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", s.Threads)
	}
	if s.CaptureChannels < 1 || s.CaptureChannels > 2 {
		return fmt.Errorf("config: capture_channels must be 1 or 2, got %d", s.CaptureChannels)
	}
	return nil
}

// Policy returns the parsed accel policy. Validate must have succeeded.
func (s Settings) Policy() transcriber.AccelPolicy {
	p, _ := transcriber.ParseAccelPolicy(s.AccelPolicy)
	return p
}
