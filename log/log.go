package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// Metrics describes one finished transcription.
type Metrics struct {
	Cycle     string
	Model     string
	Accel     bool
	Language  string
	AudioS    float64
	InferMs   float64
	WaitMs    float64 // time spent acquiring the model, including a cold load
	Blank     bool
	Persisted string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absFromWd(flagPath)
	}

	// Priority 2: WHISPR_LOG_PATH environment variable
	if envPath := os.Getenv("WHISPR_LOG_PATH"); envPath != "" {
		return absFromWd(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absFromWd(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Event records a pipeline status event with its JSON payload.
func Event(name, cycle string, payload any) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("cycle", cycle).
		Interface("payload", payload).
		Msg(name)
}

func ModelLoaded(id string, accel bool, took time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", id).
		Bool("accel", accel).
		Float64("load_ms", float64(took.Microseconds())/1000).
		Msg("model_loaded")
}

func ModelEvicted(id string, accel bool, reason string, idle time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("model", id).
		Bool("accel", accel).
		Str("reason", reason).
		Float64("idle_s", idle.Seconds()).
		Msg("model_evicted")
}

func TranscriptionMetrics(m Metrics) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("cycle", m.Cycle).
		Str("model", m.Model).
		Bool("accel", m.Accel).
		Str("lang", m.Language)
	if m.Persisted != "" {
		ev = ev.Str("audio_path", m.Persisted)
	}
	ev.Float64("audio_s", m.AudioS).
		Float64("wait_ms", m.WaitMs).
		Float64("infer_ms", m.InferMs).
		Bool("blank", m.Blank).
		Msg("transcription")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(engine, model, hotkeyBackend string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Str("model", model).
		Str("hotkey", hotkeyBackend).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}
