//go:build whispercpp

package transcriber

import (
	"fmt"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type nativeEngine struct{}

// Native returns the whisper.cpp engine.
func Native() Engine { return nativeEngine{} }

func (nativeEngine) Name() string { return "whisper.cpp" }

// AccelAvailable reports whether libwhisper was linked with a GPU backend.
func (nativeEngine) AccelAvailable() bool { return gpuBuild }

func (nativeEngine) Load(path string, accel bool) (Model, error) {
	// the GPU backend is chosen when libwhisper is built, so accel only
	// selects a separate cache slot here
	m, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return &nativeModel{model: m}, nil
}

type nativeModel struct {
	model whisper.Model
}

func (m *nativeModel) Infer(samples []float32, p Params) (string, error) {
	ctx, err := m.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}

	lang := p.Language
	if !m.model.IsMultilingual() {
		lang = "en"
	}
	if err := ctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language %q: %w", lang, err)
	}
	ctx.SetTranslate(p.Translate)
	if p.Threads > 0 {
		ctx.SetThreads(uint(p.Threads))
	}

	var sb strings.Builder
	onSegment := func(seg whisper.Segment) {
		sb.WriteString(seg.Text)
	}
	if err := ctx.Process(samples, nil, onSegment, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (m *nativeModel) Close() error {
	return m.model.Close()
}
