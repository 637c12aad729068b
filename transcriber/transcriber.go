package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"whispr/audio"
	"whispr/log"
	"whispr/model"
)

const (
	// MinSamples is the shortest buffer worth running through the model.
	MinSamples = 4000
	// SilenceRMS is the level below which a buffer is treated as silence.
	SilenceRMS   = 0.001
	LanguageAuto = "auto"
)

var (
	ErrInferenceFailure = errors.New("inference failed")
	ErrAccelUnavailable = fmt.Errorf("%w: acceleration unavailable", model.ErrModelLoadFailure)
)

// Params are passed to a single inference call.
type Params struct {
	Language  string
	Translate bool
	Threads   int
}

// Model is a loaded speech model. Infer is never called concurrently on
// the same process.
type Model interface {
	Infer(samples []float32, p Params) (string, error)
	Close() error
}

type Engine interface {
	Name() string
	AccelAvailable() bool
	Load(path string, accel bool) (Model, error)
}

type AccelPolicy string

const (
	PolicyFallback AccelPolicy = "fallback"
	PolicyStrict   AccelPolicy = "strict"
)

func ParseAccelPolicy(s string) (AccelPolicy, error) {
	switch AccelPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFallback:
		return PolicyFallback, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown accel policy %q (want fallback or strict)", s)
}

type Request struct {
	Audio     *audio.Buffer
	ModelID   string
	Accel     bool
	Language  string
	Translate bool
}

type Result struct {
	Text  string
	Blank bool

	ModelID string
	Accel   bool // acceleration actually used
	Audio   time.Duration
	Wait    time.Duration // acquire and queue time before inference
	Infer   time.Duration
	Skipped bool // blank decided without running the model
}

type Options struct {
	Policy  AccelPolicy
	Threads int
}

// Transcriber runs one inference at a time against models borrowed from
// its cache.
type Transcriber struct {
	engine  Engine
	cache   *model.Cache[Model]
	policy  AccelPolicy
	threads int

	inferMu sync.Mutex
}

// NewCache builds a model cache whose loader is engine.Load.
func NewCache(engine Engine, resolve model.ResolveFunc, opts model.Options) *model.Cache[Model] {
	return model.NewCache[Model](resolve, engine.Load, opts)
}

func New(engine Engine, cache *model.Cache[Model], opts Options) *Transcriber {
	if opts.Policy == "" {
		opts.Policy = PolicyFallback
	}
	return &Transcriber{
		engine:  engine,
		cache:   cache,
		policy:  opts.Policy,
		threads: opts.Threads,
	}
}

func (t *Transcriber) Engine() Engine            { return t.engine }
func (t *Transcriber) Cache() *model.Cache[Model] { return t.cache }

// Transcribe blocks until inference finishes. ctx bounds only the wait for
// the model; a running inference is never interrupted.
func (t *Transcriber) Transcribe(ctx context.Context, req Request) (Result, error) {
	res := Result{ModelID: req.ModelID}
	var samples []float32
	if req.Audio != nil {
		samples = req.Audio.Samples
		res.Audio = req.Audio.Duration
	}

	if IsSilent(samples) {
		log.Infof("skipping inference: %d samples, rms=%.5f", len(samples), audio.RMS(samples))
		res.Blank = true
		res.Skipped = true
		return res, nil
	}

	accel, err := t.resolveAccel(req.Accel)
	if err != nil {
		return res, err
	}
	res.Accel = accel

	start := time.Now()
	lease, err := t.cache.Acquire(ctx, model.Key{ID: req.ModelID, Accel: accel})
	if err != nil {
		return res, err
	}
	defer lease.Release()

	t.inferMu.Lock()
	defer t.inferMu.Unlock()
	res.Wait = time.Since(start)

	inferStart := time.Now()
	text, err := lease.Handle().Infer(samples, Params{
		Language:  NormalizeLanguage(req.Language),
		Translate: req.Translate,
		Threads:   t.threads,
	})
	res.Infer = time.Since(inferStart)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}

	text = strings.TrimSpace(text)
	if IsBlankText(text) {
		res.Blank = true
		return res, nil
	}
	res.Text = text
	return res, nil
}

func (t *Transcriber) resolveAccel(requested bool) (bool, error) {
	if !requested || t.engine.AccelAvailable() {
		return requested, nil
	}
	if t.policy == PolicyStrict {
		return false, fmt.Errorf("%w on %s", ErrAccelUnavailable, t.engine.Name())
	}
	log.Warnf("acceleration requested but unavailable on %s, running on CPU", t.engine.Name())
	return false, nil
}

// IsSilent reports whether samples are too short or too quiet to transcribe.
func IsSilent(samples []float32) bool {
	return len(samples) < MinSamples || audio.RMS(samples) < SilenceRMS
}

var blankTokens = map[string]bool{
	"[blank_audio]": true,
	"blank_audio":   true,
	"[silence]":     true,
	"(silence)":     true,
	"[no_speech]":   true,
	"(no speech)":   true,
}

// IsBlankText reports whether model output carries no speech.
func IsBlankText(text string) bool {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return true
	}
	if blankTokens[s] {
		return true
	}
	// "[ Silence ]" and friends
	return blankTokens[strings.Join(strings.Fields(s), "")]
}

func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return LanguageAuto
	}
	return lang
}
