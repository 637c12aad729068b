package transcriber

import (
	"sync"
	"sync/atomic"
	"time"
)

// FakeEngine returns Text for every inference. Block, when set, holds each
// inference until it is closed or receives a value.
type FakeEngine struct {
	Text      string
	LoadDelay time.Duration
	LoadErr   error
	InferErr  error
	Accel     bool
	Block     chan struct{}

	loads  atomic.Int32
	infers atomic.Int32
	closes atomic.Int32

	mu         sync.Mutex
	lastParams Params
}

func NewFakeEngine(text string) *FakeEngine {
	return &FakeEngine{Text: text}
}

func (f *FakeEngine) Name() string         { return "fake" }
func (f *FakeEngine) AccelAvailable() bool { return f.Accel }

func (f *FakeEngine) Load(path string, accel bool) (Model, error) {
	f.loads.Add(1)
	time.Sleep(f.LoadDelay)
	if f.LoadErr != nil {
		return nil, f.LoadErr
	}
	return &fakeModel{engine: f}, nil
}

func (f *FakeEngine) Loads() int      { return int(f.loads.Load()) }
func (f *FakeEngine) Inferences() int { return int(f.infers.Load()) }
func (f *FakeEngine) Closes() int     { return int(f.closes.Load()) }

func (f *FakeEngine) LastParams() Params {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastParams
}

type fakeModel struct {
	engine *FakeEngine
}

func (m *fakeModel) Infer(samples []float32, p Params) (string, error) {
	f := m.engine
	f.infers.Add(1)
	f.mu.Lock()
	f.lastParams = p
	f.mu.Unlock()
	if f.Block != nil {
		<-f.Block
	}
	if f.InferErr != nil {
		return "", f.InferErr
	}
	return f.Text, nil
}

func (m *fakeModel) Close() error {
	m.engine.closes.Add(1)
	return nil
}
