package audio

import (
	"encoding/binary"
	"os"
	"sync"
	"time"

	"whispr/encoder"
)

const fakeFrameSize = 1024

// FakeContext replays fixed PCM16 mono audio through every capture it opens.
type FakeContext struct {
	pcm      []byte
	rate     int
	realtime bool

	mu          sync.Mutex
	OpenErr     error // returned by NewCapture when set
	StartErr    error // returned by Start when set
	opened      int
	lastDevice  *DeviceInfo
	lastCapture *FakeCapture
}

// NewFakeContext loads a 16-bit WAV fixture. In realtime mode chunks are
// paced at the file's sample rate; otherwise the whole file is delivered on
// Start and silence follows.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	samples, rate, channels, err := encoder.ReadWAV(f)
	if err != nil {
		return nil, err
	}
	mono := Downmix(PCM16ToFloat32(int16Bytes(samples)), channels)
	return NewFakeContextPCM(floatToPCM16(mono), rate, realtime), nil
}

func NewFakeContextPCM(pcm []byte, rate int, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, rate: rate, realtime: realtime}
}

// Silence returns n seconds of zeroed PCM16 mono at rate.
func Silence(seconds float64, rate int) []byte {
	return make([]byte, int(seconds*float64(rate))*2)
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "Fake Microphone"}}, nil
}

func (f *FakeContext) Close() {}

// Opened reports how many captures were created.
func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) LastDevice() *DeviceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDevice
}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.opened++
	f.lastDevice = device
	f.lastCapture = &FakeCapture{
		pcm:       f.pcm,
		rate:      f.rate,
		realtime:  f.realtime,
		startErr:  f.StartErr,
		audioDone: make(chan struct{}),
	}
	return f.lastCapture, nil
}

// LastCapture returns the most recently opened capture, or nil.
func (f *FakeContext) LastCapture() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCapture
}

type FakeCapture struct {
	pcm       []byte
	rate      int
	realtime  bool
	startErr  error
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

// AudioDone is closed once the whole fixture has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	go f.feed()
	return nil
}

func (f *FakeCapture) feed() {
	defer close(f.feedDone)
	chunkBytes := fakeFrameSize * 2
	interval := time.Millisecond
	if f.realtime && f.rate > 0 {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.rate)
	}
	silence := make([]byte, chunkBytes)
	pos := 0
	finished := false

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}
		cb := f.callback()
		switch {
		case cb == nil:
		case pos < len(f.pcm):
			end := min(pos+chunkBytes, len(f.pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, f.pcm[pos:end])
			cb(chunk, uint32(len(chunk)/2))
			pos = end
			if !f.realtime {
				continue // deliver the fixture in one burst
			}
		default:
			if !finished {
				finished = true
				close(f.audioDone)
			}
			if f.realtime {
				cb(silence, fakeFrameSize)
			}
		}
		select {
		case <-f.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func int16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func floatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
