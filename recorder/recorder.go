package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"whispr/audio"
	"whispr/encoder"
	"whispr/log"
)

var (
	ErrAlreadyRecording  = errors.New("already recording")
	ErrNotRecording      = errors.New("not recording")
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

type Options struct {
	// Capture format requested from the device. Stop converts whatever
	// arrives to mono audio.SampleRate.
	Capture audio.CaptureConfig

	ArchiveDir    string
	ArchiveFormat encoder.Format

	// OnLevel receives the RMS of every captured chunk.
	OnLevel func(rms float64)
}

// Recorder owns the microphone stream for one recording at a time.
type Recorder struct {
	ctx  audio.Context
	opts Options

	mu     sync.Mutex
	device *audio.DeviceInfo
	active *session
}

type session struct {
	capture audio.CaptureDevice
	started time.Time

	mu      sync.Mutex
	pcm     []byte
	frames  uint64
	stopped bool
}

func New(ctx audio.Context, opts Options) *Recorder {
	if opts.Capture.SampleRate == 0 {
		opts.Capture.SampleRate = audio.SampleRate
	}
	if opts.Capture.Channels == 0 {
		opts.Capture.Channels = audio.Channels
	}
	return &Recorder{ctx: ctx, opts: opts}
}

// SetDevice selects the input for the next Start; nil means system default.
func (r *Recorder) SetDevice(dev *audio.DeviceInfo) {
	r.mu.Lock()
	r.device = dev
	r.mu.Unlock()
}

func (r *Recorder) Device() *audio.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens the device and begins buffering. It returns as soon as the
// stream is running.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrAlreadyRecording
	}

	capture, err := r.ctx.NewCapture(r.device, r.opts.Capture)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s := &session{capture: capture, started: time.Now()}
	onLevel := r.opts.OnLevel
	capture.SetCallback(func(data []byte, frameCount uint32) {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		s.pcm = append(s.pcm, data...)
		s.frames += uint64(frameCount)
		s.mu.Unlock()

		if onLevel != nil {
			onLevel(audio.LevelPCM16(data))
		}
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	r.active = s
	log.Info("recording_start")
	return nil
}

// Stop ends the stream, releases the device and returns the recording as
// mono 16 kHz audio.
func (r *Recorder) Stop() (*audio.Buffer, error) {
	r.mu.Lock()
	s := r.active
	r.active = nil
	r.mu.Unlock()
	if s == nil {
		return nil, ErrNotRecording
	}

	s.capture.Stop()
	s.capture.ClearCallback()
	s.capture.Close()

	s.mu.Lock()
	s.stopped = true
	pcm := s.pcm
	frames := s.frames
	s.mu.Unlock()

	cfg := r.opts.Capture
	buf := audio.FromPCM16(pcm, int(cfg.SampleRate), int(cfg.Channels))
	log.Infof("recording_stop frames=%d wall=%s audio=%s", frames, time.Since(s.started).Round(time.Millisecond), buf.Duration)

	if r.opts.ArchiveDir != "" && r.opts.ArchiveFormat != encoder.FormatNone {
		path, err := encoder.Archive(r.opts.ArchiveDir, buf.Int16(), audio.SampleRate, r.opts.ArchiveFormat, s.started)
		if err != nil {
			// the recording is still usable without its archived copy
			log.Warnf("archive failed: %v", err)
		} else {
			buf.Path = path
		}
	}
	return buf, nil
}
