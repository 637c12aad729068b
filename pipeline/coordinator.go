package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"whispr/audio"
	"whispr/log"
	"whispr/recorder"
	"whispr/transcriber"
)

const DefaultResetDelay = 2500 * time.Millisecond

var (
	ErrBusy   = errors.New("transcription in progress")
	ErrClosed = errors.New("pipeline stopped")
)

type State int

const (
	Idle State = iota
	Recording
	Processing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Done:
		return "done"
	}
	return "unknown"
}

// Status is a snapshot of the coordinator. Text is set only in Done.
type Status struct {
	State State
	Cycle string
	Text  string
}

type Recorder interface {
	Start() error
	Stop() (*audio.Buffer, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Result, error)
}

// RequestOptions are read from settings at the moment a recording stops.
type RequestOptions struct {
	ModelID   string
	Accel     bool
	Language  string
	Translate bool
}

type Options struct {
	Sink       Sink
	Settings   func() RequestOptions
	ResetDelay time.Duration
}

type op int

const (
	opStart op = iota
	opStop
	opToggle
	opSubmit
)

type command struct {
	op    op
	audio *audio.Buffer
	reply chan error
}

type job struct {
	cycle string
	req   transcriber.Request
}

type outcome struct {
	cycle string
	req   transcriber.Request
	res   transcriber.Result
	err   error
}

// Coordinator sequences recording, transcription and reset. All state
// changes happen on the goroutine running Run.
type Coordinator struct {
	rec        Recorder
	tr         Transcriber
	sink       Sink
	settings   func() RequestOptions
	resetDelay atomic.Int64

	cmds    chan command
	jobs    chan job
	results chan outcome
	done    chan struct{}

	statusMu sync.RWMutex
	status   Status

	// owned by the loop
	state      State
	cycle      string
	text       string
	resetTimer *time.Timer
	resetC     <-chan time.Time
}

func New(rec Recorder, tr Transcriber, opts Options) *Coordinator {
	if opts.Sink == nil {
		opts.Sink = SinkFunc(func(Event) {})
	}
	if opts.Settings == nil {
		opts.Settings = func() RequestOptions { return RequestOptions{ModelID: "base", Language: transcriber.LanguageAuto} }
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	c := &Coordinator{
		rec:      rec,
		tr:       tr,
		sink:     opts.Sink,
		settings: opts.Settings,
		cmds:     make(chan command),
		jobs:     make(chan job, 1),
		results:  make(chan outcome, 1),
		done:     make(chan struct{}),
	}
	c.resetDelay.Store(int64(opts.ResetDelay))
	return c
}

// Start begins a recording. It fails with recorder.ErrAlreadyRecording while
// recording and ErrBusy while a transcription is running.
func (c *Coordinator) Start() error { return c.do(command{op: opStart}) }

// Stop ends the recording and hands it to the transcriber. It returns
// without waiting for the transcription.
func (c *Coordinator) Stop() error { return c.do(command{op: opStop}) }

// Toggle starts or stops a recording. It is ignored while a transcription
// is running.
func (c *Coordinator) Toggle() error { return c.do(command{op: opToggle}) }

// Submit transcribes an existing buffer as its own cycle.
func (c *Coordinator) Submit(buf *audio.Buffer) error {
	return c.do(command{op: opSubmit, audio: buf})
}

func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// SetResetDelay changes how long Done is held before returning to Idle.
// It applies from the next completed transcription.
func (c *Coordinator) SetResetDelay(d time.Duration) {
	if d > 0 {
		c.resetDelay.Store(int64(d))
	}
}

func (c *Coordinator) State() State { return c.Status().State }

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) do(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	}
	return <-cmd.reply
}

// Run owns the state machine until ctx is done. An in-flight recording is
// discarded on exit.
func (c *Coordinator) Run(ctx context.Context) {
	workerDone := make(chan struct{})
	go c.worker(ctx, workerDone)

	defer func() {
		if c.state == Recording {
			if _, err := c.rec.Stop(); err != nil {
				log.Warnf("stopping recorder on shutdown: %v", err)
			}
		}
		if c.resetTimer != nil {
			c.resetTimer.Stop()
		}
		close(c.jobs)
		close(c.done)
		<-workerDone
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.cmds:
			cmd.reply <- c.handle(cmd)
		case out := <-c.results:
			c.finish(out)
		case <-c.resetC:
			c.resetTimer, c.resetC = nil, nil
			if c.state == Done {
				c.transition(Idle, "", "")
			}
		}
	}
}

func (c *Coordinator) worker(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for j := range c.jobs {
		res, err := c.tr.Transcribe(ctx, j.req)
		select {
		case c.results <- outcome{cycle: j.cycle, req: j.req, res: res, err: err}:
		case <-c.done:
		}
	}
}

func (c *Coordinator) handle(cmd command) error {
	switch cmd.op {
	case opStart:
		switch c.state {
		case Recording:
			return recorder.ErrAlreadyRecording
		case Processing:
			return ErrBusy
		}
		return c.startRecording()

	case opStop:
		if c.state != Recording {
			return recorder.ErrNotRecording
		}
		return c.stopRecording()

	case opToggle:
		switch c.state {
		case Recording:
			return c.stopRecording()
		case Processing:
			log.Info("toggle_ignored: transcription in progress")
			return nil
		}
		return c.startRecording()

	case opSubmit:
		if c.state == Recording || c.state == Processing {
			return ErrBusy
		}
		c.cancelReset()
		cycle := uuid.NewString()
		c.transition(Processing, cycle, "")
		c.emit(KindProcessingStatus, ProcessingStatus{IsProcessing: true})
		c.enqueue(cmd.audio)
		return nil
	}
	return nil
}

func (c *Coordinator) startRecording() error {
	c.cancelReset()
	cycle := uuid.NewString()
	if err := c.rec.Start(); err != nil {
		c.fail(StageRecording, cycle, err)
		return err
	}
	c.transition(Recording, cycle, "")
	c.emit(KindRecordingStatus, RecordingStatus{IsRecording: true})
	return nil
}

func (c *Coordinator) stopRecording() error {
	buf, err := c.rec.Stop()
	if err != nil {
		// close the recording phase this cycle opened
		c.emit(KindRecordingStatus, RecordingStatus{IsRecording: false})
		c.fail(StageRecording, c.cycle, err)
		return err
	}
	c.transition(Processing, c.cycle, "")
	c.emit(KindRecordingStatus, RecordingStatus{IsRecording: false})
	c.emit(KindProcessingStatus, ProcessingStatus{IsProcessing: true})
	c.enqueue(buf)
	return nil
}

func (c *Coordinator) enqueue(buf *audio.Buffer) {
	opts := c.settings()
	// jobs has room for one and only Processing enqueues, so this never blocks
	c.jobs <- job{cycle: c.cycle, req: transcriber.Request{
		Audio:     buf,
		ModelID:   opts.ModelID,
		Accel:     opts.Accel,
		Language:  opts.Language,
		Translate: opts.Translate,
	}}
}

func (c *Coordinator) finish(out outcome) {
	if c.state != Processing || out.cycle != c.cycle {
		log.Warnf("dropping result for stale cycle %s", out.cycle)
		return
	}

	m := log.Metrics{
		Cycle:    out.cycle,
		Model:    out.req.ModelID,
		Accel:    out.res.Accel,
		Language: transcriber.NormalizeLanguage(out.req.Language),
		AudioS:   out.res.Audio.Seconds(),
		InferMs:  float64(out.res.Infer.Microseconds()) / 1000,
		WaitMs:   float64(out.res.Wait.Microseconds()) / 1000,
		Blank:    out.res.Blank,
	}
	if out.req.Audio != nil {
		m.Persisted = out.req.Audio.Path
	}
	log.TranscriptionMetrics(m)

	if out.err != nil {
		c.fail(StageTranscription, out.cycle, out.err)
		return
	}

	c.transition(Done, c.cycle, out.res.Text)
	c.emit(KindProcessingStatus, ProcessingStatus{IsProcessing: false})
	c.emit(KindTranscriptionComplete, TranscriptionComplete{
		Text:   out.res.Text,
		Blank:  out.res.Blank,
		Result: out.res,
	})
	if !out.res.Blank {
		log.TranscriptionText(out.res.Text)
	}
	c.resetTimer = time.NewTimer(time.Duration(c.resetDelay.Load()))
	c.resetC = c.resetTimer.C
}

func (c *Coordinator) fail(stage, cycle string, err error) {
	log.Errorf("%s failed: %v", stage, err)
	c.transition(Idle, cycle, "")
	c.emit(KindPipelineFailure, PipelineFailure{Stage: stage, Error: err.Error(), Err: err})
}

func (c *Coordinator) cancelReset() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer, c.resetC = nil, nil
	}
}

// transition is the only place the state field is written.
func (c *Coordinator) transition(to State, cycle, text string) {
	if c.state != to {
		log.Infof("state %s -> %s", c.state, to)
	}
	c.state, c.cycle, c.text = to, cycle, text
	c.statusMu.Lock()
	c.status = Status{State: to, Cycle: cycle, Text: text}
	c.statusMu.Unlock()
}

func (c *Coordinator) emit(kind Kind, payload any) {
	c.sink.Emit(Event{Kind: kind, Cycle: c.cycle, Time: time.Now(), Payload: payload})
}
