package pipeline

import (
	"sync"
	"time"

	"whispr/log"
	"whispr/transcriber"
)

type Kind string

const (
	KindRecordingStatus       Kind = "recording-status"
	KindProcessingStatus      Kind = "processing-status"
	KindTranscriptionComplete Kind = "transcription-complete"
	KindPipelineFailure       Kind = "pipeline-failure"
)

// Event is a status change for one recording cycle. Payload is one of the
// *Status, TranscriptionComplete or PipelineFailure types below.
type Event struct {
	Kind    Kind
	Cycle   string
	Time    time.Time
	Payload any
}

type RecordingStatus struct {
	IsRecording bool `json:"isRecording"`
}

type ProcessingStatus struct {
	IsProcessing bool `json:"isProcessing"`
}

type TranscriptionComplete struct {
	Text  string `json:"text"`
	Blank bool   `json:"blank"`

	Result transcriber.Result `json:"-"`
}

type PipelineFailure struct {
	Stage string `json:"stage"`
	Error string `json:"error"`

	Err error `json:"-"`
}

const (
	StageRecording     = "recording"
	StageTranscription = "transcription"
)

// Sink receives events on the coordinator's loop goroutine, in order.
// Emit must not block; slow work belongs on a goroutine of its own.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

type multiSink []Sink

// Multi fans every event out to sinks in the given order.
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// LogSink writes every event to the diagnostics log.
func LogSink() Sink {
	return SinkFunc(func(ev Event) {
		log.Event(string(ev.Kind), ev.Cycle, ev.Payload)
	})
}

// Collector keeps every event; tests and the headless mode wait on it.
type Collector struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewCollector() *Collector {
	return &Collector{notify: make(chan struct{}, 1)}
}

func (r *Collector) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Collector) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Wait blocks until an event matching fn has been recorded at index from or
// later, and returns its index. It returns -1 on timeout.
func (r *Collector) Wait(from int, timeout time.Duration, fn func(Event) bool) int {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		for i := from; i < len(r.events); i++ {
			if fn(r.events[i]) {
				r.mu.Unlock()
				return i
			}
		}
		r.mu.Unlock()
		select {
		case <-r.notify:
		case <-deadline:
			return -1
		}
	}
}

func (r *Collector) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
