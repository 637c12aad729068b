package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"whispr/audio"
	"whispr/model"
	"whispr/recorder"
	"whispr/transcriber"
)

type harness struct {
	t      *testing.T
	audio  *audio.FakeContext
	engine *transcriber.FakeEngine
	rec    *recorder.Recorder
	tr     *transcriber.Transcriber
	events *Collector
	c      *Coordinator
}

func tonePCM(seconds float64) []byte {
	n := int(seconds * audio.SampleRate)
	b := make([]byte, n*2)
	for i := range n {
		v := int16(6000 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func anyPath(id string) (string, error) { return "/models/" + model.FileName(id), nil }

func newHarness(t *testing.T, pcm []byte, text string) *harness {
	t.Helper()
	h := &harness{t: t}
	h.audio = audio.NewFakeContextPCM(pcm, audio.SampleRate, false)
	h.engine = transcriber.NewFakeEngine(text)
	h.rec = recorder.New(h.audio, recorder.Options{})
	h.tr = transcriber.New(h.engine, transcriber.NewCache(h.engine, anyPath, model.Options{}), transcriber.Options{})
	h.events = NewCollector()
	h.c = New(h.rec, h.tr, Options{
		Sink:       h.events,
		ResetDelay: 50 * time.Millisecond,
		Settings: func() RequestOptions {
			return RequestOptions{ModelID: "base", Language: "en"}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.c.Done()
	})
	return h
}

func (h *harness) waitAudio() {
	h.t.Helper()
	select {
	case <-h.audio.LastCapture().AudioDone():
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for fixture audio")
	}
}

func (h *harness) waitKind(from int, kind Kind) (int, Event) {
	h.t.Helper()
	i := h.events.Wait(from, 2*time.Second, func(ev Event) bool { return ev.Kind == kind })
	if i < 0 {
		h.t.Fatalf("timed out waiting for %s; got %v", kind, kinds(h.events.Events()))
	}
	return i, h.events.Events()[i]
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	deadline := time.After(2 * time.Second)
	for h.c.State() != want {
		select {
		case <-deadline:
			h.t.Fatalf("state = %s, want %s", h.c.State(), want)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func kinds(evs []Event) []Kind {
	out := make([]Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func TestStartFromIdle(t *testing.T) {
	h := newHarness(t, nil, "")
	if err := h.c.Start(); err != nil {
		t.Fatal(err)
	}
	if got := h.c.State(); got != Recording {
		t.Fatalf("state = %s, want recording", got)
	}
	evs := h.events.Events()
	if len(evs) != 1 || evs[0].Kind != KindRecordingStatus || !evs[0].Payload.(RecordingStatus).IsRecording {
		t.Fatalf("events = %+v, want one recording-status(true)", evs)
	}
	if evs[0].Cycle == "" {
		t.Error("event has no cycle id")
	}
}

func TestSilenceCompletesBlank(t *testing.T) {
	h := newHarness(t, audio.Silence(2, audio.SampleRate), "should not be used")
	if err := h.c.Start(); err != nil {
		t.Fatal(err)
	}
	h.waitAudio()
	if err := h.c.Stop(); err != nil {
		t.Fatal(err)
	}

	_, ev := h.waitKind(0, KindTranscriptionComplete)
	done := ev.Payload.(TranscriptionComplete)
	if !done.Blank || done.Text != "" {
		t.Errorf("completion = %+v, want blank", done)
	}
	want := []Kind{KindRecordingStatus, KindRecordingStatus, KindProcessingStatus, KindProcessingStatus, KindTranscriptionComplete}
	got := kinds(h.events.Events())
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if h.engine.Inferences() != 0 {
		t.Error("silence was sent to the model")
	}
	h.waitState(Idle)
}

func TestTranscriptionText(t *testing.T) {
	h := newHarness(t, tonePCM(1), "hello there")
	h.c.Start()
	h.waitAudio()
	h.c.Stop()

	_, ev := h.waitKind(0, KindTranscriptionComplete)
	if got := ev.Payload.(TranscriptionComplete).Text; got != "hello there" {
		t.Errorf("text = %q", got)
	}
	st := h.c.Status()
	if st.State != Done || st.Text != "hello there" {
		t.Errorf("status = %+v, want done with text", st)
	}
	if p := h.engine.LastParams(); p.Language != "en" {
		t.Errorf("language = %q, want en", p.Language)
	}
	h.waitState(Idle)
}

func TestCycleIDs(t *testing.T) {
	h := newHarness(t, tonePCM(0.5), "one")
	for range 2 {
		from := h.events.Len()
		h.c.Start()
		h.waitAudio()
		h.c.Stop()
		h.waitKind(from, KindTranscriptionComplete)
	}
	evs := h.events.Events()
	if len(evs) != 10 {
		t.Fatalf("got %d events, want 10", len(evs))
	}
	first, second := evs[0].Cycle, evs[5].Cycle
	if first == second {
		t.Error("cycles share an id")
	}
	for i, ev := range evs {
		want := first
		if i >= 5 {
			want = second
		}
		if ev.Cycle != want {
			t.Errorf("event %d (%s) has cycle %s, want %s", i, ev.Kind, ev.Cycle, want)
		}
	}
}

func TestToggleIgnoredWhileProcessing(t *testing.T) {
	h := newHarness(t, tonePCM(1), "busy")
	h.engine.Block = make(chan struct{})

	h.c.Toggle()
	h.waitAudio()
	h.c.Toggle()
	if got := h.c.State(); got != Processing {
		t.Fatalf("state = %s, want processing", got)
	}

	if err := h.c.Toggle(); err != nil {
		t.Errorf("toggle during processing = %v, want nil", err)
	}
	if err := h.c.Start(); !errors.Is(err, ErrBusy) {
		t.Errorf("start during processing = %v, want ErrBusy", err)
	}
	if got := h.c.State(); got != Processing {
		t.Errorf("state = %s, want processing", got)
	}
	if h.audio.Opened() != 1 {
		t.Errorf("opened %d recordings, want 1", h.audio.Opened())
	}

	close(h.engine.Block)
	h.waitKind(0, KindTranscriptionComplete)
}

func TestStartWhileRecording(t *testing.T) {
	h := newHarness(t, nil, "")
	h.c.Start()
	if err := h.c.Start(); !errors.Is(err, recorder.ErrAlreadyRecording) {
		t.Errorf("second start = %v, want ErrAlreadyRecording", err)
	}
	if n := len(h.events.Events()); n != 1 {
		t.Errorf("%d events, want 1", n)
	}
}

func TestStopWhenNotRecording(t *testing.T) {
	h := newHarness(t, tonePCM(0.5), "x")
	if err := h.c.Stop(); !errors.Is(err, recorder.ErrNotRecording) {
		t.Errorf("stop from idle = %v, want ErrNotRecording", err)
	}
	if h.c.State() != Idle || h.events.Len() != 0 {
		t.Error("stop from idle changed state")
	}

	h.c.Start()
	h.waitAudio()
	h.c.Stop()
	h.waitKind(0, KindTranscriptionComplete)
	n := h.events.Len()
	if err := h.c.Stop(); !errors.Is(err, recorder.ErrNotRecording) {
		t.Errorf("stop from done = %v, want ErrNotRecording", err)
	}
	if st := h.c.State(); st != Done && st != Idle {
		t.Errorf("state = %s after rejected stop", st)
	}
	if h.events.Len() != n {
		t.Error("rejected stop emitted events")
	}
}

func TestRestartFromDone(t *testing.T) {
	h := newHarness(t, tonePCM(0.5), "again")
	h.c.SetResetDelay(time.Hour)
	h.c.Start()
	h.waitAudio()
	h.c.Stop()
	h.waitKind(0, KindTranscriptionComplete)
	if h.c.State() != Done {
		t.Fatalf("state = %s, want done", h.c.State())
	}
	if err := h.c.Start(); err != nil {
		t.Fatalf("start from done: %v", err)
	}
	if h.c.State() != Recording {
		t.Errorf("state = %s, want recording", h.c.State())
	}
}

func TestDeviceFailure(t *testing.T) {
	h := newHarness(t, nil, "")
	h.audio.OpenErr = errors.New("unplugged")
	err := h.c.Start()
	if !errors.Is(err, recorder.ErrDeviceUnavailable) {
		t.Fatalf("start = %v, want ErrDeviceUnavailable", err)
	}
	if h.c.State() != Idle {
		t.Errorf("state = %s, want idle", h.c.State())
	}
	evs := h.events.Events()
	if len(evs) != 1 || evs[0].Kind != KindPipelineFailure {
		t.Fatalf("events = %v, want one failure", kinds(evs))
	}
	if f := evs[0].Payload.(PipelineFailure); f.Stage != StageRecording || !errors.Is(f.Err, recorder.ErrDeviceUnavailable) {
		t.Errorf("failure = %+v", f)
	}
}

func TestStopFailureEndsRecording(t *testing.T) {
	h := newHarness(t, tonePCM(1), "x")
	if err := h.c.Start(); err != nil {
		t.Fatal(err)
	}
	// the recorder went away underneath the coordinator
	if _, err := h.rec.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Stop(); !errors.Is(err, recorder.ErrNotRecording) {
		t.Fatalf("stop = %v, want ErrNotRecording", err)
	}
	if h.c.State() != Idle {
		t.Errorf("state = %s, want idle", h.c.State())
	}

	evs := h.events.Events()
	want := []Kind{KindRecordingStatus, KindRecordingStatus, KindPipelineFailure}
	if got := kinds(evs); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if evs[1].Payload.(RecordingStatus).IsRecording {
		t.Error("second recording-status should report stopped")
	}
	cycle := evs[0].Cycle
	for _, ev := range evs {
		if ev.Cycle != cycle {
			t.Errorf("%s cycle = %s, want %s", ev.Kind, ev.Cycle, cycle)
		}
	}
}

func TestTranscriptionFailure(t *testing.T) {
	h := newHarness(t, tonePCM(1), "")
	h.engine.InferErr = errors.New("ggml abort")
	h.c.Start()
	h.waitAudio()
	h.c.Stop()

	i, ev := h.waitKind(0, KindPipelineFailure)
	f := ev.Payload.(PipelineFailure)
	if f.Stage != StageTranscription || !errors.Is(f.Err, transcriber.ErrInferenceFailure) {
		t.Errorf("failure = %+v", f)
	}
	if h.c.State() != Idle {
		t.Errorf("state = %s, want idle", h.c.State())
	}
	if n := h.events.Len(); n != i+1 {
		t.Errorf("events after failure: %v", kinds(h.events.Events()[i:]))
	}
	for _, s := range h.tr.Cache().Snapshot() {
		if s.Borrows != 0 {
			t.Errorf("model still borrowed after failure: %+v", s)
		}
	}

	h.engine.InferErr = nil
	if err := h.c.Start(); err != nil {
		t.Errorf("start after failure: %v", err)
	}
}

func TestModelMissingFails(t *testing.T) {
	h := newHarness(t, tonePCM(1), "x")
	h.engine.LoadErr = &model.NotFoundError{ID: "base", Path: "/models/ggml-base.bin"}
	h.c.Start()
	h.waitAudio()
	h.c.Stop()
	_, ev := h.waitKind(0, KindPipelineFailure)
	if f := ev.Payload.(PipelineFailure); !errors.Is(f.Err, model.ErrModelNotFound) {
		t.Errorf("failure = %+v, want model not found", f)
	}
}

func TestSubmit(t *testing.T) {
	h := newHarness(t, nil, "from file")
	buf := audio.FromPCM16(tonePCM(1), audio.SampleRate, 1)
	if err := h.c.Submit(buf); err != nil {
		t.Fatal(err)
	}
	_, ev := h.waitKind(0, KindTranscriptionComplete)
	if got := ev.Payload.(TranscriptionComplete).Text; got != "from file" {
		t.Errorf("text = %q", got)
	}
	if h.audio.Opened() != 0 {
		t.Error("submit opened the microphone")
	}
}

func TestNoDoubleRecording(t *testing.T) {
	h := newHarness(t, tonePCM(0.3), "x")
	rng := rand.New(rand.NewSource(1))
	for range 60 {
		switch rng.Intn(3) {
		case 0:
			h.c.Toggle()
		case 1:
			h.c.Start()
		case 2:
			h.c.Stop()
		}
		time.Sleep(time.Duration(rng.Intn(3)) * time.Millisecond)
	}

	recording := false
	for _, ev := range h.events.Events() {
		rs, ok := ev.Payload.(RecordingStatus)
		if !ok {
			continue
		}
		if rs.IsRecording && recording {
			t.Fatal("recording started twice without stopping")
		}
		recording = rs.IsRecording
	}
}

func TestClosed(t *testing.T) {
	rec := recorder.New(audio.NewFakeContextPCM(nil, audio.SampleRate, false), recorder.Options{})
	e := transcriber.NewFakeEngine("")
	c := New(rec, transcriber.New(e, transcriber.NewCache(e, anyPath, model.Options{}), transcriber.Options{}), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	cancel()
	<-c.Done()
	if rec.Recording() {
		t.Error("recorder left running after shutdown")
	}
	if err := c.Toggle(); !errors.Is(err, ErrClosed) {
		t.Errorf("toggle after shutdown = %v, want ErrClosed", err)
	}
}

func TestMulti(t *testing.T) {
	var order []string
	s := Multi(
		SinkFunc(func(Event) { order = append(order, "a") }),
		nil,
		SinkFunc(func(Event) { order = append(order, "b") }),
	)
	s.Emit(Event{Kind: KindRecordingStatus})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("order = %v", order)
	}
}
