package main

import (
	"sync/atomic"
	"testing"
	"time"

	"whispr/clipboard"
	"whispr/config"
	"whispr/paste"
	"whispr/pipeline"
)

func TestOutputSink(t *testing.T) {
	tests := []struct {
		name      string
		autoPaste bool
		done      pipeline.TranscriptionComplete
		wantSends int32
		wantClip  []string
	}{
		{"blank paste", true, pipeline.TranscriptionComplete{Blank: true}, 0, nil},
		{"blank copy", false, pipeline.TranscriptionComplete{Blank: true}, 0, nil},
		{"text paste", true, pipeline.TranscriptionComplete{Text: "hello"}, 1, []string{"hello"}},
		{"text copy", false, pipeline.TranscriptionComplete{Text: "hello"}, 0, []string{"hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := config.Defaults()
			s.AutoPaste = tt.autoPaste
			store := config.NewStore(s)

			pasteClip := &clipboard.Fake{}
			copyClip := &clipboard.Fake{}
			var sends atomic.Int32
			p := paste.New(pasteClip, func() error { sends.Add(1); return nil })

			sink := outputSink(store, p, copyClip)
			sink.Emit(pipeline.Event{Kind: pipeline.KindTranscriptionComplete, Payload: tt.done})

			clip := copyClip
			if tt.autoPaste {
				clip = pasteClip
			}
			deadline := time.Now().Add(2 * time.Second)
			for len(clip.History()) < len(tt.wantClip) && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			// give a stray write from the sink goroutine time to land
			time.Sleep(50 * time.Millisecond)

			if got := clip.History(); len(got) != len(tt.wantClip) || (len(got) > 0 && got[0] != tt.wantClip[0]) {
				t.Errorf("clipboard history = %q, want %q", got, tt.wantClip)
			}
			if n := sends.Load(); n != tt.wantSends {
				t.Errorf("paste keystrokes = %d, want %d", n, tt.wantSends)
			}
			if tt.done.Blank && (len(pasteClip.History()) != 0 || len(copyClip.History()) != 0) {
				t.Errorf("blank result reached a clipboard: paste %q copy %q", pasteClip.History(), copyClip.History())
			}
		})
	}
}

func TestOutputSinkIgnoresOtherEvents(t *testing.T) {
	s := config.Defaults()
	s.AutoPaste = true
	clip := &clipboard.Fake{}
	sink := outputSink(config.NewStore(s), paste.New(clip, func() error { t.Error("keystroke sent"); return nil }), clip)
	sink.Emit(pipeline.Event{Kind: pipeline.KindRecordingStatus, Payload: pipeline.RecordingStatus{IsRecording: false}})
	sink.Emit(pipeline.Event{Kind: pipeline.KindPipelineFailure, Payload: pipeline.PipelineFailure{Stage: pipeline.StageTranscription, Error: "boom"}})
	time.Sleep(50 * time.Millisecond)
	if len(clip.History()) != 0 {
		t.Errorf("clipboard written: %q", clip.History())
	}
}
