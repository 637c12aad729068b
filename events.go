package main

import (
	"whispr/beep"
	"whispr/clipboard"
	"whispr/config"
	"whispr/log"
	"whispr/notify"
	"whispr/paste"
	"whispr/pipeline"
)

// beepSink plays a cue on recording start, stop and failure.
func beepSink() pipeline.Sink {
	return pipeline.SinkFunc(func(ev pipeline.Event) {
		switch p := ev.Payload.(type) {
		case pipeline.RecordingStatus:
			if p.IsRecording {
				beep.Play(beep.CueStart)
			} else {
				beep.Play(beep.CueStop)
			}
		case pipeline.PipelineFailure:
			beep.Play(beep.CueFailure)
		}
	})
}

// outputSink delivers finished text: pasted into the focused window when
// auto_paste is on, otherwise left on the clipboard. Blank results are
// dropped.
func outputSink(store *config.Store, p *paste.Paster, clip clipboard.Clipboard) pipeline.Sink {
	return pipeline.SinkFunc(func(ev pipeline.Event) {
		done, ok := ev.Payload.(pipeline.TranscriptionComplete)
		if !ok || done.Blank {
			return
		}
		autoPaste := store.Get().AutoPaste
		go func() {
			if autoPaste {
				if err := p.Paste(done.Text); err != nil {
					log.Errorf("paste: %v", err)
				}
				return
			}
			if err := clip.Write(done.Text); err != nil {
				log.Errorf("copy to clipboard: %v", err)
			}
		}()
	})
}

// notifySink raises a desktop notification for failures when enabled.
func notifySink(store *config.Store, n *notify.Notifier) pipeline.Sink {
	return pipeline.SinkFunc(func(ev pipeline.Event) {
		f, ok := ev.Payload.(pipeline.PipelineFailure)
		if !ok || !store.Get().Notify {
			return
		}
		go n.Failure(f.Stage, f.Error)
	})
}
