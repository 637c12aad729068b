package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"whispr/audio"
	"whispr/beep"
	"whispr/clipboard"
	"whispr/config"
	"whispr/hotkey"
	"whispr/log"
	"whispr/paste"
	"whispr/pipeline"
	"whispr/transcriber"
)

// waitTimeout bounds WAIT so a stuck pipeline fails the run instead of
// hanging it.
const waitTimeout = 2 * time.Minute

// runTestMode drives the real pipeline headlessly: audio comes from a WAV
// file, the hotkey is simulated and commands are read from stdin. Every
// event is printed to stdout as "EVENT <json>". WHISPR_TEST_TEXT swaps
// whisper.cpp for a fake engine returning that text.
func runTestMode(wavPath string, store *config.Store) int {
	beep.SetEnabled(false)

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	var engine transcriber.Engine = transcriber.Native()
	if text, ok := os.LookupEnv("WHISPR_TEST_TEXT"); ok {
		engine = transcriber.NewFakeEngine(text)
	}

	events := pipeline.NewCollector()
	sinks := []pipeline.Sink{events, pipeline.SinkFunc(printEvent)}
	if store.Get().AutoPaste {
		if err := paste.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: paste init failed: %v\n", err)
		}
		sinks = append(sinks, outputSink(store, paste.New(clipboard.System(), nil), clipboard.System()))
	}

	hk := hotkey.NewFake()
	a, err := newApp(appDeps{
		store:   store,
		audio:   fakeCtx,
		engine:  engine,
		backend: hk,
		sinks:   sinks,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.start(ctx)
	log.SessionStart(engine.Name(), store.Get().Model, hk.Name())

	code := driveTestMode(bufio.NewScanner(os.Stdin), a, hk, fakeCtx, events)
	cancel()
	a.close()
	log.SessionEnd(a.completed())
	return code
}

func driveTestMode(scanner *bufio.Scanner, a *app, hk *hotkey.Fake, fakeCtx *audio.FakeContext, events *pipeline.Collector) int {
	terminal := func(ev pipeline.Event) bool {
		return ev.Kind == pipeline.KindTranscriptionComplete || ev.Kind == pipeline.KindPipelineFailure
	}
	waited := 0 // events before this index are already accounted for by WAIT

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		var err error
		switch cmd {
		case "":
			continue
		case "TRIGGER":
			hk.SimTrigger()
		case "START":
			err = a.coord.Start()
		case "STOP":
			err = a.coord.Stop()
		case "WAIT":
			i := events.Wait(waited, waitTimeout, terminal)
			if i < 0 {
				fmt.Fprintln(os.Stderr, "WAIT timed out")
				return 1
			}
			waited = i + 1
		case "WAIT_AUDIO_DONE":
			if c := fakeCtx.LastCapture(); c != nil {
				<-c.AudioDone()
			}
		case "EVICT":
			err = a.evict()
		case "SLEEP":
			ms, perr := strconv.Atoi(arg)
			if perr != nil {
				err = fmt.Errorf("bad duration %q", arg)
				break
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case "STATUS":
			st := a.coord.Status()
			fmt.Printf("STATUS %s %s\n", st.State, st.Cycle)
		case "QUIT":
			return 0
		default:
			err = fmt.Errorf("unknown command")
		}
		if err != nil {
			fmt.Printf("ERR %s: %v\n", cmd, err)
		}
	}
	return 0
}

var printMu sync.Mutex

func printEvent(ev pipeline.Event) {
	line, err := json.Marshal(struct {
		Kind    pipeline.Kind `json:"kind"`
		Cycle   string        `json:"cycle"`
		Payload any           `json:"payload"`
	}{ev.Kind, ev.Cycle, ev.Payload})
	if err != nil {
		return
	}
	printMu.Lock()
	fmt.Printf("EVENT %s\n", line)
	printMu.Unlock()
}
