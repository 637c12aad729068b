package doctor

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"whispr/audio"
	"whispr/clipboard"
	"whispr/hotkey"
	"whispr/model"
	"whispr/transcriber"
)

func tone(seconds float64) []byte {
	n := int(seconds * audio.SampleRate)
	pcm := make([]byte, n*2)
	for i := range n {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func setup(t *testing.T, input string) (Options, *bytes.Buffer, *hotkey.Fake) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, model.FileName("base")), []byte("ggml"), 0644); err != nil {
		t.Fatal(err)
	}
	engine := transcriber.NewFakeEngine("hello doctor")
	cache := transcriber.NewCache(engine, model.Resolver(func() string { return dir }), model.Options{})
	t.Cleanup(func() { cache.Close() })

	out := &bytes.Buffer{}
	hk := hotkey.NewFake()
	return Options{
		Backend:       hk,
		Combo:         hotkey.Combo{Mods: hotkey.ModCtrl | hotkey.ModShift, Key: "SPACE"},
		Audio:         audio.NewFakeContextPCM(tone(1), audio.SampleRate, false),
		Transcriber:   transcriber.New(engine, cache, transcriber.Options{}),
		Request:       transcriber.Request{ModelID: "base", Language: "en"},
		Clipboard:     &clipboard.Fake{},
		Keystroke:     func() error { return nil },
		In:            strings.NewReader(input),
		Out:           out,
		RecordFor:     200 * time.Millisecond,
		HotkeyTimeout: 200 * time.Millisecond,
		Countdown:     time.Millisecond,
	}, out, hk
}

func TestRunAllPass(t *testing.T) {
	opts, out, hk := setup(t, "\ny\ny\n")
	hk.SimTrigger()

	if code := Run(context.Background(), opts); code != 0 {
		t.Fatalf("exit code %d\n%s", code, out)
	}
	for _, want := range []string{
		"PASS: hotkey detected",
		"PASS: microphone delivers audio",
		"Transcribed text: hello doctor",
		"PASS: previous clipboard restored",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if hk.Registered() {
		t.Error("hotkey left registered")
	}
}

func TestRunHotkeyTimeout(t *testing.T) {
	opts, out, _ := setup(t, "")
	if code := Run(context.Background(), opts); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "timeout waiting for hotkey") {
		t.Errorf("output:\n%s", out)
	}
	if strings.Contains(out.String(), "[2/4]") {
		t.Error("later checks ran after a failure")
	}
}

func TestRunTranscriptionRejected(t *testing.T) {
	opts, out, hk := setup(t, "\nn\n")
	hk.SimTrigger()
	if code := Run(context.Background(), opts); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "transcription not confirmed") {
		t.Errorf("output:\n%s", out)
	}
}

func TestRunModelMissing(t *testing.T) {
	opts, out, hk := setup(t, "\n")
	opts.Request.ModelID = "large"
	hk.SimTrigger()
	if code := Run(context.Background(), opts); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "model 'large' not found") {
		t.Errorf("output:\n%s", out)
	}
}
