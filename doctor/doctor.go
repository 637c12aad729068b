package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"whispr/audio"
	"whispr/clipboard"
	"whispr/hotkey"
	"whispr/paste"
	"whispr/recorder"
	"whispr/transcriber"
)

type Transcriber interface {
	Transcribe(ctx context.Context, req transcriber.Request) (transcriber.Result, error)
}

// Options wires the checks to the same components the app uses.
type Options struct {
	Backend     hotkey.Backend
	Combo       hotkey.Combo
	Audio       audio.Context
	Device      *audio.DeviceInfo
	Transcriber Transcriber
	// Request carries model, accel and language; Audio is filled in.
	Request   transcriber.Request
	Clipboard clipboard.Clipboard
	Keystroke func() error

	In  io.Reader
	Out io.Writer

	RecordFor     time.Duration
	HotkeyTimeout time.Duration
	Countdown     time.Duration
}

type runner struct {
	opts Options
	in   *bufio.Reader
	out  io.Writer
}

// Run executes the interactive checks in order, stopping at the first
// failure, and returns an exit code (0 all pass, 1 any fail).
func Run(ctx context.Context, opts Options) int {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	if opts.HotkeyTimeout <= 0 {
		opts.HotkeyTimeout = 10 * time.Second
	}
	if opts.Countdown <= 0 {
		opts.Countdown = time.Second
	}
	r := &runner{opts: opts, in: bufio.NewReader(opts.In), out: opts.Out}

	resetTerminal()
	r.printf("whispr doctor - interactive system diagnostics\n")
	r.printf("==============================================\n")

	pass := r.checkHotkey(ctx)
	var buf *audio.Buffer
	if pass {
		buf, pass = r.checkMicrophone()
	}
	if pass {
		pass = r.checkTranscription(ctx, buf)
	}
	if pass {
		pass = r.checkClipboard()
	}

	r.printf("\n")
	if pass {
		r.printf("All checks passed!\n")
		return 0
	}
	r.printf("Some checks failed. See details above.\n")
	return 1
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) confirm(question string) bool {
	r.printf("%s [y/n]: ", question)
	answer, _ := r.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (r *runner) checkHotkey(ctx context.Context) bool {
	r.printf("\n[1/4] Hotkey\n")
	if diag, err := hotkey.Diagnose(r.opts.Combo); err != nil {
		r.printf("  Warning: %v\n", err)
	} else if diag != "" {
		r.printf("  %s\n", diag)
	}

	b := r.opts.Backend
	if err := b.Register(); err != nil {
		r.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer b.Unregister()
	r.printf("  Backend: %s\n", b.Name())
	r.printf("Press %s...\n", r.opts.Combo)

	select {
	case <-b.Triggers():
		resetTerminal()
		r.printf("  PASS: hotkey detected\n")
		return true
	case <-time.After(r.opts.HotkeyTimeout):
		r.printf("  FAIL: timeout waiting for hotkey\n")
		return false
	case <-ctx.Done():
		r.printf("  FAIL: interrupted\n")
		return false
	}
}

func (r *runner) checkMicrophone() (*audio.Buffer, bool) {
	r.printf("\n[2/4] Microphone\n")

	var mu sync.Mutex
	var peak float64
	rec := recorder.New(r.opts.Audio, recorder.Options{
		OnLevel: func(rms float64) {
			mu.Lock()
			peak = max(peak, rms)
			mu.Unlock()
		},
	})
	rec.SetDevice(r.opts.Device)
	name := "system default"
	if r.opts.Device != nil {
		name = r.opts.Device.Name
	}
	r.printf("  Device: %s\n", name)
	if r.opts.Device != nil && audio.IsBluetooth(r.opts.Device.Name) {
		r.printf("  Warning: bluetooth microphones record at reduced quality\n")
	}

	r.printf("Press Enter and speak for %.0f seconds...", r.opts.RecordFor.Seconds())
	r.in.ReadString('\n')

	if err := rec.Start(); err != nil {
		r.printf("  FAIL: %v\n", err)
		return nil, false
	}
	r.printf("  Recording")
	deadline := time.After(r.opts.RecordFor)
	dots := time.NewTicker(500 * time.Millisecond)
wait:
	for {
		select {
		case <-deadline:
			break wait
		case <-dots.C:
			r.printf(".")
		}
	}
	dots.Stop()
	buf, err := rec.Stop()
	r.printf(" done\n")
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return nil, false
	}
	if buf == nil || len(buf.Samples) == 0 {
		r.printf("  FAIL: no audio captured\n")
		return nil, false
	}

	mu.Lock()
	p := peak
	mu.Unlock()
	r.printf("  Captured %.1fs, peak level %.3f\n", buf.Duration.Seconds(), p)
	if p < 0.02 {
		r.printf("  Warning: very low input level, check the microphone is not muted\n")
	}
	r.printf("  PASS: microphone delivers audio\n")
	return buf, true
}

func (r *runner) checkTranscription(ctx context.Context, buf *audio.Buffer) bool {
	r.printf("\n[3/4] Model and transcription\n")
	req := r.opts.Request
	req.Audio = buf
	r.printf("  Loading %s and transcribing...\n", req.ModelID)

	res, err := r.opts.Transcriber.Transcribe(ctx, req)
	if err != nil {
		r.printf("  FAIL: %v\n", err)
		return false
	}
	accel := "cpu"
	if res.Accel {
		accel = "accelerated"
	}
	r.printf("  %s (%s): wait %dms, inference %dms\n", res.ModelID, accel, res.Wait.Milliseconds(), res.Infer.Milliseconds())

	text := res.Text
	if res.Blank {
		text = "(no speech detected)"
	}
	r.printf("\n  Transcribed text: %s\n\n", text)
	if !r.confirm("Is this correct?") {
		r.printf("  FAIL: transcription not confirmed\n")
		return false
	}
	r.printf("  PASS: transcription verified by user\n")
	return true
}

func (r *runner) checkClipboard() bool {
	r.printf("\n[4/4] Clipboard and paste\n")
	const sentinel = "whispr-preserve-check"
	const probe = "whispr-doctor-test"

	clip := r.opts.Clipboard
	if err := clip.Write(sentinel); err != nil {
		r.printf("  FAIL: clipboard write: %v\n", err)
		return false
	}

	p := paste.New(clip, r.opts.Keystroke)
	r.printf("Focus on a text editor window...\n")
	for i := 5; i > 0; i-- {
		r.printf("  %d...\n", i)
		time.Sleep(r.opts.Countdown)
	}
	if err := p.Paste(probe); err != nil {
		r.printf("  FAIL: paste: %v\n", err)
		return false
	}

	resetTerminal()
	r.printf("\n")
	if !r.confirm(fmt.Sprintf("Did the text %q appear?", probe)) {
		r.printf("  FAIL: clipboard/paste not confirmed\n")
		return false
	}
	r.printf("  PASS: paste verified by user\n")

	time.Sleep(paste.RestoreDelay + 200*time.Millisecond)
	restored, err := clip.Read()
	if err != nil {
		r.printf("  FAIL: could not read clipboard: %v\n", err)
		return false
	}
	if restored != sentinel {
		r.printf("  FAIL: clipboard not restored (got %q, want %q)\n", restored, sentinel)
		return false
	}
	r.printf("  PASS: previous clipboard restored\n")
	return true
}
