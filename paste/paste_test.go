package paste

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"whispr/clipboard"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPasteRestores(t *testing.T) {
	clip := &clipboard.Fake{}
	clip.Write("previous")
	sent := 0
	p := New(clip, func() error { sent++; return nil })
	p.SetRestoreDelay(10 * time.Millisecond)

	if err := p.Paste("hello world"); err != nil {
		t.Fatal(err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	waitFor(t, func() bool { s, _ := clip.Read(); return s == "previous" })

	want := []string{"previous", "hello world", "previous"}
	if got := clip.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %q, want %q", got, want)
	}
}

func TestPasteSkipsBlank(t *testing.T) {
	clip := &clipboard.Fake{}
	p := New(clip, func() error { t.Error("keystroke sent for blank text"); return nil })
	for _, s := range []string{"", "   ", "\n"} {
		if err := p.Paste(s); err != nil {
			t.Fatal(err)
		}
	}
	if len(clip.History()) != 0 {
		t.Errorf("clipboard written: %q", clip.History())
	}
}

func TestPasteBackToBack(t *testing.T) {
	clip := &clipboard.Fake{}
	clip.Write("original")
	p := New(clip, func() error { return nil })
	p.SetRestoreDelay(50 * time.Millisecond)

	if err := p.Paste("one"); err != nil {
		t.Fatal(err)
	}
	if err := p.Paste("two"); err != nil {
		t.Fatal(err)
	}
	// the second paste must not save "one" as the value to restore
	waitFor(t, func() bool { s, _ := clip.Read(); return s == "original" })
	time.Sleep(80 * time.Millisecond)
	if s, _ := clip.Read(); s != "original" {
		t.Errorf("clipboard = %q", s)
	}
}

func TestPasteKeystrokeError(t *testing.T) {
	clip := &clipboard.Fake{}
	boom := errors.New("no uinput")
	p := New(clip, func() error { return boom })
	if err := p.Paste("text"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestPasteFailureKeepsSaved(t *testing.T) {
	clip := &clipboard.Fake{}
	clip.Write("previous")
	boom := errors.New("no uinput")
	fail := false
	p := New(clip, func() error {
		if fail {
			return boom
		}
		return nil
	})
	p.SetRestoreDelay(50 * time.Millisecond)

	if err := p.Paste("one"); err != nil {
		t.Fatal(err)
	}
	fail = true
	if err := p.Paste("two"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	waitFor(t, func() bool { s, _ := clip.Read(); return s == "previous" })

	// the next paste must still treat "previous" as the user's contents
	fail = false
	if err := p.Paste("three"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { s, _ := clip.Read(); return s == "previous" })
	want := []string{"previous", "one", "two", "previous", "three", "previous"}
	if got := clip.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %q, want %q", got, want)
	}
}
