package beep

import (
	"math"
	"testing"
)

func TestRenderLength(t *testing.T) {
	tone := Tone{Freq: 440, Dur: 0.1, Volume: 0.5, Decay: 10}
	if got := len(tone.Render(8000)); got != 800 {
		t.Errorf("len = %d, want 800", got)
	}

	tone.Repeat, tone.Gap = 1, 0.05
	if got := len(tone.Render(8000)); got != 800+400+800 {
		t.Errorf("repeated len = %d", got)
	}
}

func TestRenderEnvelope(t *testing.T) {
	tone := Tone{Freq: 1000, Dur: 0.2, Volume: 0.5, Decay: 40}
	s := tone.Render(44100)
	peak := func(from, to int) float64 {
		var p float64
		for _, v := range s[from:to] {
			p = max(p, math.Abs(float64(v)))
		}
		return p
	}
	head, tail := peak(0, 441), peak(len(s)-441, len(s))
	if head > 0.5*32767+1 {
		t.Errorf("peak %v exceeds volume", head)
	}
	if tail >= head/10 {
		t.Errorf("tone does not decay: head %v tail %v", head, tail)
	}
}

func TestGapIsSilent(t *testing.T) {
	tone := tones[CueFailure]
	s := tone.Render(sampleRate)
	n := int(float64(sampleRate) * tone.Dur)
	for i, v := range s[n : n+int(float64(sampleRate)*tone.Gap)] {
		if v != 0 {
			t.Fatalf("gap sample %d = %d", i, v)
		}
	}
}

func TestDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)
	if Enabled() {
		t.Fatal("still enabled")
	}
	Play(CueStart) // must not touch the audio device
}
