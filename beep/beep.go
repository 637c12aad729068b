package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

const sampleRate = 44100

// Cue names a sound played at a pipeline transition.
type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueFailure
)

// Tone is a decaying sine, optionally repeated after a gap.
type Tone struct {
	Freq   float64
	Dur    float64 // seconds
	Volume float64
	Decay  float64
	Repeat int
	Gap    float64 // seconds between repeats
}

var tones = map[Cue]Tone{
	CueStart:   {Freq: 1200, Dur: toneDur, Volume: 0.5, Decay: 60},
	CueStop:    {Freq: 900, Dur: toneDur, Volume: 0.5, Decay: 40},
	CueFailure: {Freq: 350, Dur: 0.08, Volume: 0.6, Decay: 30, Repeat: 1, Gap: 0.05},
}

// Render returns mono 16-bit samples at rate.
func (t Tone) Render(rate int) []int16 {
	n := int(float64(rate) * t.Dur)
	gap := int(float64(rate) * t.Gap)
	out := make([]int16, 0, (n+gap)*(t.Repeat+1))
	for r := 0; r <= t.Repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap)...)
		}
		for i := range n {
			x := float64(i) / float64(rate)
			env := math.Exp(-x * t.Decay)
			out = append(out, int16(math.Sin(2*math.Pi*t.Freq*x)*32767*t.Volume*env))
		}
	}
	return out
}

var (
	disabled atomic.Bool

	renderOnce sync.Once
	rendered   map[Cue][]int16
)

func SetEnabled(on bool) { disabled.Store(!on) }

func Enabled() bool { return !disabled.Load() }

func samples(c Cue) []int16 {
	renderOnce.Do(func() {
		rendered = make(map[Cue][]int16, len(tones))
		for cue, t := range tones {
			rendered[cue] = t.Render(sampleRate)
		}
	})
	return rendered[c]
}

// Play starts the cue and returns without waiting for it to finish.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(samples(c))
}
