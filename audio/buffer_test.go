package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestPCM16ToFloat32(t *testing.T) {
	got := PCM16ToFloat32(pcm(0, 16384, -32768))
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
	mono := []float32{1, 2, 3}
	if out := Downmix(mono, 1); len(out) != 3 {
		t.Errorf("mono downmix changed length: %d", len(out))
	}
}

func TestResample(t *testing.T) {
	for _, tt := range []struct {
		name     string
		from, to int
		in, want int
	}{
		{"48k to 16k", 48000, 16000, 4800, 1600},
		{"44.1k to 16k", 44100, 16000, 44100, 16000},
		{"8k to 16k", 8000, 16000, 800, 1600},
		{"same rate", 16000, 16000, 1234, 1234},
	} {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.in)
			for i := range in {
				in[i] = 0.25
			}
			out := Resample(in, tt.from, tt.to)
			if len(out) != tt.want {
				t.Fatalf("len = %d, want %d", len(out), tt.want)
			}
			for i, s := range out {
				if math.Abs(float64(s)-0.25) > 1e-6 {
					t.Fatalf("sample %d = %v, want 0.25", i, s)
				}
			}
		})
	}
}

func TestFromPCM16(t *testing.T) {
	// one second of stereo 48k
	raw := make([]int16, 48000*2)
	for i := range raw {
		raw[i] = 1000
	}
	buf := FromPCM16(pcm(raw...), 48000, 2)
	if len(buf.Samples) != SampleRate {
		t.Errorf("samples = %d, want %d", len(buf.Samples), SampleRate)
	}
	if buf.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", buf.Duration)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v", got)
	}
	if got := RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
	if got := LevelPCM16(pcm(16384, -16384)); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("LevelPCM16 = %v, want 0.5", got)
	}
}

func TestInt16Clamps(t *testing.T) {
	b := NewBuffer([]float32{2, -2, 0})
	got := b.Int16()
	if got[0] != math.MaxInt16 || got[1] != math.MinInt16 || got[2] != 0 {
		t.Errorf("Int16 = %v", got)
	}
}
