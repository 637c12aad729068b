package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Buffer is a finished recording: mono float32 samples at SampleRate.
// It is not modified after construction.
type Buffer struct {
	Samples  []float32
	Duration time.Duration
	Path     string // persisted copy, empty when not archived
}

func NewBuffer(samples []float32) *Buffer {
	return &Buffer{
		Samples:  samples,
		Duration: time.Duration(len(samples)) * time.Second / SampleRate,
	}
}

// FromPCM16 converts captured interleaved PCM16 at the given rate and
// channel count into a mono SampleRate buffer.
func FromPCM16(pcm []byte, rate, channels int) *Buffer {
	samples := PCM16ToFloat32(pcm)
	samples = Downmix(samples, channels)
	samples = Resample(samples, rate, SampleRate)
	return NewBuffer(samples)
}

func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Int16 returns the samples as clamped PCM16 values for archiving.
func (b *Buffer) Int16() []int16 {
	out := make([]int16, len(b.Samples))
	for i, s := range b.Samples {
		v := math.Round(float64(s) * 32767)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// Downmix averages interleaved channels into one.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// Resample converts between sample rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float32, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j] + (samples[j+1]-samples[j])*frac
	}
	return out
}

func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelPCM16 is the RMS of a raw PCM16 chunk, used for the live meter.
func LevelPCM16(data []byte) float64 {
	n := len(data) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
