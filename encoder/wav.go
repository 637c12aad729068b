package encoder

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes mono PCM16 samples as a RIFF/WAVE stream.
func WriteWAV(w io.WriteSeeker, samples []int16, rate int) error {
	enc := wav.NewEncoder(w, rate, BitsPerSample, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	return enc.Close()
}

// ReadWAV decodes a 16-bit PCM WAV stream into interleaved samples.
func ReadWAV(r io.ReadSeeker) (samples []int16, rate, channels int, err error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, errors.New("not a valid WAV file")
	}
	if dec.BitDepth != BitsPerSample {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d (want 16)", dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("wav read: %w", err)
	}
	samples = make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(dec.SampleRate), int(dec.NumChans), nil
}
