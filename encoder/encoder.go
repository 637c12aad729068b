package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

// Format names an archive container for finished recordings.
type Format string

const (
	FormatNone Format = ""
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNone, FormatWAV, FormatFLAC:
		return f, nil
	}
	return FormatNone, fmt.Errorf("unknown archive format %q (use wav or flac)", s)
}

// Archive writes mono samples into dir as recording_<timestamp>.<format>
// and returns the file path.
func Archive(dir string, samples []int16, rate int, format Format, now time.Time) (string, error) {
	if format == FormatNone {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("archive dir: %w", err)
	}
	name := fmt.Sprintf("recording_%s.%s", now.Format("20060102_150405.000"), format)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("archive create: %w", err)
	}
	switch format {
	case FormatWAV:
		err = WriteWAV(f, samples, rate)
	case FormatFLAC:
		err = WriteFLAC(f, samples, rate)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("archive %s: %w", format, err)
	}
	return path, nil
}
