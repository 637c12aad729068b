package encoder

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((i % 2000) - 1000)
	}
	return out
}

func TestWAVReadsBackWhatWasWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	in := ramp(16000)
	if err := WriteWAV(f, in, 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	out, rate, channels, err := ReadWAV(r)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("rate=%d channels=%d, want 16000/1", rate, channels)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	if _, _, _, err := ReadWAV(bytes.NewReader([]byte("definitely not a wav file"))); err == nil {
		t.Error("expected error for invalid WAV")
	}
}

func TestWriteFLAC(t *testing.T) {
	for _, n := range []int{0, BlockSize / 4, BlockSize*3 + 17} {
		var buf bytes.Buffer
		if err := WriteFLAC(&buf, ramp(n), 16000); err != nil {
			t.Fatalf("WriteFLAC(%d samples): %v", n, err)
		}
		data := buf.Bytes()
		if len(data) < 4 || string(data[:4]) != "fLaC" {
			t.Fatalf("%d samples: output does not start with FLAC magic", n)
		}
	}
}

func TestArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recordings")
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	for _, format := range []Format{FormatWAV, FormatFLAC} {
		t.Run(string(format), func(t *testing.T) {
			path, err := Archive(dir, ramp(8000), 16000, format, now)
			if err != nil {
				t.Fatalf("Archive: %v", err)
			}
			if !strings.HasSuffix(path, "."+string(format)) {
				t.Errorf("path %q lacks extension", path)
			}
			if st, err := os.Stat(path); err != nil || st.Size() == 0 {
				t.Errorf("archive not written: %v", err)
			}
		})
	}

	path, err := Archive(dir, ramp(10), 16000, FormatNone, now)
	if err != nil || path != "" {
		t.Errorf("FormatNone: path=%q err=%v", path, err)
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"", "wav", "flac"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q): %v", s, err)
		}
	}
	if _, err := ParseFormat("mp3"); err == nil {
		t.Error("expected error for mp3")
	}
}
