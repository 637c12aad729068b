package audio

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFakeCaptureDeliversFixture(t *testing.T) {
	ctx := NewFakeContextPCM(Silence(0.5, SampleRate), SampleRate, false)
	capture, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: SampleRate, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	fc := capture.(*FakeCapture)

	var mu sync.Mutex
	var got int
	capture.SetCallback(func(data []byte, frames uint32) {
		mu.Lock()
		got += int(frames)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-fc.AudioDone():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fixture delivery")
	}
	capture.Close()

	mu.Lock()
	defer mu.Unlock()
	if got != SampleRate/2 {
		t.Errorf("frames = %d, want %d", got, SampleRate/2)
	}
	if !fc.Closed() {
		t.Error("capture not closed")
	}
}

func TestFakeContextErrors(t *testing.T) {
	ctx := NewFakeContextPCM(nil, SampleRate, false)
	ctx.OpenErr = errors.New("no mic")
	if _, err := ctx.NewCapture(nil, CaptureConfig{}); err == nil {
		t.Error("expected open error")
	}

	ctx.OpenErr = nil
	ctx.StartErr = errors.New("busy")
	capture, err := ctx.NewCapture(nil, CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := capture.Start(); err == nil {
		t.Error("expected start error")
	}
	capture.Close() // stop without a running feed must not block
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContextPCM(nil, SampleRate, false)

	dev, err := FindDevice(ctx, "Fake Microphone")
	if err != nil || dev == nil || dev.ID != "fake" {
		t.Fatalf("FindDevice = %v, %v", dev, err)
	}
	if dev, err := FindDevice(ctx, ""); dev != nil || err != nil {
		t.Errorf("default = %v, %v", dev, err)
	}
	if _, err := FindDevice(ctx, "USB Headset"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("missing device err = %v", err)
	}
}
