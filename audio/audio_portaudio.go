//go:build portaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudio backend, selected with -tags portaudio on any OS.

type paContext struct{}

func NewContext() (Context, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w", err)
	}
	return paContext{}, nil
}

func (paContext) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	var result []DeviceInfo
	for i, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		result = append(result, DeviceInfo{ID: strconv.Itoa(i), Name: d.Name})
	}
	return result, nil
}

func (paContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	var in *portaudio.DeviceInfo
	var err error
	if device == nil {
		in, err = portaudio.DefaultInputDevice()
	} else {
		in, err = paDeviceByIndex(device.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("portaudio input: %w", err)
	}
	params := portaudio.LowLatencyParameters(in, nil)
	params.Input.Channels = int(config.Channels)
	params.Output.Channels = 0
	params.SampleRate = float64(config.SampleRate)
	params.FramesPerBuffer = 1024
	return &paCapture{params: params, channels: int(config.Channels)}, nil
}

func (paContext) Close() {
	portaudio.Terminate()
}

func paDeviceByIndex(id string) (*portaudio.DeviceInfo, error) {
	idx, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid device ID %q", id)
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(devices) {
		return nil, fmt.Errorf("device %d gone", idx)
	}
	return devices[idx], nil
}

type paCapture struct {
	params   portaudio.StreamParameters
	channels int
	callback atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (c *paCapture) process(in []int16) {
	cb := c.callback.Load()
	if cb == nil || len(in) == 0 {
		return
	}
	data := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	(*cb)(data, uint32(len(in)/max(c.channels, 1)))
}

func (c *paCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}
	stream, err := portaudio.OpenStream(c.params, c.process)
	if err != nil {
		return fmt.Errorf("portaudio open: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start: %w", err)
	}
	c.stream = stream
	return nil
}

func (c *paCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	c.stream.Stop()
	c.stream.Close()
	c.stream = nil
}

func (c *paCapture) Close() {
	c.Stop()
}

func (c *paCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *paCapture) ClearCallback() {
	c.callback.Store(nil)
}
