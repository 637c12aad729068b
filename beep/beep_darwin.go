//go:build darwin

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"whispr/log"
)

// CoreAudio adds its own tail, so darwin cues are shorter.
const toneDur = 0.04

// player keeps one playback device open; the data callback reads the
// current cue from an atomic pointer.
type player struct {
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	cur atomic.Pointer[[]byte]
	pos atomic.Uint32
}

var (
	out     player
	outOnce sync.Once
	outErr  error
)

func Init() {
	outOnce.Do(func() { outErr = out.open() })
	samples(CueStart)
}

func (p *player) open() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return err
	}
	p.ctx = ctx
	if err := p.initDevice(); err != nil {
		ctx.Uninit()
		p.ctx = nil
		return err
	}
	return nil
}

func (p *player) initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate
	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: p.fill})
	if err != nil {
		return err
	}
	p.device = dev
	return nil
}

func (p *player) fill(output, _ []byte, frames uint32) {
	want := frames * 2
	n := uint32(0)
	if s := p.cur.Load(); s != nil {
		pos := p.pos.Load()
		n = min(want, uint32(len(*s))-pos)
		copy(output[:n], (*s)[pos:pos+n])
		p.pos.Store(pos + n)
		if pos+n >= uint32(len(*s)) {
			p.cur.Store(nil)
		}
	}
	clear(output[n:want])
}

func (p *player) play(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return nil
	}
	p.device.Stop()
	p.pos.Store(0)
	p.cur.Store(&pcm)
	if err := p.device.Start(); err == nil {
		return nil
	}
	// the device goes stale across sleep/wake; recreate it once
	p.device.Uninit()
	p.device = nil
	if err := p.initDevice(); err != nil {
		p.cur.Store(nil)
		return err
	}
	return p.device.Start()
}

func play(s []int16) {
	Init()
	if outErr != nil || len(s) == 0 {
		return
	}
	pcm := make([]byte, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	if err := out.play(pcm); err != nil {
		log.Warnf("beep: %v", err)
	}
}
