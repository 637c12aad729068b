//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"whispr/log"
)

const toneDur = 0.2

// Init warms the rendered cues so the first beep is not late.
func Init() { samples(CueStart) }

func play(s []int16) {
	go func() {
		if err := playPulse(s); err != nil {
			log.Warnf("beep: %v", err)
		}
	}()
}

func playPulse(s []int16) error {
	if len(s) == 0 {
		return nil
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName("whispr"))
	if err != nil {
		return err
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(s) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, s[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		return err
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	return stream.Error()
}
