package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// stereo16 is the byte size of one frame handed to oto.
const stereo16 = 4

// Player plays a core's audio through oto. Samples are converted to stereo
// int16 and queued in a ring buffer that oto pulls from.
type Player struct {
	format  ekcore.AudioFormat
	ring    *RingBuffer
	player  *oto.Player
	scratch []byte
}

// PlayerOptions tune a Player.
type PlayerOptions struct {
	// Volume in [0, 2]. Zero mutes.
	Volume float64
	// Buffer is the ring buffer length. Defaults to 100ms.
	Buffer time.Duration
}

// oto allows one context per process
var (
	otoCtx      *oto.Context
	otoRate     int
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext(rate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		otoRate = rate
		<-ready
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if rate != otoRate {
		return nil, fmt.Errorf("audio device already opened at %dHz, core wants %dHz", otoRate, rate)
	}
	return otoCtx, nil
}

// NewPlayer opens the audio device for a core's format and starts playback.
func NewPlayer(format ekcore.AudioFormat, opts PlayerOptions) (*Player, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	rate := int(math.Round(format.SampleRate))
	ctx, err := ensureOtoContext(rate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	p := newPlayer(format, int(buffer.Seconds()*float64(rate))*stereo16)

	p.player = ctx.NewPlayer(p.ring)
	// keep oto's own buffer short so the fill level tracks the ring
	p.player.SetBufferSize(rate * stereo16 / 20)
	p.SetVolume(opts.Volume)
	p.player.Play()
	return p, nil
}

func newPlayer(format ekcore.AudioFormat, ringBytes int) *Player {
	ringBytes -= ringBytes % stereo16
	return &Player{
		format:  format,
		ring:    NewRingBuffer(max(ringBytes, stereo16)),
		scratch: make([]byte, 0, 4096),
	}
}

// Accept implements host.AudioSink. It takes as many whole frames as fit
// and returns the matching number of source bytes.
func (p *Player) Accept(samples []byte) int {
	frameBytes := p.format.FrameBytes()
	if frameBytes == 0 {
		return 0
	}
	frames := min(len(samples)/frameBytes, p.ring.Free()/stereo16)
	if frames == 0 {
		return 0
	}

	var err error
	p.scratch, err = ToStereo16(p.scratch[:0], samples[:frames*frameBytes], p.format)
	if err != nil {
		return 0
	}
	n := p.ring.Offer(p.scratch)
	return (n / stereo16) * frameBytes
}

// BufferLevel returns the bytes queued ahead of the device, including oto's
// internal buffer.
func (p *Player) BufferLevel() int {
	n := p.ring.Buffered()
	if p.player != nil {
		n += p.player.BufferedSize()
	}
	return n
}

// BufferCap returns the ring capacity in bytes.
func (p *Player) BufferCap() int {
	return p.ring.Cap()
}

// Clear drops queued audio.
func (p *Player) Clear() {
	p.ring.Clear()
}

// SetVolume sets the playback volume, clamped to [0, 2].
func (p *Player) SetVolume(vol float64) {
	vol = max(0, min(2, vol))
	if p.player != nil {
		p.player.SetVolume(vol)
	}
}

// Close stops playback.
func (p *Player) Close() error {
	p.ring.Close()
	if p.player != nil {
		return p.player.Close()
	}
	return nil
}
