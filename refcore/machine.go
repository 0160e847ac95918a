package refcore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

const (
	// MaxPlayers is the number of ports the core exposes.
	MaxPlayers = 2

	Width  = 160
	Height = 144

	SampleRate    = 48000
	FrameRate     = 60
	samplesPerFrm = SampleRate / FrameRate

	sramSize = 256
)

var stateMagic = [4]byte{'E', 'K', 'R', 'S'}

const stateVersion = 1

// machine is everything that determines the next frame.
type machine struct {
	Magic    [4]byte
	Version  uint16
	System   uint16
	Frame    uint64
	BootSeed uint32
	Seed     uint32
	Phase    uint32
	Inputs   [MaxPlayers]uint32
	SRAM     [sramSize]byte
}

var (
	errBadState     = errors.New("refcore: not a state file")
	errStateVersion = errors.New("refcore: unsupported state version")
	errStateSystem  = errors.New("refcore: state belongs to another system")
)

func newMachine(system ekcore.System, seed uint32) machine {
	if seed == 0 {
		seed = 0x9e3779b9
	}
	return machine{
		Magic:    stateMagic,
		Version:  stateVersion,
		System:   uint16(system),
		BootSeed: seed,
		Seed:     seed,
	}
}

// reset returns to the boot state but keeps battery RAM.
func (m *machine) reset() {
	m.Frame = 0
	m.Seed = m.BootSeed
	m.Phase = 0
	m.Inputs = [MaxPlayers]uint32{}
}

// step advances one frame.
func (m *machine) step(cheatMix uint32) {
	x := m.Seed ^ cheatMix
	for _, in := range m.Inputs {
		x ^= in
	}
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	if x == 0 {
		x = m.BootSeed
	}
	m.Seed = x
	m.Frame++
	m.SRAM[m.Frame%sramSize] ^= byte(x)
}

// render writes an RGBA8 frame.
func (m *machine) render(dst []byte, grey bool) {
	base := m.Seed
	for y := 0; y < Height; y++ {
		row := dst[y*Width*4 : (y+1)*Width*4]
		for x := 0; x < Width; x++ {
			v := base + uint32(x*3+y*5) + uint32(m.Frame)
			p := row[x*4 : x*4+4]
			p[0] = byte(v)
			p[1] = byte(v >> 8)
			p[2] = byte(v >> 16)
			p[3] = 0xff
			if grey {
				l := byte((uint16(p[0]) + uint16(p[1]) + uint16(p[2])) / 3)
				p[0], p[1], p[2] = l, l, l
			}
		}
	}
}

// synth fills dst with one frame of interleaved stereo int16 samples.
func (m *machine) synth(dst []byte) {
	period := 40 + m.Seed%200
	for i := 0; i < samplesPerFrm; i++ {
		var s int16 = 2000
		if (m.Phase/(period/2))%2 == 1 {
			s = -2000
		}
		m.Phase++
		binary.LittleEndian.PutUint16(dst[i*4:], uint16(s))
		binary.LittleEndian.PutUint16(dst[i*4+2:], uint16(s))
	}
}

func (m *machine) marshal() []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(m))
	_ = binary.Write(&buf, binary.LittleEndian, m)
	return buf.Bytes()
}

func (m *machine) unmarshal(r io.Reader) error {
	var next machine
	if err := binary.Read(r, binary.LittleEndian, &next); err != nil {
		return fmt.Errorf("%w: %v", errBadState, err)
	}
	if next.Magic != stateMagic {
		return errBadState
	}
	if next.Version != stateVersion {
		return fmt.Errorf("%w: %d", errStateVersion, next.Version)
	}
	if next.System != m.System {
		return errStateSystem
	}
	*m = next
	return nil
}
