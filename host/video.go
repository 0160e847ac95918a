package host

import (
	"sync/atomic"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// PoisonByte is written over host-owned video buffers when they stop being
// valid, so a stale read is visible.
const PoisonByte = 0xDB

// videoStream tracks where the current frame lives and when it stops being
// valid.
type videoStream struct {
	format ekcore.VideoFormat
	// hostBuf is the buffer suggested to the core. nil when the core owns
	// its buffer.
	hostBuf []byte
	current []byte
	gen     atomic.Uint64
}

func newVideoStream(core ekcore.Core, format ekcore.VideoFormat) *videoStream {
	v := &videoStream{format: format}
	if core.CanSetVideoPointer() {
		v.hostBuf = make([]byte, format.FrameSize())
		// the suggestion is handed over once up front; the core decides
		// whether to adopt it
		core.VideoPointer(v.hostBuf)
	}
	return v
}

// hostOwned reports whether the host allocated the frame memory.
func (v *videoStream) hostOwned() bool {
	return v.hostBuf != nil
}

// advance invalidates the current frame.
func (v *videoStream) advance() {
	v.gen.Add(1)
	v.current = nil
}

// capture asks the core where the frame it just rendered lives.
func (v *videoStream) capture(core ekcore.Core) {
	v.current = core.VideoPointer(v.hostBuf)
}

// invalidate ends every outstanding frame; host-owned memory is poisoned.
func (v *videoStream) invalidate(poison bool) {
	v.advance()
	if poison && v.hostBuf != nil {
		for i := range v.hostBuf {
			v.hostBuf[i] = PoisonByte
		}
	}
}

func (v *videoStream) frame() (Frame, bool) {
	if v.current == nil {
		return Frame{}, false
	}
	return Frame{Format: v.format, stream: v, gen: v.gen.Load(), pixels: v.current}, true
}

// Frame is a borrowed view of one rendered frame. It is valid until the
// next ExecuteFrame, Restart, Stop or Deallocate on the instance.
type Frame struct {
	Format ekcore.VideoFormat
	stream *videoStream
	gen    uint64
	pixels []byte
}

// Valid reports whether the frame may still be read.
func (f Frame) Valid() bool {
	return f.stream != nil && f.stream.gen.Load() == f.gen
}

// Pixels returns the frame memory, or ErrStaleFrame once the frame has been
// invalidated. The slice must not be kept past the frame's lifetime.
func (f Frame) Pixels() ([]byte, error) {
	if !f.Valid() {
		return nil, ErrStaleFrame
	}
	return f.pixels, nil
}

// CopyTo copies the frame into dst and returns the number of bytes copied.
func (f Frame) CopyTo(dst []byte) (int, error) {
	p, err := f.Pixels()
	if err != nil {
		return 0, err
	}
	return copy(dst, p), nil
}
