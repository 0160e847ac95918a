package runner

import (
	"sync"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/host"
)

// maxQueuedInputs bounds the input queue; the oldest changes are dropped
// beyond it.
const maxQueuedInputs = 256

// InputChange is one queued input state for a player.
type InputChange struct {
	Player uint8
	Input  ekcore.Input
}

// SharedInput queues input changes written from any goroutine. The driver
// flushes them into the instance between frames, in order.
type SharedInput struct {
	mu      sync.Mutex
	pending []InputChange
	dropped int
}

// Set queues a new input state for player.
func (si *SharedInput) Set(player uint8, input ekcore.Input) {
	si.mu.Lock()
	if len(si.pending) >= maxQueuedInputs {
		si.pending = si.pending[1:]
		si.dropped++
	}
	si.pending = append(si.pending, InputChange{Player: player, Input: input})
	si.mu.Unlock()
}

// Len returns the number of queued changes.
func (si *SharedInput) Len() int {
	si.mu.Lock()
	defer si.mu.Unlock()
	return len(si.pending)
}

// Take removes and returns the queued changes and the number dropped since
// the last call.
func (si *SharedInput) Take() ([]InputChange, int) {
	si.mu.Lock()
	out, dropped := si.pending, si.dropped
	si.pending, si.dropped = nil, 0
	si.mu.Unlock()
	return out, dropped
}

// SharedFramebuffer holds the last rendered frame, copied by the driver and
// read from other goroutines. Separate write and read buffers let the driver
// update while a reader holds its snapshot.
type SharedFramebuffer struct {
	mu          sync.Mutex
	writePixels []byte
	readPixels  []byte
	format      ekcore.VideoFormat
	frame       uint64
}

// NewSharedFramebuffer creates a framebuffer sized for format.
func NewSharedFramebuffer(format ekcore.VideoFormat) *SharedFramebuffer {
	size := format.FrameSize()
	return &SharedFramebuffer{
		writePixels: make([]byte, size),
		readPixels:  make([]byte, size),
		format:      format,
	}
}

// Update copies a frame. Stale frames are ignored.
func (sf *SharedFramebuffer) Update(f host.Frame, frame uint64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if size := f.Format.FrameSize(); size != len(sf.writePixels) {
		sf.writePixels = make([]byte, size)
		sf.readPixels = make([]byte, size)
	}
	if _, err := f.CopyTo(sf.writePixels); err != nil {
		return err
	}
	sf.format = f.Format
	sf.frame = frame
	return nil
}

// Read returns a snapshot of the latest frame, its format and the frame
// counter it was taken at. The pixels stay valid until the next Read.
func (sf *SharedFramebuffer) Read() (pixels []byte, format ekcore.VideoFormat, frame uint64) {
	sf.mu.Lock()
	copy(sf.readPixels, sf.writePixels)
	pixels, format, frame = sf.readPixels, sf.format, sf.frame
	sf.mu.Unlock()
	return
}
