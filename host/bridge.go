package host

import (
	"log/slog"
	"sync"
	"sync/atomic"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// AudioSink receives audio pushed by a core. Accept returns the number of
// bytes taken, which may be less than len(samples).
type AudioSink interface {
	Accept(samples []byte) int
}

// Callbacks are the host hooks behind an instance's bridge. Both are
// optional. They run on whatever goroutine the core calls them from, which
// is normally the goroutine inside ExecuteFrame.
type Callbacks struct {
	// Audio receives samples. A nil sink accepts and discards everything.
	Audio AudioSink
	// OnSave is told the path of each completed save.
	OnSave func(path string)
}

// bridge is the shared state behind every reference handed to a core.
type bridge struct {
	callbacks Callbacks
	log       *slog.Logger

	refs   atomic.Int64
	closed atomic.Bool

	// serializes hook delivery after close so late calls are counted once
	mu      sync.Mutex
	dropped uint64
}

func newBridge(cb Callbacks, log *slog.Logger) (*bridge, *bridgeRef) {
	b := &bridge{callbacks: cb, log: log}
	b.refs.Store(1)
	return b, &bridgeRef{b: b}
}

// close marks the bridge dead and returns the number of references the core
// never released.
func (b *bridge) close() int64 {
	b.closed.Store(true)
	return b.refs.Load()
}

func (b *bridge) drop(hook string) {
	b.mu.Lock()
	b.dropped++
	n := b.dropped
	b.mu.Unlock()
	if n == 1 || n%1000 == 0 {
		b.log.Warn("dropping hook call on released bridge", "hook", hook, "dropped", n)
	}
}

// bridgeRef is one counted reference held by the core.
type bridgeRef struct {
	b        *bridge
	released atomic.Bool
}

var _ ekcore.Bridge = (*bridgeRef)(nil)

func (r *bridgeRef) live() bool {
	return !r.released.Load() && !r.b.closed.Load()
}

// WriteAudio implements ekcore.Bridge.
func (r *bridgeRef) WriteAudio(samples []byte) int {
	if !r.live() {
		r.b.drop("writeAudio")
		return 0
	}
	if r.b.callbacks.Audio == nil {
		return len(samples)
	}
	return r.b.callbacks.Audio.Accept(samples)
}

// DidSave implements ekcore.Bridge.
func (r *bridgeRef) DidSave(path string) {
	if !r.live() {
		r.b.drop("didSave")
		return
	}
	if r.b.callbacks.OnSave != nil {
		r.b.callbacks.OnSave(path)
	}
}

// Retain implements ekcore.Bridge.
func (r *bridgeRef) Retain() ekcore.Bridge {
	r.b.refs.Add(1)
	return &bridgeRef{b: r.b}
}

// Release implements ekcore.Bridge.
func (r *bridgeRef) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.b.refs.Add(-1)
	}
}
