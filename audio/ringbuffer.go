package audio

import (
	"io"
	"sync"
)

// RingBuffer is a bounded byte FIFO between a core pushing samples and a
// device pulling them. Read blocks until data arrives or the buffer is
// closed, so it can back an oto player directly.
type RingBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	r      int
	n      int
	closed bool
}

// NewRingBuffer creates a buffer holding at most capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buf: make([]byte, capacity)}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write stores p, dropping the oldest buffered bytes to make room. Writes
// after Close are ignored.
func (rb *RingBuffer) Write(p []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed || len(p) == 0 {
		return
	}

	size := len(rb.buf)
	if len(p) > size {
		p = p[len(p)-size:]
	}
	if over := rb.n + len(p) - size; over > 0 {
		rb.r = (rb.r + over) % size
		rb.n -= over
	}
	rb.put(p)
	rb.cond.Broadcast()
}

// Offer stores as much of p as fits without dropping anything and returns
// the number of bytes taken.
func (rb *RingBuffer) Offer(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return 0
	}
	free := len(rb.buf) - rb.n
	if len(p) > free {
		p = p[:free]
	}
	if len(p) > 0 {
		rb.put(p)
		rb.cond.Broadcast()
	}
	return len(p)
}

// OfferAll stores p only if all of it fits.
func (rb *RingBuffer) OfferAll(p []byte) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed || len(p) > len(rb.buf)-rb.n {
		return false
	}
	if len(p) > 0 {
		rb.put(p)
		rb.cond.Broadcast()
	}
	return true
}

// Accept implements host.AudioSink with Offer semantics.
func (rb *RingBuffer) Accept(samples []byte) int {
	return rb.Offer(samples)
}

// put copies p behind the buffered data. p must fit.
func (rb *RingBuffer) put(p []byte) {
	size := len(rb.buf)
	w := (rb.r + rb.n) % size
	c := copy(rb.buf[w:], p)
	copy(rb.buf, p[c:])
	rb.n += len(p)
}

// Read blocks until data is available. After Close it drains what is left
// and then returns io.EOF.
func (rb *RingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.n == 0 && !rb.closed {
		rb.cond.Wait()
	}
	if rb.n == 0 {
		return 0, io.EOF
	}

	size := len(rb.buf)
	want := min(len(p), rb.n)
	c := copy(p[:want], rb.buf[rb.r:min(rb.r+want, size)])
	copy(p[c:want], rb.buf)
	rb.r = (rb.r + want) % size
	rb.n -= want
	return want, nil
}

// Buffered returns the number of unread bytes.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.n
}

// Free returns the number of bytes Offer would currently accept.
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closed {
		return 0
	}
	return len(rb.buf) - rb.n
}

// Cap returns the capacity in bytes.
func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}

// Clear discards buffered data.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.r, rb.n = 0, 0
}

// Close wakes blocked readers. Buffered data can still be read.
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}

var _ io.Reader = (*RingBuffer)(nil)
