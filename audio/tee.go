package audio

// Sink is anything that takes pushed samples.
type Sink interface {
	Accept(samples []byte) int
}

// Tee forwards to a primary sink and mirrors what it accepted to taps, so a
// recording matches what was played.
type Tee struct {
	Primary Sink
	Taps    []Sink
}

// Accept implements Sink.
func (t *Tee) Accept(samples []byte) int {
	n := len(samples)
	if t.Primary != nil {
		n = t.Primary.Accept(samples)
	}
	for _, tap := range t.Taps {
		tap.Accept(samples[:n])
	}
	return n
}
