package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

const wavPCM = 1

// WAVRecorder captures a core's audio to a 16-bit PCM WAV file. It keeps
// the core's channel count and sample rate.
type WAVRecorder struct {
	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	format ekcore.AudioFormat
	buf    *goaudio.IntBuffer
	err    error
}

// NewWAVRecorder creates path and prepares to record audio in format.
func NewWAVRecorder(path string, format ekcore.AudioFormat) (*WAVRecorder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.SampleFormat.BytesPerSample() == 0 {
		return nil, fmt.Errorf("wav: cannot record %s samples", format.SampleFormat)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	rate := int(math.Round(format.SampleRate))
	chans := int(format.ChannelCount)
	return &WAVRecorder{
		f:      f,
		enc:    wav.NewEncoder(f, rate, 16, chans, wavPCM),
		format: format,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}, nil
}

// Accept implements Sink. Every whole frame is taken; a write error is kept
// and reported by Close.
func (w *WAVRecorder) Accept(samples []byte) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	frameBytes := w.format.FrameBytes()
	taken := (len(samples) / frameBytes) * frameBytes
	if w.err != nil || w.enc == nil || taken == 0 {
		return taken
	}

	w.buf.Data = Samples16(w.buf.Data[:0], samples[:taken], w.format)
	if err := w.enc.Write(w.buf); err != nil {
		w.err = fmt.Errorf("wav: %w", err)
	}
	return taken
}

// Close finalizes the WAV header and closes the file.
func (w *WAVRecorder) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return w.err
	}
	err := errors.Join(w.err, w.enc.Close(), w.f.Close())
	w.enc = nil
	return err
}

// ReadWAV decodes a PCM WAV file into interleaved samples.
func ReadWAV(path string) (*goaudio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: %s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	return buf, nil
}
