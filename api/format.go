package ekcore

import (
	"errors"
	"fmt"
)

// SampleFormat is the shape of a single audio sample.
type SampleFormat uint8

const (
	SampleOther SampleFormat = iota
	SampleInt16
	SampleInt32
	SampleFloat32
	SampleFloat64
)

// BytesPerSample returns the width of one sample of one channel, or 0 for
// SampleOther.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleInt16:
		return 2
	case SampleInt32, SampleFloat32:
		return 4
	case SampleFloat64:
		return 8
	default:
		return 0
	}
}

// String returns the display name of the sample format.
func (f SampleFormat) String() string {
	switch f {
	case SampleInt16:
		return "int16"
	case SampleInt32:
		return "int32"
	case SampleFloat32:
		return "float32"
	case SampleFloat64:
		return "float64"
	default:
		return "other"
	}
}

// AudioFormat is the negotiated shape of a core's audio stream. It is fixed
// for the lifetime of a running instance. Samples are interleaved when more
// than one channel is used.
type AudioFormat struct {
	SampleFormat SampleFormat
	SampleRate   float64
	ChannelCount uint32
}

// FrameBytes returns the size of one interleaved sample frame.
func (f AudioFormat) FrameBytes() int {
	return f.SampleFormat.BytesPerSample() * int(f.ChannelCount)
}

// Validate checks the invariants of the audio format.
func (f AudioFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive, got %v", f.SampleRate)
	}
	if f.ChannelCount < 1 {
		return errors.New("audio channel count must be at least 1")
	}
	return nil
}

// PixelFormat is the memory layout of a single pixel.
type PixelFormat uint8

const (
	PixelBGRA8 PixelFormat = iota
	PixelRGBA8
	PixelBGR565
)

// BytesPerPixel returns the size of one pixel.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelBGR565:
		return 2
	default:
		return 4
	}
}

// String returns the display name of the pixel format.
func (p PixelFormat) String() string {
	switch p {
	case PixelBGRA8:
		return "bgra8"
	case PixelRGBA8:
		return "rgba8"
	case PixelBGR565:
		return "bgr565"
	default:
		return fmt.Sprintf("pixel(%d)", uint8(p))
	}
}

// RenderingType selects how a core produces frames.
type RenderingType uint8

const (
	// RenderFrameBuffer means the core writes pixels into a linear buffer.
	RenderFrameBuffer RenderingType = iota
)

// VideoFormat is the negotiated shape of a core's video frames.
type VideoFormat struct {
	RenderingType RenderingType
	PixelFormat   PixelFormat
	Width         uint32
	Height        uint32
}

// Stride returns bytes per row.
func (f VideoFormat) Stride() int {
	return int(f.Width) * f.PixelFormat.BytesPerPixel()
}

// FrameSize returns the number of bytes in one full frame.
func (f VideoFormat) FrameSize() int {
	return f.Stride() * int(f.Height)
}

// Validate checks the invariants of the video format.
func (f VideoFormat) Validate() error {
	if f.RenderingType != RenderFrameBuffer {
		return fmt.Errorf("unsupported rendering type %d", f.RenderingType)
	}
	if f.PixelFormat > PixelBGR565 {
		return fmt.Errorf("unsupported pixel format %s", f.PixelFormat)
	}
	if f.Width == 0 || f.Height == 0 {
		return fmt.Errorf("video dimensions must be positive, got %dx%d", f.Width, f.Height)
	}
	return nil
}
