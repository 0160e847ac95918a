// Package audio holds host-side audio sinks for cores: a bounded ring
// buffer, oto playback and WAV capture.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// ToStereo16 converts whole frames of src, in format f, to interleaved
// little-endian stereo int16 appended to dst. Mono is duplicated and
// channels beyond the second are dropped. Trailing partial frames are
// ignored.
func ToStereo16(dst []byte, src []byte, f ekcore.AudioFormat) ([]byte, error) {
	bps := f.SampleFormat.BytesPerSample()
	if bps == 0 || f.ChannelCount == 0 {
		return dst, fmt.Errorf("audio: cannot convert %s x%d", f.SampleFormat, f.ChannelCount)
	}
	frameBytes := bps * int(f.ChannelCount)
	frames := len(src) / frameBytes

	for i := 0; i < frames; i++ {
		frame := src[i*frameBytes:]
		l := sample16(frame, f.SampleFormat)
		r := l
		if f.ChannelCount > 1 {
			r = sample16(frame[bps:], f.SampleFormat)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(l))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(r))
	}
	return dst, nil
}

// Samples16 decodes whole frames of src into int16 values, keeping the
// channel layout.
func Samples16(dst []int, src []byte, f ekcore.AudioFormat) []int {
	bps := f.SampleFormat.BytesPerSample()
	if bps == 0 || f.ChannelCount == 0 {
		return dst
	}
	frameBytes := bps * int(f.ChannelCount)
	n := (len(src) / frameBytes) * int(f.ChannelCount)
	for i := 0; i < n; i++ {
		dst = append(dst, int(sample16(src[i*bps:], f.SampleFormat)))
	}
	return dst
}

func sample16(b []byte, sf ekcore.SampleFormat) int16 {
	switch sf {
	case ekcore.SampleInt16:
		return int16(binary.LittleEndian.Uint16(b))
	case ekcore.SampleInt32:
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	case ekcore.SampleFloat32:
		return floatTo16(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case ekcore.SampleFloat64:
		return floatTo16(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	default:
		return 0
	}
}

func floatTo16(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	v = max(-1, min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}
