package audio

import (
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

func le16(v ...int16) []byte {
	var b []byte
	for _, s := range v {
		b = binary.LittleEndian.AppendUint16(b, uint16(s))
	}
	return b
}

func TestToStereo16(t *testing.T) {
	f32 := func(v ...float32) []byte {
		var b []byte
		for _, s := range v {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(s))
		}
		return b
	}
	i32 := func(v ...int32) []byte {
		var b []byte
		for _, s := range v {
			b = binary.LittleEndian.AppendUint32(b, uint32(s))
		}
		return b
	}

	tests := []struct {
		name   string
		format ekcore.AudioFormat
		src    []byte
		want   []byte
	}{
		{"stereo int16", ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 1, ChannelCount: 2},
			le16(1, -2, 3, -4), le16(1, -2, 3, -4)},
		{"mono duplicated", ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 1, ChannelCount: 1},
			le16(7, 8), le16(7, 7, 8, 8)},
		{"partial frame dropped", ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 1, ChannelCount: 2},
			le16(1, 2, 3), le16(1, 2)},
		{"float clamps", ekcore.AudioFormat{SampleFormat: ekcore.SampleFloat32, SampleRate: 1, ChannelCount: 2},
			f32(2, -1), le16(math.MaxInt16, -math.MaxInt16)},
		{"int32 high bits", ekcore.AudioFormat{SampleFormat: ekcore.SampleInt32, SampleRate: 1, ChannelCount: 1},
			i32(0x12340000), le16(0x1234, 0x1234)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToStereo16(nil, tt.src, tt.format)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ToStereo16(nil, []byte{1}, ekcore.AudioFormat{SampleFormat: ekcore.SampleOther, ChannelCount: 1}); err == nil {
		t.Error("expected error for SampleOther")
	}
}

func TestPlayerAcceptsWholeFrames(t *testing.T) {
	mono := ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 48000, ChannelCount: 1}
	p := newPlayer(mono, 16) // four stereo frames

	if n := p.Accept(le16(1, 2, 3)); n != 6 {
		t.Fatalf("Accept = %d, want 6", n)
	}
	if n := p.Accept(le16(4, 5, 6)); n != 2 {
		t.Fatalf("Accept into a nearly full ring = %d, want 2", n)
	}
	if n := p.Accept(le16(9)); n != 0 {
		t.Fatalf("Accept into a full ring = %d", n)
	}
	if p.BufferLevel() != 16 {
		t.Errorf("BufferLevel = %d", p.BufferLevel())
	}
	p.Clear()
	if p.BufferLevel() != 0 {
		t.Error("Clear left data")
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

type recordSink struct {
	got   []byte
	limit int
}

func (r *recordSink) Accept(p []byte) int {
	n := min(len(p), r.limit)
	r.got = append(r.got, p[:n]...)
	return n
}

func TestTeeMirrorsAcceptedBytes(t *testing.T) {
	primary := &recordSink{limit: 3}
	tap := &recordSink{limit: 100}
	tee := &Tee{Primary: primary, Taps: []Sink{tap}}

	if n := tee.Accept([]byte{1, 2, 3, 4, 5}); n != 3 {
		t.Fatalf("Accept = %d", n)
	}
	if string(tap.got) != string([]byte{1, 2, 3}) {
		t.Errorf("tap got %v", tap.got)
	}

	noPrimary := &Tee{Taps: []Sink{tap}}
	if n := noPrimary.Accept([]byte{9, 9}); n != 2 {
		t.Errorf("Accept without primary = %d", n)
	}
}

func TestWAVRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	format := ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 32000, ChannelCount: 2}

	rec, err := NewWAVRecorder(path, format)
	if err != nil {
		t.Fatal(err)
	}
	if n := rec.Accept(le16(100, -100, 200, -200, 5)); n != 8 {
		t.Fatalf("Accept = %d, want 8", n)
	}
	rec.Accept(le16(300, -300))
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	buf, err := ReadWAV(path)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Format.NumChannels != 2 || buf.Format.SampleRate != 32000 {
		t.Errorf("format = %+v", buf.Format)
	}
	want := []int{100, -100, 200, -200, 300, -300}
	if len(buf.Data) != len(want) {
		t.Fatalf("samples = %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("samples = %v, want %v", buf.Data, want)
		}
	}
}

func TestWAVRecorderRejectsOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	_, err := NewWAVRecorder(path, ekcore.AudioFormat{SampleFormat: ekcore.SampleOther, SampleRate: 1, ChannelCount: 1})
	if err == nil {
		t.Error("expected error")
	}
}
