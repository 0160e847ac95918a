package ekcore

import (
	"errors"
	"math"
	"testing"
)

func TestParseSystem(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    System
		wantErr bool
	}{
		{name: "gb", input: "gb", want: SystemGB},
		{name: "mixed case", input: " SNES ", want: SystemSNES},
		{name: "unknown is not runnable", input: "unknown", wantErr: true},
		{name: "garbage", input: "n64", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSystem(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSystem(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSystem(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSystem(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSystemRunnable(t *testing.T) {
	if SystemUnknown.Runnable() {
		t.Error("SystemUnknown must not be runnable")
	}
	if !SystemGBA.Runnable() {
		t.Error("SystemGBA should be runnable")
	}
	if System(99).Runnable() {
		t.Error("undefined system should not be runnable")
	}
	if System(99).String() != "system(99)" {
		t.Errorf("unexpected name %q", System(99).String())
	}
}

func TestScreenAspectRatio(t *testing.T) {
	if got := SystemGBA.ScreenAspectRatio(); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("GBA aspect ratio = %f, want 1.5", got)
	}
	if got := SystemUnknown.ScreenAspectRatio(); got != 1 {
		t.Errorf("unknown aspect ratio = %f, want 1", got)
	}
}

func TestVideoFormatValidate(t *testing.T) {
	ok := VideoFormat{PixelFormat: PixelRGBA8, Width: 160, Height: 144}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid format rejected: %v", err)
	}
	if ok.Stride() != 640 || ok.FrameSize() != 640*144 {
		t.Errorf("stride/frame size = %d/%d", ok.Stride(), ok.FrameSize())
	}

	rgb565 := VideoFormat{PixelFormat: PixelBGR565, Width: 240, Height: 160}
	if rgb565.FrameSize() != 240*160*2 {
		t.Errorf("bgr565 frame size = %d", rgb565.FrameSize())
	}

	if err := (VideoFormat{PixelFormat: PixelRGBA8, Width: 0, Height: 10}).Validate(); err == nil {
		t.Error("zero width should be rejected")
	}
}

func TestAudioFormatValidate(t *testing.T) {
	f := AudioFormat{SampleFormat: SampleInt16, SampleRate: 48000, ChannelCount: 2}
	if err := f.Validate(); err != nil {
		t.Fatalf("valid format rejected: %v", err)
	}
	if f.FrameBytes() != 4 {
		t.Errorf("FrameBytes = %d, want 4", f.FrameBytes())
	}
	if err := (AudioFormat{SampleRate: 0, ChannelCount: 1}).Validate(); err == nil {
		t.Error("zero sample rate should be rejected")
	}
	if err := (AudioFormat{SampleRate: 44100, ChannelCount: 0}).Validate(); err == nil {
		t.Error("zero channels should be rejected")
	}
}

func TestCheatFormatValidate(t *testing.T) {
	gameShark := CheatFormat{ID: "gameshark", Charset: CharsetHexadecimal, Pattern: "xxxxxxxx"}
	genie := CheatFormat{ID: "genie", Charset: CharsetHexadecimal, Pattern: "xxx-xxx-xxx"}
	raw := CheatFormat{ID: "raw", Charset: CharsetHexadecimal}

	tests := []struct {
		name   string
		format CheatFormat
		code   string
		ok     bool
	}{
		{"gameshark ok", gameShark, "010F3AC0", true},
		{"lowercase ok", gameShark, "010f3ac0", true},
		{"too short", gameShark, "010F3A", false},
		{"non hex", gameShark, "010G3AC0", false},
		{"literal separators", genie, "0A1-B2C-3D4", true},
		{"wrong separator", genie, "0A1 B2C 3D4", false},
		{"free form", raw, "DEADBEEF00", true},
		{"free form empty", raw, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate(tt.code)
			if tt.ok && err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.code, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("Validate(%q) expected error", tt.code)
				}
				if !errors.Is(err, ErrCodeMismatch) {
					t.Fatalf("expected ErrCodeMismatch, got %v", err)
				}
			}
		})
	}
}

func TestInputString(t *testing.T) {
	if InputNone.String() != "None" {
		t.Errorf("InputNone = %q", InputNone.String())
	}
	in := InputStart | InputDpadLeft | InputGyroZ
	if got := in.String(); got != "Start|DpadLeft|GyroZ" {
		t.Errorf("String() = %q", got)
	}
	if !in.Has(InputStart | InputGyroZ) {
		t.Error("Has should report both bits")
	}
	bit, ok := ParseInput("touchnegy")
	if !ok || bit != InputTouchNegY {
		t.Errorf("ParseInput(touchnegy) = %v, %v", bit, ok)
	}
}

func TestSettingKindFromPayload(t *testing.T) {
	file := Setting{ID: "bios", Payload: FileSetting{MD5: []string{"abc123"}}}
	toggle := Setting{ID: "rtc", Payload: BoolSetting{Default: true}}
	if file.Kind() != SettingFile || toggle.Kind() != SettingBool {
		t.Fatalf("kinds = %v/%v", file.Kind(), toggle.Kind())
	}
	if !file.AppliesTo(SystemGB) {
		t.Error("system-agnostic setting should apply to every system")
	}
	scoped := Setting{ID: "gbc-bios", System: SystemGBC, Payload: FileSetting{}}
	if scoped.AppliesTo(SystemGB) {
		t.Error("GBC setting should not apply to GB")
	}

	settings := Settings{Version: 1, Items: []Setting{file, toggle}}
	if _, ok := settings.Lookup("rtc"); !ok {
		t.Error("Lookup(rtc) failed")
	}
	if _, ok := settings.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
}

func TestRegistry(t *testing.T) {
	desc := &Descriptor{ID: "test.registry", Systems: []System{SystemNES}}
	Register(desc)

	got, ok := Lookup("test.registry")
	if !ok || got != desc {
		t.Fatal("Lookup did not return the registered descriptor")
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	Register(&Descriptor{ID: "test.registry"})
}

func TestRadioAndFileSettings(t *testing.T) {
	radio := RadioSetting{Options: []RadioOption{{ID: 0, DisplayName: "Off"}, {ID: 2, DisplayName: "On"}}}
	if (Setting{Payload: radio}).Kind() != SettingRadio || SettingRadio.String() != "radio" {
		t.Error("radio kind")
	}
	if o, ok := radio.Option(2); !ok || o.DisplayName != "On" {
		t.Errorf("Option(2) = %v, %v", o, ok)
	}
	if _, ok := radio.Option(1); ok {
		t.Error("Option(1) should not exist")
	}

	if !(FileSetting{}).Accepts("anything") {
		t.Error("file without checksums should accept any file")
	}
	bios := FileSetting{MD5: []string{"aa11", "bb22"}}
	if !bios.Accepts("BB22") || bios.Accepts("cc33") {
		t.Error("Accepts does not match the checksum set")
	}
}

func TestPerSystemOverrides(t *testing.T) {
	d := &Descriptor{
		Systems:        []System{SystemGB, SystemGBA},
		Features:       FeaturesAll,
		CheatFormats:   []CheatFormat{{ID: "gs"}},
		SystemFeatures: map[System]Features{SystemGBA: FeatureSaving},
		SystemCheatFormats: map[System][]CheatFormat{
			SystemGBA: {{ID: "ar"}},
		},
	}
	if d.FeaturesFor(SystemGB) != FeaturesAll || d.FeaturesFor(SystemGBA) != FeatureSaving {
		t.Error("FeaturesFor ignores overrides")
	}
	if d.CheatFormatsFor(SystemGB)[0].ID != "gs" || d.CheatFormatsFor(SystemGBA)[0].ID != "ar" {
		t.Error("CheatFormatsFor ignores overrides")
	}
}
