package host

import (
	"os"
	"path/filepath"
	"testing"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// fakeCore records every call it receives.
type fakeCore struct {
	bridge ekcore.Bridge
	calls  []string

	startOK    bool
	saveOK     bool
	playerOK   bool
	rejectCode string
	hostBuffer bool
	leak       bool
	max        uint8
	audio      ekcore.AudioFormat
	video      ekcore.VideoFormat

	buf     []byte
	onFrame func()

	cheats     map[string]ekcore.Cheat
	inputs     map[uint8]ekcore.Input
	configured *ekcore.ResolvedSettings
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		startOK:    true,
		saveOK:     true,
		playerOK:   true,
		hostBuffer: true,
		max:        4,
		audio:      ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: 48000, ChannelCount: 2},
		video:      ekcore.VideoFormat{PixelFormat: ekcore.PixelRGBA8, Width: 4, Height: 2},
		cheats:     make(map[string]ekcore.Cheat),
		inputs:     make(map[uint8]ekcore.Input),
	}
}

func (f *fakeCore) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeCore) called(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeCore) Deallocate() {
	f.record("Deallocate")
	if !f.leak {
		f.bridge.Release()
	}
}
func (f *fakeCore) AudioFormat() ekcore.AudioFormat { return f.audio }
func (f *fakeCore) VideoFormat() ekcore.VideoFormat { return f.video }
func (f *fakeCore) DesiredFrameRate() float64       { return 60 }
func (f *fakeCore) CanSetVideoPointer() bool        { return f.hostBuffer }

func (f *fakeCore) VideoPointer(preferred []byte) []byte {
	if preferred != nil {
		f.buf = preferred
	}
	if f.buf == nil {
		f.buf = make([]byte, f.video.FrameSize())
	}
	return f.buf
}

func (f *fakeCore) Start(gamePath, savePath string) bool {
	f.record("Start")
	return f.startOK
}
func (f *fakeCore) Stop()    { f.record("Stop") }
func (f *fakeCore) Restart() { f.record("Restart") }
func (f *fakeCore) Play()    { f.record("Play") }
func (f *fakeCore) Pause()   { f.record("Pause") }

func (f *fakeCore) ExecuteFrame(willRender bool) {
	f.record("ExecuteFrame")
	if willRender {
		for i := range f.buf {
			f.buf[i]++
		}
	}
	if f.onFrame != nil {
		f.onFrame()
	}
}

func (f *fakeCore) Save(path string) bool {
	f.record("Save")
	if f.saveOK {
		f.bridge.DidSave(path)
	}
	return f.saveOK
}
func (f *fakeCore) SaveState(path string) bool { f.record("SaveState"); return f.saveOK }
func (f *fakeCore) LoadState(path string) bool { f.record("LoadState"); return f.saveOK }

func (f *fakeCore) MaxPlayers() uint8 { return f.max }
func (f *fakeCore) PlayerConnected(player uint8) bool {
	f.record("PlayerConnected")
	return f.playerOK
}
func (f *fakeCore) PlayerDisconnected(player uint8) {
	f.record("PlayerDisconnected")
	delete(f.inputs, player)
}
func (f *fakeCore) PlayerSetInputs(player uint8, inputs ekcore.Input) {
	f.record("PlayerSetInputs")
	f.inputs[player] = inputs
}

func (f *fakeCore) SetCheat(format, code string, enabled bool) bool {
	f.record("SetCheat")
	if f.rejectCode != "" && code == f.rejectCode {
		return false
	}
	c := ekcore.Cheat{Format: format, Code: code, Enabled: enabled}
	f.cheats[c.Key()] = c
	return true
}
func (f *fakeCore) ClearCheats() {
	f.record("ClearCheats")
	clear(f.cheats)
}

// configurableCore adds Configure to fakeCore.
type configurableCore struct {
	*fakeCore
}

func (c configurableCore) Configure(s ekcore.ResolvedSettings) bool {
	c.record("Configure")
	c.configured = &s
	return true
}

func fakeDescriptor(core *fakeCore) *ekcore.Descriptor {
	return &ekcore.Descriptor{
		ID:      "test.fake",
		Systems: []ekcore.System{ekcore.SystemGB, ekcore.SystemGBA},
		CheatFormats: []ekcore.CheatFormat{
			{ID: "gs", Charset: ekcore.CharsetHexadecimal, Pattern: "xxxx"},
		},
		Features: ekcore.FeaturesAll,
		Setup: func(system ekcore.System, bridge ekcore.Bridge) (ekcore.Core, error) {
			core.bridge = bridge
			return core, nil
		},
	}
}

func mustInspect(t *testing.T, desc *ekcore.Descriptor) *CoreInfo {
	t.Helper()
	info, err := Inspect(desc)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	return info
}

// openFake opens a fake core for GB and starts it.
func openFake(t *testing.T, core *fakeCore, cb Callbacks) *Instance {
	t.Helper()
	inst, err := Open(mustInspect(t, fakeDescriptor(core)), ekcore.SystemGB, cb, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := inst.Start("game.gb", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return inst
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
