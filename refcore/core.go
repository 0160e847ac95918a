package refcore

import (
	"bytes"
	"errors"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// autosaveEvery is the autosave interval in frames.
const autosaveEvery = 60

// Core is one reference core instance.
type Core struct {
	system ekcore.System
	bridge ekcore.Bridge
	// audio is a second reference used only for sample delivery
	audio ekcore.Bridge
	log   *slog.Logger

	settings ekcore.ResolvedSettings
	started  bool
	paused   bool
	savePath string

	m       machine
	video   []byte
	own     []byte
	samples []byte

	players [MaxPlayers]bool
	cheats  map[string]ekcore.Cheat
	mix     uint32
	grey    bool
}

var (
	_ ekcore.Core         = (*Core)(nil)
	_ ekcore.Configurable = (*Core)(nil)
)

// Setup creates an instance for system.
func Setup(system ekcore.System, bridge ekcore.Bridge) (ekcore.Core, error) {
	if system != ekcore.SystemGB && system != ekcore.SystemGBC {
		return nil, errors.New("refcore: unsupported system " + system.String())
	}
	c := &Core{
		system:  system,
		bridge:  bridge,
		audio:   bridge.Retain(),
		log:     slog.Default().With("core", ID),
		own:     make([]byte, Width*Height*4),
		samples: make([]byte, samplesPerFrm*4),
		cheats:  make(map[string]ekcore.Cheat),
	}
	c.video = c.own
	return c, nil
}

// Configure keeps the resolved settings for the next Start.
func (c *Core) Configure(settings ekcore.ResolvedSettings) bool {
	c.settings = settings
	return true
}

// Deallocate drops both bridge references.
func (c *Core) Deallocate() {
	c.audio.Release()
	c.bridge.Release()
	c.started = false
}

// AudioFormat is 48kHz stereo int16.
func (c *Core) AudioFormat() ekcore.AudioFormat {
	return ekcore.AudioFormat{SampleFormat: ekcore.SampleInt16, SampleRate: SampleRate, ChannelCount: 2}
}

// VideoFormat is a 160x144 RGBA8 frame buffer.
func (c *Core) VideoFormat() ekcore.VideoFormat {
	return ekcore.VideoFormat{
		RenderingType: ekcore.RenderFrameBuffer,
		PixelFormat:   ekcore.PixelRGBA8,
		Width:         Width,
		Height:        Height,
	}
}

// DesiredFrameRate implements ekcore.Core.
func (c *Core) DesiredFrameRate() float64 { return FrameRate }

// CanSetVideoPointer reports that host buffers are honoured.
func (c *Core) CanSetVideoPointer() bool { return true }

// VideoPointer adopts preferred when it is large enough to hold a frame.
func (c *Core) VideoPointer(preferred []byte) []byte {
	if preferred != nil && len(preferred) >= len(c.own) {
		c.video = preferred[:len(c.own)]
	}
	return c.video
}

// Start seeds the machine from the game image and the boot ROM, if one is
// configured, and loads battery RAM from savePath when it exists.
func (c *Core) Start(gamePath, savePath string) bool {
	game, err := os.ReadFile(gamePath)
	if err != nil || len(game) == 0 {
		c.log.Warn("cannot load game", "path", gamePath, "err", err)
		return false
	}

	seed := crc32.ChecksumIEEE(game)
	if boot, ok := c.settings.File(SettingBootROM); ok {
		data, err := os.ReadFile(boot)
		if err != nil {
			return false
		}
		seed ^= crc32.ChecksumIEEE(data)
	}

	m := newMachine(c.system, seed)
	if savePath != "" {
		if sram, err := os.ReadFile(savePath); err == nil {
			copy(m.SRAM[:], sram)
		}
	}

	c.m = m
	c.grey = c.greyscale()
	c.savePath = savePath
	c.started = true
	c.paused = false
	return true
}

// Stop poisons the core's own frame buffer so reads after stop are visible.
func (c *Core) Stop() {
	c.started = false
	for i := range c.own {
		c.own[i] = 0xDB
	}
}

// Restart resets the machine and keeps battery RAM.
func (c *Core) Restart() {
	c.m.reset()
}

// Play and Pause gate ExecuteFrame.
func (c *Core) Play()  { c.paused = false }
func (c *Core) Pause() { c.paused = true }

// ExecuteFrame steps one frame, pushes its audio and autosaves every
// autosaveEvery frames when enabled.
func (c *Core) ExecuteFrame(willRender bool) {
	if !c.started || c.paused {
		return
	}
	c.m.step(c.mix)
	if willRender {
		c.m.render(c.video, c.grey)
	}
	c.m.synth(c.samples)
	c.audio.WriteAudio(c.samples)

	if c.savePath != "" && c.settings.Bool(SettingAutosave) && c.m.Frame%autosaveEvery == 0 {
		c.Save(c.savePath)
	}
}

// Save writes battery RAM and reports it through the bridge.
func (c *Core) Save(path string) bool {
	if err := writeFile(path, c.m.SRAM[:]); err != nil {
		c.log.Warn("save failed", "path", path, "err", err)
		return false
	}
	c.bridge.DidSave(path)
	return true
}

// SaveState writes the machine state.
func (c *Core) SaveState(path string) bool {
	if err := writeFile(path, c.m.marshal()); err != nil {
		c.log.Warn("save state failed", "path", path, "err", err)
		return false
	}
	return true
}

// LoadState restores a state written by SaveState for the same system.
func (c *Core) LoadState(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := c.m.unmarshal(bytes.NewReader(data)); err != nil {
		c.log.Warn("load state failed", "path", path, "err", err)
		return false
	}
	return true
}

// MaxPlayers implements ekcore.Core.
func (c *Core) MaxPlayers() uint8 { return MaxPlayers }

// PlayerConnected accepts any port below MaxPlayers.
func (c *Core) PlayerConnected(player uint8) bool {
	if player >= MaxPlayers {
		return false
	}
	c.players[player] = true
	return true
}

// PlayerDisconnected frees the port and clears its inputs.
func (c *Core) PlayerDisconnected(player uint8) {
	if player < MaxPlayers {
		c.players[player] = false
		c.m.Inputs[player] = 0
	}
}

// PlayerSetInputs ignores ports that are not connected.
func (c *Core) PlayerSetInputs(player uint8, inputs ekcore.Input) {
	if player < MaxPlayers && c.players[player] {
		c.m.Inputs[player] = uint32(inputs)
	}
}

// SetCheat adds or updates a cheat. Only the declared formats are accepted.
func (c *Core) SetCheat(format, code string, enabled bool) bool {
	if format != FormatGameShark && format != FormatGameGenie {
		return false
	}
	cheat := ekcore.Cheat{Format: format, Code: strings.TrimSpace(code), Enabled: enabled}
	c.cheats[cheat.Key()] = cheat
	c.remix()
	return true
}

// ClearCheats removes every cheat.
func (c *Core) ClearCheats() {
	clear(c.cheats)
	c.mix = 0
}

// remix folds enabled cheats into the frame function. XOR keeps the result
// independent of insertion order.
func (c *Core) remix() {
	c.mix = 0
	for k, ch := range c.cheats {
		if ch.Enabled {
			c.mix ^= crc32.ChecksumIEEE([]byte(k))
		}
	}
}

func (c *Core) greyscale() bool {
	p, _ := c.settings.Radio(SettingPalette)
	return p == PaletteGreyscale
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
