// Package refcore is a small deterministic core. It implements the whole
// ekcore contract without emulating real hardware: every frame is a pure
// function of the loaded game, the inputs and the enabled cheats, which
// makes it useful for host tests and conformance checks.
package refcore

import (
	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// ID is the registry id of the reference core.
const ID = "eclipse.refcore"

// Setting ids declared by the core.
const (
	SettingBootROM  = "boot_rom"
	SettingAutosave = "autosave"
	SettingPalette  = "palette"
)

// Palette options for SettingPalette.
const (
	PaletteColour = iota
	PaletteGreyscale
)

// Cheat format ids declared by the core.
const (
	FormatGameShark = "gameshark"
	FormatGameGenie = "gamegenie"
)

// Descriptor returns a fresh descriptor for the reference core.
func Descriptor() *ekcore.Descriptor {
	return &ekcore.Descriptor{
		ID:        ID,
		Name:      "Reference Core",
		Developer: "EclipseEmu",
		Version:   "1.0.0",
		SourceURL: "https://github.com/EclipseEmu/eclipsekit",
		Systems:   []ekcore.System{ekcore.SystemGB, ekcore.SystemGBC},
		Settings: ekcore.Settings{
			Version: 1,
			Items: []ekcore.Setting{
				{
					ID:          SettingBootROM,
					System:      ekcore.SystemGB,
					DisplayName: "Boot ROM",
					Payload:     ekcore.FileSetting{DisplayName: "DMG Boot ROM"},
				},
				{
					ID:          SettingAutosave,
					DisplayName: "Autosave battery RAM",
					Payload:     ekcore.BoolSetting{Default: false},
				},
				{
					ID:          SettingPalette,
					DisplayName: "Palette",
					Payload: ekcore.RadioSetting{
						Options: []ekcore.RadioOption{
							{ID: PaletteColour, DisplayName: "Colour"},
							{ID: PaletteGreyscale, DisplayName: "Greyscale"},
						},
						Default: PaletteColour,
					},
				},
			},
		},
		CheatFormats: []ekcore.CheatFormat{
			{ID: FormatGameShark, DisplayName: "GameShark", Charset: ekcore.CharsetHexadecimal, Pattern: "xxxxxxxx"},
			{ID: FormatGameGenie, DisplayName: "Game Genie", Charset: ekcore.CharsetHexadecimal, Pattern: "xxx-xxx-xxx"},
		},
		Features:         ekcore.FeaturesAll,
		PlayerConnection: ekcore.ConnectPorts,
		Setup:            Setup,
	}
}

func init() {
	ekcore.Register(Descriptor())
}
