package ekcore

import (
	"fmt"
	"strings"
)

// System identifies an emulated target platform.
type System uint16

// Unknown is the "not system-specific" sentinel. It is never a runnable target.
const (
	SystemUnknown System = iota
	SystemGB
	SystemGBC
	SystemGBA
	SystemNES
	SystemSNES
)

var systemNames = map[System]string{
	SystemUnknown: "unknown",
	SystemGB:      "gb",
	SystemGBC:     "gbc",
	SystemGBA:     "gba",
	SystemNES:     "nes",
	SystemSNES:    "snes",
}

// String returns the short name of the system.
func (s System) String() string {
	if name, ok := systemNames[s]; ok {
		return name
	}
	return fmt.Sprintf("system(%d)", uint16(s))
}

// Runnable reports whether the system is a concrete target a core can be
// initialized for.
func (s System) Runnable() bool {
	_, ok := systemNames[s]
	return ok && s != SystemUnknown
}

// ScreenAspectRatio returns the display aspect ratio of the system's screen.
func (s System) ScreenAspectRatio() float64 {
	switch s {
	case SystemGB, SystemGBC:
		return 160.0 / 144.0
	case SystemGBA:
		return 3.0 / 2.0
	case SystemNES:
		return 256.0 / 240.0
	case SystemSNES:
		return 8.0 / 7.0
	default:
		return 1
	}
}

// ParseSystem converts a short system name (case-insensitive) to a System.
func ParseSystem(name string) (System, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range systemNames {
		if n == name && s != SystemUnknown {
			return s, nil
		}
	}
	return SystemUnknown, fmt.Errorf("unknown system %q", name)
}
