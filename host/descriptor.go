package host

import (
	"errors"
	"fmt"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// CoreInfo is the host's own copy of a core descriptor. Everything the host
// needs is copied out by Inspect so nothing aliases memory owned by the core.
type CoreInfo struct {
	ID        string
	Name      string
	Developer string
	Version   string
	SourceURL string

	Systems          []ekcore.System
	Settings         ekcore.Settings
	CheatFormats     []ekcore.CheatFormat
	Features         ekcore.Features
	PlayerConnection ekcore.PlayerConnectionBehavior

	// SystemFeatures and SystemCheatFormats are the per-system overrides.
	SystemFeatures     map[ekcore.System]ekcore.Features
	SystemCheatFormats map[ekcore.System][]ekcore.CheatFormat

	setup ekcore.SetupFunc
}

// Inspect validates a descriptor and returns a deep copy of it.
func Inspect(desc *ekcore.Descriptor) (*CoreInfo, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if desc.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	}
	if desc.Setup == nil {
		return nil, fmt.Errorf("%w: %s has no setup function", ErrInvalidDescriptor, desc.ID)
	}
	if len(desc.Systems) == 0 {
		return nil, fmt.Errorf("%w: %s supports no systems", ErrInvalidDescriptor, desc.ID)
	}

	info := &CoreInfo{
		ID:               desc.ID,
		Name:             desc.Name,
		Developer:        desc.Developer,
		Version:          desc.Version,
		SourceURL:        desc.SourceURL,
		Systems:          make([]ekcore.System, 0, len(desc.Systems)),
		Settings:         ekcore.Settings{Version: desc.Settings.Version},
		Features:         desc.Features,
		PlayerConnection: desc.PlayerConnection,
		setup:            desc.Setup,
	}

	seenSystem := make(map[ekcore.System]bool)
	for _, s := range desc.Systems {
		if !s.Runnable() {
			return nil, fmt.Errorf("%w: %s lists non-runnable system %s", ErrInvalidDescriptor, desc.ID, s)
		}
		if seenSystem[s] {
			continue
		}
		seenSystem[s] = true
		info.Systems = append(info.Systems, s)
	}

	seenSetting := make(map[string]bool)
	for _, item := range desc.Settings.Items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: %s has a setting without id", ErrInvalidDescriptor, desc.ID)
		}
		if seenSetting[item.ID] {
			return nil, fmt.Errorf("%w: %s declares setting %q twice", ErrInvalidDescriptor, desc.ID, item.ID)
		}
		seenSetting[item.ID] = true

		switch p := item.Payload.(type) {
		case ekcore.FileSetting:
			p.MD5 = append([]string(nil), p.MD5...)
			item.Payload = p
		case ekcore.BoolSetting:
		case ekcore.RadioSetting:
			if err := checkRadio(p); err != nil {
				return nil, fmt.Errorf("%w: setting %q: %w", ErrInvalidDescriptor, item.ID, err)
			}
			p.Options = append([]ekcore.RadioOption(nil), p.Options...)
			item.Payload = p
		default:
			return nil, fmt.Errorf("%w: setting %q has no valid payload", ErrInvalidDescriptor, item.ID)
		}
		if item.System != ekcore.SystemUnknown && !seenSystem[item.System] {
			return nil, fmt.Errorf("%w: setting %q targets unsupported system %s", ErrInvalidDescriptor, item.ID, item.System)
		}
		info.Settings.Items = append(info.Settings.Items, item)
	}

	formats, err := copyCheatFormats(desc.CheatFormats)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %w", ErrInvalidDescriptor, desc.ID, err)
	}
	info.CheatFormats = formats

	if len(desc.SystemFeatures) > 0 {
		info.SystemFeatures = make(map[ekcore.System]ekcore.Features, len(desc.SystemFeatures))
		for s, f := range desc.SystemFeatures {
			if !seenSystem[s] {
				return nil, fmt.Errorf("%w: %s has features for unsupported system %s", ErrInvalidDescriptor, desc.ID, s)
			}
			info.SystemFeatures[s] = f
		}
	}
	if len(desc.SystemCheatFormats) > 0 {
		info.SystemCheatFormats = make(map[ekcore.System][]ekcore.CheatFormat, len(desc.SystemCheatFormats))
		for s, list := range desc.SystemCheatFormats {
			if !seenSystem[s] {
				return nil, fmt.Errorf("%w: %s has cheat formats for unsupported system %s", ErrInvalidDescriptor, desc.ID, s)
			}
			formats, err := copyCheatFormats(list)
			if err != nil {
				return nil, fmt.Errorf("%w: %s on %s %w", ErrInvalidDescriptor, desc.ID, s, err)
			}
			info.SystemCheatFormats[s] = formats
		}
	}

	return info, nil
}

func copyCheatFormats(list []ekcore.CheatFormat) ([]ekcore.CheatFormat, error) {
	out := make([]ekcore.CheatFormat, 0, len(list))
	seen := make(map[string]bool)
	for _, f := range list {
		if f.ID == "" {
			return nil, errors.New("has a cheat format without id")
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("declares cheat format %q twice", f.ID)
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	return out, nil
}

func checkRadio(p ekcore.RadioSetting) error {
	if len(p.Options) == 0 {
		return errors.New("radio setting has no options")
	}
	seen := make(map[int]bool, len(p.Options))
	for _, o := range p.Options {
		if seen[o.ID] {
			return fmt.Errorf("option %d declared twice", o.ID)
		}
		seen[o.ID] = true
	}
	if !seen[p.Default] {
		return fmt.Errorf("default %d is not an option", p.Default)
	}
	return nil
}

// Supports reports whether the core can run the given system.
func (c *CoreInfo) Supports(system ekcore.System) bool {
	for _, s := range c.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// CheatFormat returns the descriptor-wide cheat format with the given id.
func (c *CoreInfo) CheatFormat(id string) (ekcore.CheatFormat, bool) {
	return findFormat(c.CheatFormats, id)
}

// FeaturesFor returns the features offered when system is active.
func (c *CoreInfo) FeaturesFor(system ekcore.System) ekcore.Features {
	if f, ok := c.SystemFeatures[system]; ok {
		return f
	}
	return c.Features
}

// CheatFormatsFor returns the cheat formats accepted when system is active.
func (c *CoreInfo) CheatFormatsFor(system ekcore.System) []ekcore.CheatFormat {
	if formats, ok := c.SystemCheatFormats[system]; ok {
		return formats
	}
	return c.CheatFormats
}

// CheatFormatFor looks a format up among those accepted for system.
func (c *CoreInfo) CheatFormatFor(system ekcore.System, id string) (ekcore.CheatFormat, bool) {
	return findFormat(c.CheatFormatsFor(system), id)
}

func findFormat(formats []ekcore.CheatFormat, id string) (ekcore.CheatFormat, bool) {
	for _, f := range formats {
		if f.ID == id {
			return f, true
		}
	}
	return ekcore.CheatFormat{}, false
}

// SettingsFor returns the settings relevant when system is active.
func (c *CoreInfo) SettingsFor(system ekcore.System) []ekcore.Setting {
	var out []ekcore.Setting
	for _, s := range c.Settings.Items {
		if s.AppliesTo(system) {
			out = append(out, s)
		}
	}
	return out
}
