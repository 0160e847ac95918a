package storage

import (
	"math"
	"sort"

	"github.com/EclipseEmu/eclipsekit/host"
)

// MaxSlot is the highest numbered save state slot.
const MaxSlot = 9

// CoreConfig holds one core's setting values. File settings are stored as
// path strings, bool settings as booleans and radio settings as integers.
type CoreConfig struct {
	SettingsVersion uint16         `json:"settingsVersion" toml:"settingsVersion" yaml:"settingsVersion"`
	Settings        map[string]any `json:"settings,omitempty" toml:"settings,omitempty" yaml:"settings,omitempty"`
}

// Values converts stored settings into host values. Entries of any other
// type are skipped; ValidateConfig reports them.
func (c CoreConfig) Values() host.Values {
	v := host.Values{Version: c.SettingsVersion, Items: make(map[string]host.Value, len(c.Settings))}
	for id, raw := range c.Settings {
		switch x := raw.(type) {
		case string:
			v.Items[id] = host.FileValue{Path: x}
		case bool:
			v.Items[id] = host.BoolValue(x)
		default:
			if n, ok := settingInt(raw); ok {
				v.Items[id] = host.IntValue(n)
			}
		}
	}
	return v
}

// settingInt accepts the integer forms the config decoders produce: float64
// from JSON, int64 from TOML and int from YAML.
func settingInt(raw any) (int, bool) {
	switch x := raw.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}

// CoreValues returns the host values stored for coreID.
func (c *Config) CoreValues(coreID string) host.Values {
	return c.Cores[coreID].Values()
}

// SetCoreValues stores values for coreID, replacing what was there.
func (c *Config) SetCoreValues(coreID string, values host.Values) {
	cc := CoreConfig{SettingsVersion: values.Version, Settings: make(map[string]any, len(values.Items))}
	for id, v := range values.Items {
		switch x := v.(type) {
		case host.FileValue:
			cc.Settings[id] = x.Path
		case host.BoolValue:
			cc.Settings[id] = bool(x)
		case host.IntValue:
			cc.Settings[id] = int(x)
		}
	}
	if c.Cores == nil {
		c.Cores = map[string]CoreConfig{}
	}
	c.Cores[coreID] = cc
}

// ConfiguredCores lists core ids with stored settings.
func (c *Config) ConfiguredCores() []string {
	ids := make([]string, 0, len(c.Cores))
	for id := range c.Cores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
