package storage

import (
	"fmt"
	"slices"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validBackends   = []string{"oto", "none"}
)

// ValidateConfig checks config fields against valid ranges and returns
// human-readable problems. An empty slice means the config is valid.
func ValidateConfig(config *Config) []string {
	var problems []string

	if config.Version != 1 {
		problems = append(problems, fmt.Sprintf("version: %d (valid: 1)", config.Version))
	}
	if !slices.Contains(validLogLevels, config.Log.Level) {
		problems = append(problems, fmt.Sprintf("log.level: %q (valid: %v)", config.Log.Level, validLogLevels))
	}
	if !slices.Contains(validLogFormats, config.Log.Format) {
		problems = append(problems, fmt.Sprintf("log.format: %q (valid: %v)", config.Log.Format, validLogFormats))
	}
	if config.Audio.Volume < 0 || config.Audio.Volume > 2.0 {
		problems = append(problems, fmt.Sprintf("audio.volume: %.2f (valid: 0.0-2.0)", config.Audio.Volume))
	}
	if config.Audio.BufferMs < 20 || config.Audio.BufferMs > 1000 {
		problems = append(problems, fmt.Sprintf("audio.bufferMs: %d (valid: 20-1000)", config.Audio.BufferMs))
	}
	if !slices.Contains(validBackends, config.Audio.Backend) {
		problems = append(problems, fmt.Sprintf("audio.backend: %q (valid: %v)", config.Audio.Backend, validBackends))
	}
	if config.Saves.Slot < 0 || config.Saves.Slot > MaxSlot {
		problems = append(problems, fmt.Sprintf("saves.slot: %d (valid: 0-%d)", config.Saves.Slot, MaxSlot))
	}
	for id, core := range config.Cores {
		for key, v := range core.Settings {
			if !validSettingValue(v) {
				problems = append(problems, fmt.Sprintf("cores.%s.settings.%s: %v (valid: path string, bool or integer option)", id, key, v))
			}
		}
	}
	return problems
}

// CorrectConfig resets invalid fields to their defaults and keeps the rest.
// Invalid core setting values are dropped.
func CorrectConfig(config *Config) *Config {
	defaults := DefaultConfig()

	if config.Version != 1 {
		config.Version = defaults.Version
	}
	if !slices.Contains(validLogLevels, config.Log.Level) {
		config.Log.Level = defaults.Log.Level
	}
	if !slices.Contains(validLogFormats, config.Log.Format) {
		config.Log.Format = defaults.Log.Format
	}
	if config.Audio.Volume < 0 || config.Audio.Volume > 2.0 {
		config.Audio.Volume = defaults.Audio.Volume
	}
	if config.Audio.BufferMs < 20 || config.Audio.BufferMs > 1000 {
		config.Audio.BufferMs = defaults.Audio.BufferMs
	}
	if !slices.Contains(validBackends, config.Audio.Backend) {
		config.Audio.Backend = defaults.Audio.Backend
	}
	if config.Saves.Slot < 0 || config.Saves.Slot > MaxSlot {
		config.Saves.Slot = defaults.Saves.Slot
	}
	for _, core := range config.Cores {
		for key, v := range core.Settings {
			if !validSettingValue(v) {
				delete(core.Settings, key)
			}
		}
	}
	return config
}

func validSettingValue(v any) bool {
	switch v.(type) {
	case bool, string:
		return true
	}
	_, ok := settingInt(v)
	return ok
}
