package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EclipseEmu/eclipsekit/host"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigRoundTripByExtension(t *testing.T) {
	for _, name := range []string{"config.json", "config.toml", "config.yaml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := DefaultConfig()
			cfg.Log.Level = "debug"
			cfg.Audio.Volume = 0.5
			cfg.Audio.Backend = "none"
			cfg.Saves.Slot = 3
			cfg.SetCoreValues("eclipse.refcore", host.Values{Version: 2, Items: map[string]host.Value{
				"boot_rom": host.FileValue{Path: "/bios/dmg.bin"},
				"autosave": host.BoolValue(true),
				"palette":  host.IntValue(1),
			}})
			require.NoError(t, SaveConfig(path, cfg))

			got, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, "debug", got.Log.Level)
			assert.Equal(t, 0.5, got.Audio.Volume)
			assert.Equal(t, "none", got.Audio.Backend)
			assert.Equal(t, 3, got.Saves.Slot)
			assert.Empty(t, ValidateConfig(got))

			values := got.CoreValues("eclipse.refcore")
			assert.Equal(t, uint16(2), values.Version)
			assert.Equal(t, host.FileValue{Path: "/bios/dmg.bin"}, values.Items["boot_rom"])
			assert.Equal(t, host.BoolValue(true), values.Items["autosave"])
			assert.Equal(t, host.IntValue(1), values.Items["palette"])
		})
	}
}

func TestLoadConfigKeepsExplicitZero(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json", "c.json", `{"audio": {"volume": 0}}`},
		{"toml", "c.toml", "[audio]\nvolume = 0.0\n"},
		{"yaml", "c.yaml", "audio:\n  volume: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			cfg, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Zero(t, cfg.Audio.Volume)
			// absent keys keep their defaults
			assert.Equal(t, 100, cfg.Audio.BufferMs)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.NotNil(t, cfg.Cores)
		})
	}
}

func TestLoadConfigRejectsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateConfigIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, CreateConfigIfMissing(path))
	require.FileExists(t, path)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.Saves.Slot = 7
	require.NoError(t, SaveConfig(path, cfg))

	// an existing file is left alone
	require.NoError(t, CreateConfigIfMissing(path))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Saves.Slot)
}

func TestValidateConfig(t *testing.T) {
	assert.Empty(t, ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Version = 4
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	cfg.Audio.Volume = 3
	cfg.Audio.BufferMs = 5
	cfg.Audio.Backend = "alsa"
	cfg.Saves.Slot = MaxSlot + 1
	cfg.Cores["x"] = CoreConfig{Settings: map[string]any{"speed": 2.5}}

	problems := ValidateConfig(cfg)
	assert.Len(t, problems, 8)
}

func TestCorrectConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "loud"
	cfg.Audio.Volume = -1
	cfg.Audio.BufferMs = 5000
	cfg.Saves.Slot = -2
	cfg.Cores["x"] = CoreConfig{Settings: map[string]any{"speed": 2.5, "fast": true, "palette": 1}}

	// valid fields survive correction
	cfg.Audio.Muted = true
	cfg.Log.Format = "json"

	got := CorrectConfig(cfg)
	assert.Empty(t, ValidateConfig(got))
	assert.Equal(t, "info", got.Log.Level)
	assert.Equal(t, 1.0, got.Audio.Volume)
	assert.Equal(t, 100, got.Audio.BufferMs)
	assert.Equal(t, 1, got.Saves.Slot)
	assert.True(t, got.Audio.Muted)
	assert.Equal(t, "json", got.Log.Format)
	assert.Equal(t, map[string]any{"fast": true, "palette": 1}, got.Cores["x"].Settings)
}

func TestConfiguredCores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetCoreValues("b", host.Values{})
	cfg.SetCoreValues("a", host.Values{})
	assert.Equal(t, []string{"a", "b"}, cfg.ConfiguredCores())
	assert.Empty(t, cfg.CoreValues("missing").Items)
}
