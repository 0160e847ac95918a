package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the host configuration. It can be stored as JSON, TOML or YAML;
// the format follows the file extension.
type Config struct {
	Version int                   `json:"version" toml:"version" yaml:"version"`
	Log     LogConfig             `json:"log" toml:"log" yaml:"log"`
	Audio   AudioConfig           `json:"audio" toml:"audio" yaml:"audio"`
	Video   VideoConfig           `json:"video" toml:"video" yaml:"video"`
	Saves   SavesConfig           `json:"saves" toml:"saves" yaml:"saves"`
	Cores   map[string]CoreConfig `json:"cores,omitempty" toml:"cores,omitempty" yaml:"cores,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level" toml:"level" yaml:"level"`    // debug, info, warn, error
	Format string `json:"format" toml:"format" yaml:"format"` // text or json
}

// AudioConfig controls the audio sink.
type AudioConfig struct {
	Volume   float64 `json:"volume" toml:"volume" yaml:"volume"`
	Muted    bool    `json:"muted" toml:"muted" yaml:"muted"`
	BufferMs int     `json:"bufferMs" toml:"bufferMs" yaml:"bufferMs"`
	Backend  string  `json:"backend" toml:"backend" yaml:"backend"` // oto or none
}

// VideoConfig controls frame rendering.
type VideoConfig struct {
	// SkipRender runs frames with willRender=false, for headless runs.
	SkipRender bool `json:"skipRender" toml:"skipRender" yaml:"skipRender"`
}

// SavesConfig controls where saves and states go.
type SavesConfig struct {
	// Dir overrides the data directory's saves folder.
	Dir  string `json:"dir,omitempty" toml:"dir,omitempty" yaml:"dir,omitempty"`
	Slot int    `json:"slot" toml:"slot" yaml:"slot"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Log:     LogConfig{Level: "info", Format: "text"},
		Audio: AudioConfig{
			Volume:   1.0,
			BufferMs: 100,
			Backend:  "oto",
		},
		Saves: SavesConfig{Slot: 1},
		Cores: map[string]CoreConfig{},
	}
}

// LoadConfig reads the config at path. A missing file yields defaults.
// Keys absent from the file keep their default values, so explicit zero
// values such as volume 0 are preserved.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	switch configFormat(path) {
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	}
	if cfg.Cores == nil {
		cfg.Cores = map[string]CoreConfig{}
	}
	return cfg, nil
}

// SaveConfig writes cfg to path atomically in the format of its extension.
func SaveConfig(path string, cfg *Config) error {
	switch configFormat(path) {
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("encode TOML: %w", err)
		}
		return AtomicWrite(path, buf.Bytes())
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		return AtomicWrite(path, data)
	default:
		return AtomicWriteJSON(path, cfg)
	}
}

// CreateConfigIfMissing writes a default config to path if none exists.
func CreateConfigIfMissing(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return SaveConfig(path, DefaultConfig())
	}
	return nil
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
