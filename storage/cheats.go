package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/host"
)

//go:embed cheats.schema.json
var cheatSchemaJSON []byte

const cheatSchemaURL = "cheats.schema.json"

// ErrInvalidCheatFile is returned when a cheat list does not match the schema.
var ErrInvalidCheatFile = errors.New("invalid cheat list")

var cheatSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(cheatSchemaURL, bytes.NewReader(cheatSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add cheat schema: %w", err)
	}
	return compiler.Compile(cheatSchemaURL)
})

// CheatFile is a per-game cheat list.
type CheatFile struct {
	Version int          `json:"version"`
	Cheats  []CheatEntry `json:"cheats"`
}

// CheatEntry is one stored cheat. Label is for display only.
type CheatEntry struct {
	Format  string `json:"format"`
	Code    string `json:"code"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label,omitempty"`
}

// ParseCheats validates data against the cheat list schema and decodes it.
func ParseCheats(data []byte) (*CheatFile, error) {
	schema, err := cheatSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheatFile, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheatFile, err)
	}

	var f CheatFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheatFile, err)
	}
	return &f, nil
}

// LoadCheats reads the cheat list at path. A missing file is an empty list.
func LoadCheats(path string) (*CheatFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &CheatFile{Version: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseCheats(data)
}

// SaveCheats writes the cheat list atomically.
func SaveCheats(path string, f *CheatFile) error {
	if f.Cheats == nil {
		f.Cheats = []CheatEntry{}
	}
	return AtomicWriteJSON(path, f)
}

// List returns the entries as contract cheats.
func (f *CheatFile) List() []ekcore.Cheat {
	out := make([]ekcore.Cheat, 0, len(f.Cheats))
	for _, c := range f.Cheats {
		out = append(out, ekcore.Cheat{Format: c.Format, Code: c.Code, Enabled: c.Enabled})
	}
	return out
}

// Update returns a replace-all update making the file the active set.
func (f *CheatFile) Update() host.CheatUpdate {
	return host.CheatUpdate{Mode: host.CheatReplace, Cheats: f.List()}
}

// CheatFileFrom builds a cheat list from tracked cheats.
func CheatFileFrom(cheats []ekcore.Cheat) *CheatFile {
	f := &CheatFile{Version: 1, Cheats: make([]CheatEntry, 0, len(cheats))}
	for _, c := range cheats {
		f.Cheats = append(f.Cheats, CheatEntry{Format: c.Format, Code: c.Code, Enabled: c.Enabled})
	}
	return f
}
