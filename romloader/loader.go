// Package romloader turns a game file on disk, possibly inside an archive
// (ZIP, 7z, gzip, tar.gz, RAR), into a plain file a core can open.
//
// Cores are handed paths rather than bytes, so archived games are staged:
// the first member with a matching extension is extracted into a staging
// directory and that path is passed to the core.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06}
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21}
)

// DefaultMaxSize covers the largest GBA cartridges.
const DefaultMaxSize = 32 * 1024 * 1024

var (
	ErrNoGameFile        = errors.New("no game file found in archive")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum size limit")
)

type format int

const (
	formatUnknown format = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatTarGzip
	formatRAR
)

var systemExtensions = map[ekcore.System][]string{
	ekcore.SystemGB:   {".gb"},
	ekcore.SystemGBC:  {".gbc", ".cgb", ".gb"},
	ekcore.SystemGBA:  {".gba", ".agb"},
	ekcore.SystemNES:  {".nes", ".unf"},
	ekcore.SystemSNES: {".sfc", ".smc"},
}

// ExtensionsFor returns the game file extensions used by system.
func ExtensionsFor(system ekcore.System) []string {
	return append([]string(nil), systemExtensions[system]...)
}

// Game is a loaded game image.
type Game struct {
	// Name is the base name of the game file, inside the archive if any.
	Name string
	Data []byte
	// Source is the path that was opened.
	Source   string
	Archived bool
}

// Loader finds game files by extension.
type Loader struct {
	Extensions []string
	// MaxSize bounds the size of an extracted game. Zero means DefaultMaxSize.
	MaxSize int64
}

// New returns a loader for the given system's extensions.
func New(system ekcore.System) *Loader {
	return &Loader{Extensions: ExtensionsFor(system)}
}

func (l *Loader) maxSize() int64 {
	if l.MaxSize > 0 {
		return l.MaxSize
	}
	return DefaultMaxSize
}

// Load reads the game at path, extracting it from an archive if needed.
func (l *Loader) Load(path string) (*Game, error) {
	kind, err := l.detect(path)
	if err != nil {
		return nil, err
	}

	if kind == formatRaw {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		data, err := l.limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read game: %w", err)
		}
		return &Game{Name: filepath.Base(path), Data: data, Source: path}, nil
	}

	var found *Game
	err = walkers[kind](path, func(m member) (bool, error) {
		if m.dir || !l.matches(m.name) {
			return false, nil
		}
		rc, err := m.open()
		if err != nil {
			return false, fmt.Errorf("failed to open %s in archive: %w", m.name, err)
		}
		defer rc.Close()
		data, err := l.limitedRead(rc)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", m.name, err)
		}
		found = &Game{Name: filepath.Base(m.name), Data: data, Source: path, Archived: true}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNoGameFile
	}
	return found, nil
}

// Stage returns a path to an uncompressed copy of the game at path. Raw
// files are returned unchanged; archived games are extracted into dir.
func (l *Loader) Stage(path, dir string) (string, *Game, error) {
	game, err := l.Load(path)
	if err != nil {
		return "", nil, err
	}
	if !game.Archived {
		return path, game, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	staged := filepath.Join(dir, game.Name)
	tmp := staged + ".tmp"
	if err := os.WriteFile(tmp, game.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to stage game: %w", err)
	}
	if err := os.Rename(tmp, staged); err != nil {
		os.Remove(tmp)
		return "", nil, fmt.Errorf("failed to stage game: %w", err)
	}
	return staged, game, nil
}

func (l *Loader) detect(path string) (format, error) {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return formatUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	kind := detectFormat(header[:n], path, l.Extensions)
	if kind == formatUnknown {
		return kind, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return kind, nil
}

// detectFormat prefers magic bytes and falls back to the file name.
func detectFormat(header []byte, path string, extensions []string) format {
	lower := strings.ToLower(path)
	tarName := strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")

	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicGzip):
		if tarName {
			return formatTarGzip
		}
		return formatGzip
	}

	switch ext := filepath.Ext(lower); {
	case ext == ".zip":
		return formatZIP
	case ext == ".7z":
		return format7z
	case tarName:
		return formatTarGzip
	case ext == ".gz":
		return formatGzip
	case ext == ".rar":
		return formatRAR
	case hasExtension(lower, extensions):
		return formatRaw
	}
	return formatUnknown
}

func (l *Loader) matches(name string) bool {
	return hasExtension(strings.ToLower(name), l.Extensions)
}

func hasExtension(lower string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func (l *Loader) limitedRead(r io.Reader) ([]byte, error) {
	limit := l.maxSize()
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
