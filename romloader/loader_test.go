package romloader

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

var testExtensions = []string{".gb"}

func testLoader() *Loader {
	return &Loader{Extensions: testExtensions}
}

func createTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

type zipEntry struct {
	name string
	data []byte
}

func createTestZip(t *testing.T, name string, entries ...zipEntry) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create file in zip: %v", err)
		}
		fw.Write(e.data)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return createTestFile(t, name, buf.Bytes())
}

func gzipBytes(t *testing.T, data []byte, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Name = name
	w.Write(data)
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close gzip: %v", err)
	}
	return buf.Bytes()
}

func createTestTarGz(t *testing.T, entries ...zipEntry) string {
	t.Helper()
	var tbuf bytes.Buffer
	tw := tar.NewWriter(&tbuf)
	tw.WriteHeader(&tar.Header{Name: "roms/", Typeflag: tar.TypeDir, Mode: 0o755})
	for _, e := range entries {
		tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(e.data))})
		tw.Write(e.data)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close tar: %v", err)
	}
	return createTestFile(t, "bundle.tar.gz", gzipBytes(t, tbuf.Bytes(), ""))
}

func TestLoad_Raw(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	path := createTestFile(t, "test.gb", data)

	game, err := testLoader().Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(game.Data, data) || game.Name != "test.gb" || game.Archived {
		t.Errorf("got %+v", game)
	}
}

func TestLoad_Archives(t *testing.T) {
	data := []byte{0xAA, 0xBB, 0xCC, 0xDD}

	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantName string
	}{
		{"zip", func(t *testing.T) string {
			return createTestZip(t, "test.zip", zipEntry{"readme.txt", []byte("hi")}, zipEntry{"game.gb", data})
		}, "game.gb"},
		{"zip subdirectory", func(t *testing.T) string {
			return createTestZip(t, "test.zip", zipEntry{"roms/", nil}, zipEntry{"roms/deep.GB", data})
		}, "deep.GB"},
		{"zip by magic without extension", func(t *testing.T) string {
			return createTestZip(t, "download.bin", zipEntry{"game.gb", data})
		}, "game.gb"},
		{"gzip with header name", func(t *testing.T) string {
			return createTestFile(t, "x.gz", gzipBytes(t, data, "named.gb"))
		}, "named.gb"},
		{"gzip from file name", func(t *testing.T) string {
			return createTestFile(t, "plain.gb.gz", gzipBytes(t, data, ""))
		}, "plain.gb"},
		{"tar.gz", func(t *testing.T) string {
			return createTestTarGz(t, zipEntry{"roms/notes.txt", []byte("x")}, zipEntry{"roms/game.gb", data})
		}, "game.gb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game, err := testLoader().Load(tt.path(t))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !bytes.Equal(game.Data, data) {
				t.Errorf("Data mismatch: %v", game.Data)
			}
			if game.Name != tt.wantName || !game.Archived {
				t.Errorf("Name = %q, Archived = %v", game.Name, game.Archived)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"no game in zip", func(t *testing.T) string {
			return createTestZip(t, "test.zip", zipEntry{"readme.txt", []byte("x")})
		}, ErrNoGameFile},
		{"unsupported extension", func(t *testing.T) string {
			return createTestFile(t, "game.nes", []byte{1})
		}, ErrUnsupportedFormat},
		{"too large", func(t *testing.T) string {
			return createTestFile(t, "big.gb", make([]byte, 65))
		}, ErrFileTooLarge},
		{"not found", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "missing.gb")
		}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Loader{Extensions: testExtensions, MaxSize: 64}
			_, err := l.Load(tt.path(t))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_CorruptArchives(t *testing.T) {
	cases := map[string][]byte{
		"fake.7z":     []byte("not a 7z file"),
		"partial.7z":  {0x37, 0x7A, 0xBC},
		"magic.7z":    append([]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, make([]byte, 20)...),
		"fake.rar":    []byte("not a rar file"),
		"magic.rar":   append([]byte("Rar!"), make([]byte, 20)...),
		"empty.rar":   {},
		"corrupt.zip": append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 10)...),
		"broken.gz":   {0x1F, 0x8B, 0x00},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := testLoader().Load(createTestFile(t, name, data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		header []byte
		path   string
		want   format
	}{
		{magicZIP, "x.dat", formatZIP},
		{magicZIPEnd, "x.dat", formatZIP},
		{magic7z, "x.dat", format7z},
		{magicRAR, "x.dat", formatRAR},
		{magicGzip, "x.dat", formatGzip},
		{magicGzip, "x.TAR.GZ", formatTarGzip},
		{nil, "x.tgz", formatTarGzip},
		{nil, "x.zip", formatZIP},
		{nil, "x.rar", formatRAR},
		{nil, "x.7z", format7z},
		{nil, "x.gz", formatGzip},
		{[]byte{0, 1}, "x.GB", formatRaw},
		{[]byte{0, 1}, "x.gba", formatUnknown},
	}
	for _, tt := range tests {
		if got := detectFormat(tt.header, tt.path, testExtensions); got != tt.want {
			t.Errorf("detectFormat(%v, %q) = %v, want %v", tt.header, tt.path, got, tt.want)
		}
	}
}

func TestStage(t *testing.T) {
	data := []byte("staged game")
	stageDir := filepath.Join(t.TempDir(), "staging")

	raw := createTestFile(t, "raw.gb", data)
	path, game, err := testLoader().Stage(raw, stageDir)
	if err != nil {
		t.Fatal(err)
	}
	if path != raw || game.Archived {
		t.Errorf("raw file staged to %s", path)
	}
	if _, err := os.Stat(stageDir); !os.IsNotExist(err) {
		t.Error("staging dir created for a raw file")
	}

	archive := createTestZip(t, "a.zip", zipEntry{"inner/game.gb", data})
	path, _, err = testLoader().Stage(archive, stageDir)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(stageDir, "game.gb") {
		t.Errorf("staged path = %s", path)
	}
	if got, _ := os.ReadFile(path); !bytes.Equal(got, data) {
		t.Errorf("staged content = %q", got)
	}
}

func TestExtensionsFor(t *testing.T) {
	l := New(ekcore.SystemGBC)
	if !l.matches("POKEMON.GBC") || !l.matches("tetris.gb") || l.matches("game.gba") {
		t.Errorf("GBC extensions = %v", l.Extensions)
	}
	exts := ExtensionsFor(ekcore.SystemNES)
	exts[0] = ".changed"
	if ExtensionsFor(ekcore.SystemNES)[0] != ".nes" {
		t.Error("ExtensionsFor returned shared slice")
	}
	if len(ExtensionsFor(ekcore.SystemUnknown)) != 0 {
		t.Error("unknown system has extensions")
	}
}
