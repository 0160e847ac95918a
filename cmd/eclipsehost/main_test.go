package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/audio"
	"github.com/EclipseEmu/eclipsekit/host"
	"github.com/EclipseEmu/eclipsekit/refcore"
	"github.com/EclipseEmu/eclipsekit/romloader"
	"github.com/EclipseEmu/eclipsekit/storage"
)

func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	old := *p
	*p = v
	t.Cleanup(func() { *p = old })
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestPickSystem(t *testing.T) {
	info, err := host.Inspect(refcore.Descriptor())
	require.NoError(t, err)

	dir := t.TempDir()
	gbc := filepath.Join(dir, "game.gbc")
	require.NoError(t, os.WriteFile(gbc, []byte("color"), 0o644))

	s, err := pickSystem(info, gbc)
	require.NoError(t, err)
	assert.Equal(t, ekcore.SystemGBC, s)

	setFlag(t, systemName, "gb")
	s, err = pickSystem(info, gbc)
	require.NoError(t, err)
	assert.Equal(t, ekcore.SystemGB, s)

	setFlag(t, systemName, "")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("text"), 0o644))
	_, err = pickSystem(info, txt)
	assert.Error(t, err)
}

func TestRunHeadlessRecordsAndPersists(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("data dir follows XDG_DATA_HOME only on unix")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	wav := filepath.Join(t.TempDir(), "out.wav")
	setFlag(t, headless, true)
	setFlag(t, frames, uint64(30))
	setFlag(t, wavPath, wav)
	setFlag(t, saveSlot, true)

	game := filepath.Join(t.TempDir(), "game.gb")
	require.NoError(t, os.WriteFile(game, []byte("headless run"), 0o644))

	cfg := storage.DefaultConfig()
	cfg.Audio.Backend = "none"
	cfg.Saves.Slot = 2
	require.NoError(t, run(refcore.Descriptor(), game, cfg, quietLogger()))

	buf, err := audio.ReadWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, refcore.SampleRate, buf.Format.SampleRate)
	assert.Equal(t, 30*refcore.SampleRate/refcore.FrameRate*buf.Format.NumChannels, len(buf.Data))

	crc, err := romloader.FileCRC32(game)
	require.NoError(t, err)
	dir, err := storage.GetGameSaveDir(crc)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "resume.state"))
	assert.FileExists(t, filepath.Join(dir, "state-2.state"))
	assert.FileExists(t, filepath.Join(dir, "cart.srm"))

	// a second run resumes from where the first stopped
	setFlag(t, resume, true)
	setFlag(t, wavPath, "")
	require.NoError(t, run(refcore.Descriptor(), game, cfg, quietLogger()))
}

func TestCmdCheck(t *testing.T) {
	game := filepath.Join(t.TempDir(), "game.gb")
	require.NoError(t, os.WriteFile(game, []byte("check run"), 0o644))
	setFlag(t, systemName, "gb")

	desc, ok := ekcore.Lookup(refcore.ID)
	require.True(t, ok)
	assert.Equal(t, 0, cmdCheck(desc, game, storage.DefaultConfig()))
}
