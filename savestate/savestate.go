// Package savestate maps numbered save state slots, the resume state and the
// battery save onto files in a per-game save directory.
package savestate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/EclipseEmu/eclipsekit/storage"
)

// Slots is the number of numbered save state slots.
const Slots = storage.MaxSlot + 1

var (
	ErrNoGame    = errors.New("no game set")
	ErrEmptySlot = errors.New("save slot is empty")
	ErrBadSlot   = errors.New("save slot out of range")
)

// Persister is what the manager drives. *host.Instance satisfies it.
type Persister interface {
	Save(path string) error
	SaveState(path string) error
	LoadState(path string) error
}

// SlotInfo describes one numbered slot.
type SlotInfo struct {
	Slot     int
	Path     string
	Exists   bool
	Modified time.Time
}

// Manager handles save state operations for one game.
type Manager struct {
	dir         string
	currentSlot int
	log         *slog.Logger
}

// New creates a manager for the save directory dir starting at slot. An out
// of range slot starts at 0.
func New(dir string, slot int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if slot < 0 || slot >= Slots {
		slot = 0
	}
	return &Manager{dir: dir, currentSlot: slot, log: log.With("saves", dir)}
}

// ForGame creates a manager for the game's directory under the data dir, or
// under override when it is set.
func ForGame(gameCRC, override string, slot int, log *slog.Logger) (*Manager, error) {
	if gameCRC == "" {
		return nil, ErrNoGame
	}
	if override != "" {
		return New(filepath.Join(override, gameCRC), slot, log), nil
	}
	dir, err := storage.GetGameSaveDir(gameCRC)
	if err != nil {
		return nil, err
	}
	return New(dir, slot, log), nil
}

// Dir returns the save directory.
func (m *Manager) Dir() string {
	return m.dir
}

// CurrentSlot returns the current save slot.
func (m *Manager) CurrentSlot() int {
	return m.currentSlot
}

// SetSlot selects a slot.
func (m *Manager) SetSlot(slot int) error {
	if slot < 0 || slot >= Slots {
		return fmt.Errorf("%w: %d", ErrBadSlot, slot)
	}
	m.currentSlot = slot
	return nil
}

// NextSlot cycles to the next save slot.
func (m *Manager) NextSlot() int {
	m.currentSlot = (m.currentSlot + 1) % Slots
	return m.currentSlot
}

// PreviousSlot cycles to the previous save slot.
func (m *Manager) PreviousSlot() int {
	m.currentSlot--
	if m.currentSlot < 0 {
		m.currentSlot = Slots - 1
	}
	return m.currentSlot
}

// StatePath returns the file for a numbered slot.
func (m *Manager) StatePath(slot int) string {
	return filepath.Join(m.dir, fmt.Sprintf("state-%d.state", slot))
}

// ResumePath returns the resume state file.
func (m *Manager) ResumePath() string {
	return filepath.Join(m.dir, "resume.state")
}

// SRAMPath returns the battery save file. It is the save path given to
// Instance.Start.
func (m *Manager) SRAMPath() string {
	return filepath.Join(m.dir, "cart.srm")
}

func (m *Manager) ensureDir() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	return nil
}

// write has the core write to a temporary file which replaces path only on
// success, so a failed save never clobbers a good one.
func (m *Manager) write(path string, call func(string) error) error {
	if err := m.ensureDir(); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := call(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Save saves the current state to the current slot.
func (m *Manager) Save(p Persister) error {
	path := m.StatePath(m.currentSlot)
	if err := m.write(path, p.SaveState); err != nil {
		return fmt.Errorf("save slot %d: %w", m.currentSlot, err)
	}
	m.log.Info("state saved", "slot", m.currentSlot)
	return nil
}

// Load loads the state from the current slot.
func (m *Manager) Load(p Persister) error {
	path := m.StatePath(m.currentSlot)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %d", ErrEmptySlot, m.currentSlot)
	}
	if err := p.LoadState(path); err != nil {
		return fmt.Errorf("load slot %d: %w", m.currentSlot, err)
	}
	m.log.Info("state loaded", "slot", m.currentSlot)
	return nil
}

// SaveResume saves the resume state.
func (m *Manager) SaveResume(p Persister) error {
	return m.write(m.ResumePath(), p.SaveState)
}

// LoadResume loads the resume state.
func (m *Manager) LoadResume(p Persister) error {
	if !m.HasResumeState() {
		return ErrEmptySlot
	}
	return p.LoadState(m.ResumePath())
}

// HasResumeState checks if a resume state exists.
func (m *Manager) HasResumeState() bool {
	_, err := os.Stat(m.ResumePath())
	return err == nil
}

// SaveSRAM asks the core to write its battery save.
func (m *Manager) SaveSRAM(p Persister) error {
	return m.write(m.SRAMPath(), p.Save)
}

// List reports every numbered slot.
func (m *Manager) List() []SlotInfo {
	out := make([]SlotInfo, Slots)
	for i := range out {
		out[i] = SlotInfo{Slot: i, Path: m.StatePath(i)}
		if st, err := os.Stat(out[i].Path); err == nil {
			out[i].Exists = true
			out[i].Modified = st.ModTime()
		}
	}
	return out
}
