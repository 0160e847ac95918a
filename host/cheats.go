package host

import (
	"strings"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// CheatMode selects how a CheatUpdate combines with the active set.
type CheatMode uint8

const (
	// CheatDelta adds or updates the given cheats and keeps the rest.
	CheatDelta CheatMode = iota
	// CheatReplace makes the given cheats the entire set.
	CheatReplace
)

// CheatUpdate is one atomic change to an instance's cheats.
type CheatUpdate struct {
	Mode   CheatMode
	Cheats []ekcore.Cheat
}

// CheatSet is an ordered set of tracked cheats. Disabled cheats stay in the
// set so they can be enabled again without resupplying the code.
type CheatSet struct {
	order   []string
	entries map[string]ekcore.Cheat
}

// NewCheatSet returns an empty set.
func NewCheatSet() *CheatSet {
	return &CheatSet{entries: make(map[string]ekcore.Cheat)}
}

// Len returns the number of tracked cheats.
func (s *CheatSet) Len() int {
	return len(s.order)
}

// List returns the tracked cheats in insertion order.
func (s *CheatSet) List() []ekcore.Cheat {
	out := make([]ekcore.Cheat, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k])
	}
	return out
}

// Get returns the tracked cheat matching format and code.
func (s *CheatSet) Get(format, code string) (ekcore.Cheat, bool) {
	c, ok := s.entries[ekcore.Cheat{Format: format, Code: code}.Key()]
	return c, ok
}

func (s *CheatSet) clone() *CheatSet {
	c := &CheatSet{
		order:   append([]string(nil), s.order...),
		entries: make(map[string]ekcore.Cheat, len(s.entries)),
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	return c
}

func (s *CheatSet) put(c ekcore.Cheat) {
	c.Code = strings.TrimSpace(c.Code)
	k := c.Key()
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
	s.entries[k] = c
}

func (s *CheatSet) remove(format, code string) bool {
	k := ekcore.Cheat{Format: format, Code: code}.Key()
	if _, ok := s.entries[k]; !ok {
		return false
	}
	delete(s.entries, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// with returns the set that results from applying u, leaving s unchanged.
func (s *CheatSet) with(u CheatUpdate) *CheatSet {
	var next *CheatSet
	if u.Mode == CheatReplace {
		next = NewCheatSet()
	} else {
		next = s.clone()
	}
	for _, c := range u.Cheats {
		next.put(c)
	}
	return next
}

// validateCheats checks every cheat against the formats declared for system
// before anything is applied.
func validateCheats(info *CoreInfo, system ekcore.System, state State, cheats []ekcore.Cheat) error {
	for _, c := range cheats {
		f, ok := info.CheatFormatFor(system, c.Format)
		if !ok {
			return violation(OpCheats, state, ErrUnknownCheatFormat)
		}
		if err := f.Validate(c.Code); err != nil {
			return violation(OpCheats, state, ErrInvalidCheatCode)
		}
	}
	return nil
}

// pushCheats makes the core's active cheats equal to want. If the core
// rejects an entry, the previous set is restored and false returned.
func pushCheats(core ekcore.Core, prev, want *CheatSet, mode CheatMode, delta []ekcore.Cheat) bool {
	if applier, ok := core.(ekcore.CheatListApplier); ok {
		if applier.ApplyCheats(want.List()) {
			return true
		}
		applier.ApplyCheats(prev.List())
		return false
	}

	if mode == CheatDelta {
		for _, c := range delta {
			if !core.SetCheat(c.Format, strings.TrimSpace(c.Code), c.Enabled) {
				restoreCheats(core, prev)
				return false
			}
		}
		return true
	}

	core.ClearCheats()
	for _, c := range want.List() {
		if !core.SetCheat(c.Format, c.Code, c.Enabled) {
			restoreCheats(core, prev)
			return false
		}
	}
	return true
}

func restoreCheats(core ekcore.Core, set *CheatSet) {
	core.ClearCheats()
	for _, c := range set.List() {
		core.SetCheat(c.Format, c.Code, c.Enabled)
	}
}
