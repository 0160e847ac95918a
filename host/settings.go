package host

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// Value is a host-supplied setting value: FileValue, BoolValue or IntValue.
type Value interface {
	kind() ekcore.SettingKind
}

// FileValue points a file setting at a path on disk.
type FileValue struct {
	Path string
}

func (FileValue) kind() ekcore.SettingKind { return ekcore.SettingFile }

// BoolValue sets a boolean setting.
type BoolValue bool

func (BoolValue) kind() ekcore.SettingKind { return ekcore.SettingBool }

// IntValue chooses a radio setting option by id.
type IntValue int

func (IntValue) kind() ekcore.SettingKind { return ekcore.SettingRadio }

// Values are the host's setting values for one core, keyed by setting id.
// Version is the schema version the values were written against; values
// from another version are still matched by id.
type Values struct {
	Version uint16
	Items   map[string]Value
}

// Resolved is the outcome of matching Values against a core's schema for
// one system.
type Resolved struct {
	ekcore.ResolvedSettings

	// Opaque holds values whose id the schema does not know. They are kept
	// so they can be written back unchanged.
	Opaque map[string]Value
	// Skipped lists optional settings whose supplied value was unusable.
	// They fall back to their defaults where they have one.
	Skipped []string
}

// Checksummer returns the lowercase hex MD5 of a file.
type Checksummer func(path string) (string, error)

// ResolveSettings checks values against the settings relevant to system.
// Required settings of any kind without a usable value fail with a
// *SettingError wrapping ErrMissingSetting, ErrChecksumMismatch or
// ErrSettingOption; defaults only fill in optional settings. All such
// problems are joined into the returned error.
func ResolveSettings(info *CoreInfo, system ekcore.System, values Values, checksum Checksummer) (*Resolved, error) {
	r := &Resolved{
		ResolvedSettings: ekcore.ResolvedSettings{
			Version: info.Settings.Version,
			Files:   make(map[string]string),
			Bools:   make(map[string]bool),
			Radios:  make(map[string]int),
		},
		Opaque: make(map[string]Value),
	}

	known := make(map[string]bool, len(info.Settings.Items))
	for _, s := range info.Settings.Items {
		known[s.ID] = true
	}
	for id, v := range values.Items {
		if !known[id] {
			r.Opaque[id] = v
		}
	}

	var errs []error
	for _, s := range info.SettingsFor(system) {
		v, supplied := values.Items[s.ID]
		supplied = supplied && v != nil
		if supplied && v.kind() != s.Kind() {
			errs = append(errs, &SettingError{ID: s.ID, DisplayName: s.DisplayName,
				Err: fmt.Errorf("%w: want %s", ErrSettingKind, s.Kind())})
			continue
		}

		if !supplied && s.Required {
			errs = append(errs, &SettingError{ID: s.ID, DisplayName: displayName(s), Err: ErrMissingSetting})
			continue
		}

		switch p := s.Payload.(type) {
		case ekcore.BoolSetting:
			r.Bools[s.ID] = p.Default
			if supplied {
				r.Bools[s.ID] = bool(v.(BoolValue))
			}

		case ekcore.RadioSetting:
			r.Radios[s.ID] = p.Default
			if !supplied {
				continue
			}
			id := int(v.(IntValue))
			if _, ok := p.Option(id); !ok {
				if s.Required {
					errs = append(errs, &SettingError{ID: s.ID, DisplayName: s.DisplayName,
						Err: fmt.Errorf("%w: %d", ErrSettingOption, id)})
				} else {
					r.Skipped = append(r.Skipped, s.ID)
				}
				continue
			}
			r.Radios[s.ID] = id

		case ekcore.FileSetting:
			if !supplied || v.(FileValue).Path == "" {
				if s.Required {
					errs = append(errs, &SettingError{ID: s.ID, DisplayName: displayName(s), Err: ErrMissingSetting})
				}
				continue
			}
			path := v.(FileValue).Path
			if err := verifyFile(path, p, checksum); err != nil {
				if s.Required {
					errs = append(errs, &SettingError{ID: s.ID, DisplayName: displayName(s), Err: err})
				} else {
					r.Skipped = append(r.Skipped, s.ID)
				}
				continue
			}
			r.Files[s.ID] = path
		}
	}

	sort.Strings(r.Skipped)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func displayName(s ekcore.Setting) string {
	if p, ok := s.Payload.(ekcore.FileSetting); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return s.DisplayName
}

func verifyFile(path string, want ekcore.FileSetting, checksum Checksummer) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSetting, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingSetting, path)
	}
	if len(want.MD5) == 0 {
		return nil
	}
	got, err := checksum(path)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", path, err)
	}
	if !want.Accepts(got) {
		return fmt.Errorf("%w: got %s, want one of %s", ErrChecksumMismatch, got, strings.Join(want.MD5, ", "))
	}
	return nil
}
