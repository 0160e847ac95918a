package ekcore

import "strings"

// SettingKind identifies which payload a Setting carries.
type SettingKind uint8

const (
	SettingFile SettingKind = iota
	SettingBool
	SettingRadio
)

// String returns the display name of the kind.
func (k SettingKind) String() string {
	switch k {
	case SettingFile:
		return "file"
	case SettingBool:
		return "bool"
	case SettingRadio:
		return "radio"
	default:
		return "unknown"
	}
}

// SettingPayload is the kind-specific part of a Setting. The only
// implementations are FileSetting, BoolSetting and RadioSetting.
type SettingPayload interface {
	Kind() SettingKind
	settingPayload()
}

// FileSetting is a file the host must supply, such as a BIOS image.
type FileSetting struct {
	// MD5 lists the accepted lowercase hex checksums, for cores that work
	// with several dumps. Empty accepts any file.
	MD5         []string
	DisplayName string
}

// Accepts reports whether a file with the given MD5 may be used.
func (f FileSetting) Accepts(md5 string) bool {
	if len(f.MD5) == 0 {
		return true
	}
	for _, want := range f.MD5 {
		if strings.EqualFold(want, md5) {
			return true
		}
	}
	return false
}

// Kind implements SettingPayload.
func (FileSetting) Kind() SettingKind { return SettingFile }
func (FileSetting) settingPayload()   {}

// BoolSetting is a toggle with a default.
type BoolSetting struct {
	Default bool
}

// Kind implements SettingPayload.
func (BoolSetting) Kind() SettingKind { return SettingBool }
func (BoolSetting) settingPayload()   {}

// RadioOption is one choice of a RadioSetting.
type RadioOption struct {
	ID          int
	DisplayName string
}

// RadioSetting picks exactly one of Options. Default must be the id of one
// of them.
type RadioSetting struct {
	Options []RadioOption
	Default int
}

// Kind implements SettingPayload.
func (RadioSetting) Kind() SettingKind { return SettingRadio }
func (RadioSetting) settingPayload()   {}

// Option finds an option by id.
func (r RadioSetting) Option(id int) (RadioOption, bool) {
	for _, o := range r.Options {
		if o.ID == id {
			return o, true
		}
	}
	return RadioOption{}, false
}

// Setting describes one configurable item declared by a core.
type Setting struct {
	// ID is unique within a descriptor.
	ID string
	// System restricts the setting to one system. SystemUnknown applies it
	// to every system.
	System      System
	DisplayName string
	Required    bool
	Payload     SettingPayload
}

// Kind returns the discriminant of the payload.
func (s Setting) Kind() SettingKind {
	if s.Payload == nil {
		return SettingKind(0xff)
	}
	return s.Payload.Kind()
}

// AppliesTo reports whether the setting is relevant for the active system.
func (s Setting) AppliesTo(active System) bool {
	return s.System == SystemUnknown || s.System == active
}

// Settings is a versioned list of settings.
type Settings struct {
	Version uint16
	Items   []Setting
}

// Lookup finds a setting by id.
func (s Settings) Lookup(id string) (Setting, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return Setting{}, false
}

// ResolvedSettings is what a Configurable core receives before start:
// file settings mapped to verified paths, booleans and radio choices mapped
// to values.
type ResolvedSettings struct {
	Version uint16
	Files   map[string]string
	Bools   map[string]bool
	Radios  map[string]int
}

// File returns the resolved path for a file setting.
func (r ResolvedSettings) File(id string) (string, bool) {
	p, ok := r.Files[id]
	return p, ok
}

// Bool returns the resolved value for a bool setting.
func (r ResolvedSettings) Bool(id string) bool {
	return r.Bools[id]
}

// Radio returns the chosen option id for a radio setting.
func (r ResolvedSettings) Radio(id string) (int, bool) {
	v, ok := r.Radios[id]
	return v, ok
}
