// Package ekcore defines the contract between an emulation host and the
// interchangeable cores it runs.
//
// A core advertises itself with a Descriptor. The host picks a system from
// the descriptor, hands the Setup function a Bridge and gets back a Core: the
// capability table of one running instance. Everything the host may ask of
// that instance is a method of Core; every call into a given Core must be
// serialized by the host.
package ekcore

// Bridge is the host side of a running instance: the hooks a core calls to
// push audio and to report finished saves.
//
// A bridge is a counted reference. The core receives one reference from
// Setup and may take more with Retain. Every reference must be released
// before the core's Deallocate returns; the host treats the bridge as gone
// afterwards and drops any further calls.
type Bridge interface {
	// WriteAudio pushes interleaved samples in the instance's AudioFormat.
	// It returns the number of bytes accepted, which may be less than
	// len(samples). The core decides what to do with the rest.
	WriteAudio(samples []byte) int

	// DidSave tells the host the save file at path is complete and safe to
	// read. It may be called from inside ExecuteFrame.
	DidSave(path string)

	// Retain returns an additional reference to the same bridge.
	Retain() Bridge

	// Release drops this reference. Releasing twice is a no-op.
	Release()
}

// Core is the capability table of one running instance.
type Core interface {
	// Deallocate tears the instance down. It is called exactly once and
	// must release every Bridge reference the core holds.
	Deallocate()

	// AudioFormat returns the audio stream shape. Read once after Start.
	AudioFormat() AudioFormat

	// VideoFormat returns the video frame shape. Read once after Start.
	VideoFormat() VideoFormat

	// DesiredFrameRate is advisory; the host decides pacing.
	DesiredFrameRate() float64

	// CanSetVideoPointer reports whether VideoPointer honours a
	// host-suggested buffer.
	CanSetVideoPointer() bool

	// VideoPointer returns the buffer holding the most recent frame. When
	// preferred is non-nil the core should render into it, but the
	// returned slice is authoritative.
	VideoPointer(preferred []byte) []byte

	// Start loads the game. savePath may not exist yet. A false return
	// must leave no partially running state.
	Start(gamePath, savePath string) bool
	Stop()
	// Restart performs a soft reset without requiring another Start.
	Restart()
	Play()
	Pause()

	// ExecuteFrame runs emulation for one video frame. Audio may be pushed
	// through the Bridge during the call whether or not willRender is set.
	ExecuteFrame(willRender bool)

	// Save writes battery-backed save data to path. A core that completes
	// the write later returns true and calls Bridge.DidSave when done.
	Save(path string) bool
	SaveState(path string) bool
	LoadState(path string) bool

	// MaxPlayers bounds player indices to [0, MaxPlayers).
	MaxPlayers() uint8
	PlayerConnected(player uint8) bool
	PlayerDisconnected(player uint8)
	PlayerSetInputs(player uint8, inputs Input)

	// SetCheat adds or updates one cheat. ClearCheats removes all of them.
	SetCheat(format, code string, enabled bool) bool
	ClearCheats()
}

// CheatListApplier is implemented by cores that can swap their whole active
// cheat set in one call.
type CheatListApplier interface {
	ApplyCheats(cheats []Cheat) bool
}

// Configurable is implemented by cores that consume resolved settings. The
// host calls Configure before Start.
type Configurable interface {
	Configure(settings ResolvedSettings) bool
}

// Features advertises optional capabilities of a core.
type Features uint8

const (
	FeatureSaving Features = 1 << (iota + 1)
	FeatureCheats
	FeatureSaveStates
	FeatureSoftReset
	FeatureHardReset
)

// FeaturesAll is every defined feature.
const FeaturesAll = FeatureSaving | FeatureCheats | FeatureSaveStates | FeatureSoftReset | FeatureHardReset

// Has reports whether every feature in f is present.
func (fs Features) Has(f Features) bool {
	return fs&f == f
}

// PlayerConnectionBehavior describes how player indices are assigned.
type PlayerConnectionBehavior uint8

const (
	// ConnectPorts keeps players on the port they connected to.
	ConnectPorts PlayerConnectionBehavior = iota
	// ConnectLinear packs players; a disconnect shifts later players down.
	ConnectLinear
)

// SetupFunc initializes an instance for the given system.
type SetupFunc func(system System, bridge Bridge) (Core, error)

// Descriptor is the static description of a core. It is read by the host
// before any instance exists and must not change afterwards.
type Descriptor struct {
	ID        string
	Name      string
	Developer string
	Version   string
	SourceURL string

	// Systems is non-empty and never contains SystemUnknown.
	Systems      []System
	Settings     Settings
	CheatFormats []CheatFormat
	Features     Features

	// SystemFeatures and SystemCheatFormats replace Features and
	// CheatFormats for the listed systems.
	SystemFeatures     map[System]Features
	SystemCheatFormats map[System][]CheatFormat

	PlayerConnection PlayerConnectionBehavior

	Setup SetupFunc
}

// Supports reports whether the descriptor lists the system.
func (d *Descriptor) Supports(system System) bool {
	for _, s := range d.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// FeaturesFor returns the features the core offers for system.
func (d *Descriptor) FeaturesFor(system System) Features {
	if f, ok := d.SystemFeatures[system]; ok {
		return f
	}
	return d.Features
}

// CheatFormatsFor returns the cheat formats the core accepts for system.
func (d *Descriptor) CheatFormatsFor(system System) []CheatFormat {
	if formats, ok := d.SystemCheatFormats[system]; ok {
		return formats
	}
	return d.CheatFormats
}

// CheatFormat finds a declared cheat format by id.
func (d *Descriptor) CheatFormat(id string) (CheatFormat, bool) {
	for _, f := range d.CheatFormats {
		if f.ID == id {
			return f, true
		}
	}
	return CheatFormat{}, false
}
