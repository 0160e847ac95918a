// Package host drives cores through the ekcore contract and enforces it.
//
// An Instance owns one running core. Every operation checks the lifecycle
// state machine, player bookkeeping and cheat formats before anything
// reaches the core, so caller mistakes come back as *ViolationError values
// instead of undefined core behaviour. An Instance admits one call at a
// time; a call that overlaps another, including one made from a bridge hook
// while the core is executing a frame, is rejected with ErrReentrantCall.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/romloader"
)

// Options tune an Instance.
type Options struct {
	// Logger receives lifecycle and violation logs. Defaults to slog.Default.
	Logger *slog.Logger
	// Settings are the host's values for the core's settings schema.
	Settings Values
	// Checksum verifies file settings. Defaults to romloader.FileMD5.
	Checksum Checksummer
}

// Instance is one running core.
type Instance struct {
	mu    sync.Mutex
	state atomic.Uint32

	// view guards what the read-only accessors return, so a hook running
	// under mu can still read them.
	view sync.Mutex

	info   *CoreInfo
	system ekcore.System
	core   ekcore.Core
	bridge *bridge
	log    *slog.Logger

	settings Values
	checksum Checksummer
	resolved *Resolved

	loaded  bool
	audio   ekcore.AudioFormat
	video   *videoStream
	players *players
	cheats  *CheatSet
	frames  atomic.Uint64
}

// Open initializes a core for system. On failure no instance exists and
// nothing else may be called.
func Open(info *CoreInfo, system ekcore.System, cb Callbacks, opts Options) (*Instance, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("core", info.ID, "system", system.String())

	if !system.Runnable() || !info.Supports(system) {
		log.Warn("refusing to initialize core", "reason", ErrUnknownSystem)
		return nil, violation(OpInitialize, StateUnconfigured, ErrUnknownSystem)
	}

	b, ref := newBridge(cb, log)
	core, err := info.setup(system, ref)
	if err == nil && core == nil {
		err = errors.New("setup returned no instance")
	}
	if err != nil {
		b.close()
		log.Error("core setup failed", "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrSetupFailed, info.ID, err)
	}

	checksum := opts.Checksum
	if checksum == nil {
		checksum = romloader.FileMD5
	}

	inst := &Instance{
		info:     info,
		system:   system,
		core:     core,
		bridge:   b,
		log:      log,
		settings: opts.Settings,
		checksum: checksum,
		players:  newPlayers(core.MaxPlayers(), info.PlayerConnection),
		cheats:   NewCheatSet(),
	}
	inst.state.Store(uint32(StateReady))

	log.Info("core instance ready", "maxPlayers", inst.players.max)
	return inst, nil
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// System returns the system the instance was initialized for.
func (i *Instance) System() ekcore.System {
	return i.system
}

// Info returns the descriptor copy the instance was opened from.
func (i *Instance) Info() *CoreInfo {
	return i.info
}

// Features returns what the core offers for the active system.
func (i *Instance) Features() ekcore.Features {
	return i.info.FeaturesFor(i.system)
}

// CheatFormats returns the cheat formats accepted for the active system.
func (i *Instance) CheatFormats() []ekcore.CheatFormat {
	return i.info.CheatFormatsFor(i.system)
}

// MaxPlayers returns the number of player slots reported at open.
func (i *Instance) MaxPlayers() uint8 {
	return i.players.max
}

// enter admits one call for op. On success the caller holds i.mu and must
// release it.
func (i *Instance) enter(op Op) (State, error) {
	if !i.mu.TryLock() {
		s := i.State()
		i.log.Warn("rejected overlapping call", "op", op.String(), "state", s.String())
		return s, violation(op, s, ErrReentrantCall)
	}
	s := i.State()
	if !Allowed(s, op) {
		i.mu.Unlock()
		return s, i.reject(op, s, ErrInvalidState)
	}
	return s, nil
}

func (i *Instance) reject(op Op, s State, reason error) error {
	i.log.Warn("contract violation", "op", op.String(), "state", s.String(), "reason", reason)
	return violation(op, s, reason)
}

func (i *Instance) requireFeature(op Op, s State, f ekcore.Features) error {
	if !i.info.FeaturesFor(i.system).Has(f) {
		return i.reject(op, s, ErrUnsupportedFeature)
	}
	return nil
}

func (i *Instance) move(s State, op Op) {
	next, _ := Next(s, op)
	i.state.Store(uint32(next))
}

// Start resolves settings and loads the game. Required settings without a
// usable value fail before the core is asked. On any failure the instance
// stays Ready with no game loaded.
func (i *Instance) Start(gamePath, savePath string) error {
	s, err := i.enter(OpStart)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if i.loaded {
		return i.reject(OpStart, s, ErrInvalidState)
	}

	resolved, err := ResolveSettings(i.info, i.system, i.settings, i.checksum)
	if err != nil {
		i.log.Warn("start blocked by settings", "err", err)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if len(resolved.Skipped) > 0 {
		i.log.Warn("ignoring unusable optional settings", "settings", resolved.Skipped)
	}

	if c, ok := i.core.(ekcore.Configurable); ok {
		if !c.Configure(resolved.ResolvedSettings) {
			i.log.Warn("core rejected settings")
			return fmt.Errorf("%w: core rejected settings", ErrStartFailed)
		}
	}

	if !i.core.Start(gamePath, savePath) {
		i.log.Warn("core failed to start", "game", gamePath)
		return fmt.Errorf("%w: %s", ErrStartFailed, gamePath)
	}

	audio := i.core.AudioFormat()
	video := i.core.VideoFormat()
	if err := errors.Join(audio.Validate(), video.Validate()); err != nil {
		i.core.Stop()
		i.log.Error("core reported invalid stream formats", "err", err)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	i.view.Lock()
	i.resolved = resolved
	i.view.Unlock()
	i.audio = audio
	i.video = newVideoStream(i.core, video)
	i.loaded = true
	i.move(s, OpStart)

	i.log.Info("core started",
		"game", gamePath,
		"video", fmt.Sprintf("%dx%d %s", video.Width, video.Height, video.PixelFormat),
		"audio", fmt.Sprintf("%s %.0fHz x%d", audio.SampleFormat, audio.SampleRate, audio.ChannelCount),
		"hostVideoBuffer", i.video.hostOwned())
	return nil
}

// Stop releases engine resources. Frames obtained before Stop become stale.
func (i *Instance) Stop() error {
	s, err := i.enter(OpStop)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	i.core.Stop()
	i.video.invalidate(true)
	i.move(s, OpStop)
	i.log.Info("core stopped", "frames", i.frames.Load())
	return nil
}

// Restart soft-resets the game and returns the instance to Ready. Play
// resumes it without another Start.
func (i *Instance) Restart() error {
	s, err := i.enter(OpRestart)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if err := i.requireFeature(OpRestart, s, ekcore.FeatureSoftReset); err != nil {
		return err
	}
	i.core.Restart()
	i.video.advance()
	i.move(s, OpRestart)
	return nil
}

// Play resumes a paused or restarted game. Play while running is a no-op.
func (i *Instance) Play() error {
	s, err := i.enter(OpPlay)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	switch s {
	case StateRunning:
		return nil
	case StateReady:
		if !i.loaded {
			return i.reject(OpPlay, s, ErrInvalidState)
		}
	}
	i.core.Play()
	i.move(s, OpPlay)
	return nil
}

// Pause suspends the game. Pause while paused is a no-op.
func (i *Instance) Pause() error {
	s, err := i.enter(OpPause)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if s == StatePaused {
		return nil
	}
	i.core.Pause()
	i.move(s, OpPause)
	return nil
}

// ExecuteFrame runs one frame. It is only valid while Running. The previous
// frame becomes stale when it is called.
func (i *Instance) ExecuteFrame(willRender bool) error {
	_, err := i.enter(OpExecuteFrame)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	i.video.advance()
	i.core.ExecuteFrame(willRender)
	if willRender {
		i.video.capture(i.core)
	}
	i.frames.Add(1)
	return nil
}

// Frames returns the number of frames executed. It may be called from a
// bridge hook.
func (i *Instance) Frames() uint64 {
	return i.frames.Load()
}

// Frame returns the most recently rendered frame, if it is still current.
func (i *Instance) Frame() (Frame, bool) {
	if _, err := i.enter(OpQuery); err != nil {
		return Frame{}, false
	}
	defer i.mu.Unlock()

	if i.video == nil {
		return Frame{}, false
	}
	return i.video.frame()
}

// AudioFormat returns the audio format read at start.
func (i *Instance) AudioFormat() (ekcore.AudioFormat, error) {
	s, err := i.enter(OpQuery)
	if err != nil {
		return ekcore.AudioFormat{}, err
	}
	defer i.mu.Unlock()

	if !i.loaded {
		return ekcore.AudioFormat{}, i.reject(OpQuery, s, ErrInvalidState)
	}
	return i.audio, nil
}

// VideoFormat returns the video format read at start.
func (i *Instance) VideoFormat() (ekcore.VideoFormat, error) {
	s, err := i.enter(OpQuery)
	if err != nil {
		return ekcore.VideoFormat{}, err
	}
	defer i.mu.Unlock()

	if !i.loaded {
		return ekcore.VideoFormat{}, i.reject(OpQuery, s, ErrInvalidState)
	}
	return i.video.format, nil
}

// DesiredFrameRate returns the core's preferred frame rate.
func (i *Instance) DesiredFrameRate() (float64, error) {
	s, err := i.enter(OpQuery)
	if err != nil {
		return 0, err
	}
	defer i.mu.Unlock()

	if !i.loaded {
		return 0, i.reject(OpQuery, s, ErrInvalidState)
	}
	return i.core.DesiredFrameRate(), nil
}

// Settings returns the settings resolved at start, or nil before start.
func (i *Instance) Settings() *Resolved {
	i.view.Lock()
	defer i.view.Unlock()
	return i.resolved
}

// Save asks the core to write its save data to path.
func (i *Instance) Save(path string) error {
	return i.persist(OpSave, ekcore.FeatureSaving, path, i.coreSave, ErrSaveFailed)
}

// SaveState asks the core to write its full state to path.
func (i *Instance) SaveState(path string) error {
	return i.persist(OpSaveState, ekcore.FeatureSaveStates, path, i.coreSaveState, ErrSaveStateFailed)
}

// LoadState asks the core to restore the state at path.
func (i *Instance) LoadState(path string) error {
	return i.persist(OpLoadState, ekcore.FeatureSaveStates, path, i.coreLoadState, ErrLoadStateFailed)
}

func (i *Instance) coreSave(path string) bool      { return i.core.Save(path) }
func (i *Instance) coreSaveState(path string) bool { return i.core.SaveState(path) }
func (i *Instance) coreLoadState(path string) bool { return i.core.LoadState(path) }

func (i *Instance) persist(op Op, feature ekcore.Features, path string, call func(string) bool, failure error) error {
	s, err := i.enter(op)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if err := i.requireFeature(op, s, feature); err != nil {
		return err
	}
	if !call(path) {
		i.log.Warn("persistence failed", "op", op.String(), "path", path)
		return fmt.Errorf("%w: %s", failure, path)
	}
	i.log.Debug("persistence complete", "op", op.String(), "path", path)
	return nil
}

// PlayerConnected connects a player slot. With linear connection behaviour
// only the next free index is accepted.
func (i *Instance) PlayerConnected(player uint8) error {
	s, err := i.enter(OpPlayers)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if !i.players.inRange(player) {
		return i.reject(OpPlayers, s, ErrPlayerRange)
	}
	if i.players.isConnected(player) {
		return nil
	}
	if i.players.behavior == ekcore.ConnectLinear && player != i.players.nextLinear() {
		return i.reject(OpPlayers, s, ErrPlayerRange)
	}
	if !i.core.PlayerConnected(player) {
		return fmt.Errorf("%w: player %d", ErrPlayerRejected, player)
	}
	i.view.Lock()
	i.players.connect(player)
	i.view.Unlock()
	return nil
}

// PlayerDisconnected disconnects a player. Disconnecting a player that is
// not connected is a no-op.
func (i *Instance) PlayerDisconnected(player uint8) error {
	s, err := i.enter(OpPlayers)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if !i.players.inRange(player) {
		return i.reject(OpPlayers, s, ErrPlayerRange)
	}
	if !i.players.isConnected(player) {
		return nil
	}

	i.view.Lock()
	notify, moved := i.players.disconnect(player)
	i.view.Unlock()
	i.core.PlayerDisconnected(notify)
	for _, p := range moved {
		i.core.PlayerSetInputs(p, i.players.inputs[p])
	}
	return nil
}

// PlayerSetInputs forwards an input bitmask for a connected player.
func (i *Instance) PlayerSetInputs(player uint8, inputs ekcore.Input) error {
	s, err := i.enter(OpPlayers)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if !i.players.inRange(player) {
		return i.reject(OpPlayers, s, ErrPlayerRange)
	}
	if !i.players.isConnected(player) {
		return i.reject(OpPlayers, s, ErrPlayerNotConnected)
	}
	inputs &= ekcore.InputMask
	i.players.inputs[player] = inputs
	i.core.PlayerSetInputs(player, inputs)
	return nil
}

// ConnectedPlayers lists connected player indices in order.
func (i *Instance) ConnectedPlayers() []uint8 {
	i.view.Lock()
	defer i.view.Unlock()

	var out []uint8
	for p, c := range i.players.connected {
		if c {
			out = append(out, uint8(p))
		}
	}
	return out
}

// ApplyCheats validates every cheat in u and then applies the update as a
// whole. A validation failure or a core rejection leaves the previous set
// active.
func (i *Instance) ApplyCheats(u CheatUpdate) error {
	s, err := i.enter(OpCheats)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if err := i.requireFeature(OpCheats, s, ekcore.FeatureCheats); err != nil {
		return err
	}
	if err := validateCheats(i.info, i.system, s, u.Cheats); err != nil {
		i.log.Warn("rejected cheat update", "err", err)
		return err
	}

	next := i.cheats.with(u)
	if !pushCheats(i.core, i.cheats, next, u.Mode, u.Cheats) {
		return ErrCheatRejected
	}
	i.setCheats(next)
	return nil
}

// RemoveCheat stops tracking a cheat entirely. Removing an unknown cheat is
// a no-op. Use ApplyCheats with Enabled=false to only disable it.
func (i *Instance) RemoveCheat(format, code string) error {
	s, err := i.enter(OpCheats)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	if err := i.requireFeature(OpCheats, s, ekcore.FeatureCheats); err != nil {
		return err
	}

	next := i.cheats.clone()
	if !next.remove(format, code) {
		return nil
	}
	if !pushCheats(i.core, i.cheats, next, CheatReplace, nil) {
		return ErrCheatRejected
	}
	i.setCheats(next)
	return nil
}

// Cheats returns the tracked cheats, enabled or not.
func (i *Instance) Cheats() []ekcore.Cheat {
	i.view.Lock()
	defer i.view.Unlock()
	return i.cheats.List()
}

func (i *Instance) setCheats(set *CheatSet) {
	i.view.Lock()
	i.cheats = set
	i.view.Unlock()
}

// Deallocate tears the core down. It may be called once from any state.
// Frames and buffers obtained from the instance are invalid afterwards and
// the bridge stops delivering hook calls. A core that still holds bridge
// references is reported with ErrBridgeLeaked once teardown is complete.
func (i *Instance) Deallocate() error {
	s, err := i.enter(OpDeallocate)
	if err != nil {
		return err
	}
	defer i.mu.Unlock()

	i.core.Deallocate()
	if i.video != nil {
		i.video.invalidate(true)
	}
	leaked := i.bridge.close()
	i.core = nil
	i.move(s, OpDeallocate)

	if leaked > 0 {
		i.log.Error("core leaked bridge references", "refs", leaked)
		return violation(OpDeallocate, s, fmt.Errorf("%w (%d outstanding)", ErrBridgeLeaked, leaked))
	}
	i.log.Info("core deallocated", "frames", i.frames.Load())
	return nil
}
