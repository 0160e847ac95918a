// Package conformance exercises a core through the host and checks that the
// calls it receives follow the lifecycle contract.
package conformance

import (
	"fmt"
	"sync"
	"sync/atomic"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/host"
)

// Call is one call observed by a Recorder.
type Call struct {
	Method string
	Op     host.Op
	State  host.State
	// Rejected calls were not forwarded to the core.
	Rejected bool
}

func (c Call) String() string {
	s := fmt.Sprintf("%s (%s in %s)", c.Method, c.Op, c.State)
	if c.Rejected {
		s += " rejected"
	}
	return s
}

// Recorder sits between the host and a core. It tracks the lifecycle state
// the core should be in, records every call and refuses to forward calls
// the lifecycle table does not allow.
type Recorder struct {
	inner ekcore.Core

	mu         sync.Mutex
	state      host.State
	loaded     bool
	calls      []Call
	violations []error
	busy       atomic.Bool
}

func newRecorder(inner ekcore.Core) *Recorder {
	return &Recorder{inner: inner, state: host.StateReady}
}

// Calls returns every call seen so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Violations returns the illegal calls seen so far.
func (r *Recorder) Violations() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.violations...)
}

// State returns the state the recorder believes the core is in.
func (r *Recorder) State() host.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Count returns how many calls to method were forwarded.
func (r *Recorder) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method && !c.Rejected {
			n++
		}
	}
	return n
}

// admit records a call and reports whether it may reach the core. The
// caller must call leave when admit returns true.
func (r *Recorder) admit(method string, op host.Op, extra bool) bool {
	if !r.busy.CompareAndSwap(false, true) {
		r.mu.Lock()
		r.reject(method, op, host.ErrReentrantCall)
		r.mu.Unlock()
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !host.Allowed(r.state, op) || !extra {
		r.reject(method, op, host.ErrInvalidState)
		r.busy.Store(false)
		return false
	}
	r.calls = append(r.calls, Call{Method: method, Op: op, State: r.state})
	return true
}

func (r *Recorder) reject(method string, op host.Op, reason error) {
	r.calls = append(r.calls, Call{Method: method, Op: op, State: r.state, Rejected: true})
	r.violations = append(r.violations, &host.ViolationError{Op: op, State: r.state, Reason: reason})
}

// leave ends a call and applies op's transition when ok.
func (r *Recorder) leave(op host.Op, ok bool) {
	r.mu.Lock()
	if ok {
		if next, allowed := host.Next(r.state, op); allowed {
			r.state = next
		}
	}
	r.mu.Unlock()
	r.busy.Store(false)
}

func (r *Recorder) isLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func (r *Recorder) Deallocate() {
	if r.admit("Deallocate", host.OpDeallocate, true) {
		r.inner.Deallocate()
		r.leave(host.OpDeallocate, true)
	}
}

func (r *Recorder) AudioFormat() ekcore.AudioFormat {
	if !r.admit("AudioFormat", host.OpQuery, true) {
		return ekcore.AudioFormat{}
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.AudioFormat()
}

func (r *Recorder) VideoFormat() ekcore.VideoFormat {
	if !r.admit("VideoFormat", host.OpQuery, true) {
		return ekcore.VideoFormat{}
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.VideoFormat()
}

func (r *Recorder) DesiredFrameRate() float64 {
	if !r.admit("DesiredFrameRate", host.OpQuery, true) {
		return 0
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.DesiredFrameRate()
}

func (r *Recorder) CanSetVideoPointer() bool {
	if !r.admit("CanSetVideoPointer", host.OpQuery, true) {
		return false
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.CanSetVideoPointer()
}

func (r *Recorder) VideoPointer(preferred []byte) []byte {
	if !r.admit("VideoPointer", host.OpQuery, true) {
		return nil
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.VideoPointer(preferred)
}

func (r *Recorder) Start(gamePath, savePath string) bool {
	if !r.admit("Start", host.OpStart, !r.isLoaded()) {
		return false
	}
	ok := r.inner.Start(gamePath, savePath)
	if ok {
		r.mu.Lock()
		r.loaded = true
		r.mu.Unlock()
	}
	r.leave(host.OpStart, ok)
	return ok
}

func (r *Recorder) Stop() {
	if r.admit("Stop", host.OpStop, true) {
		r.inner.Stop()
		r.leave(host.OpStop, true)
	}
}

func (r *Recorder) Restart() {
	if r.admit("Restart", host.OpRestart, true) {
		r.inner.Restart()
		r.leave(host.OpRestart, true)
	}
}

func (r *Recorder) Play() {
	// from Ready, Play is only legal after a Restart
	if r.admit("Play", host.OpPlay, r.isLoaded()) {
		r.inner.Play()
		r.leave(host.OpPlay, true)
	}
}

func (r *Recorder) Pause() {
	if r.admit("Pause", host.OpPause, true) {
		r.inner.Pause()
		r.leave(host.OpPause, true)
	}
}

func (r *Recorder) ExecuteFrame(willRender bool) {
	if r.admit("ExecuteFrame", host.OpExecuteFrame, true) {
		r.inner.ExecuteFrame(willRender)
		r.leave(host.OpExecuteFrame, true)
	}
}

func (r *Recorder) Save(path string) bool {
	if !r.admit("Save", host.OpSave, true) {
		return false
	}
	defer r.leave(host.OpSave, true)
	return r.inner.Save(path)
}

func (r *Recorder) SaveState(path string) bool {
	if !r.admit("SaveState", host.OpSaveState, true) {
		return false
	}
	defer r.leave(host.OpSaveState, true)
	return r.inner.SaveState(path)
}

func (r *Recorder) LoadState(path string) bool {
	if !r.admit("LoadState", host.OpLoadState, true) {
		return false
	}
	defer r.leave(host.OpLoadState, true)
	return r.inner.LoadState(path)
}

func (r *Recorder) MaxPlayers() uint8 {
	if !r.admit("MaxPlayers", host.OpQuery, true) {
		return 0
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.MaxPlayers()
}

func (r *Recorder) PlayerConnected(player uint8) bool {
	if !r.admit("PlayerConnected", host.OpPlayers, true) {
		return false
	}
	defer r.leave(host.OpPlayers, true)
	return r.inner.PlayerConnected(player)
}

func (r *Recorder) PlayerDisconnected(player uint8) {
	if r.admit("PlayerDisconnected", host.OpPlayers, true) {
		r.inner.PlayerDisconnected(player)
		r.leave(host.OpPlayers, true)
	}
}

func (r *Recorder) PlayerSetInputs(player uint8, inputs ekcore.Input) {
	if r.admit("PlayerSetInputs", host.OpPlayers, true) {
		r.inner.PlayerSetInputs(player, inputs)
		r.leave(host.OpPlayers, true)
	}
}

func (r *Recorder) SetCheat(format, code string, enabled bool) bool {
	if !r.admit("SetCheat", host.OpCheats, true) {
		return false
	}
	defer r.leave(host.OpCheats, true)
	return r.inner.SetCheat(format, code, enabled)
}

func (r *Recorder) ClearCheats() {
	if r.admit("ClearCheats", host.OpCheats, true) {
		r.inner.ClearCheats()
		r.leave(host.OpCheats, true)
	}
}

func (r *Recorder) applyCheats(cheats []ekcore.Cheat) bool {
	if !r.admit("ApplyCheats", host.OpCheats, true) {
		return false
	}
	defer r.leave(host.OpCheats, true)
	return r.inner.(ekcore.CheatListApplier).ApplyCheats(cheats)
}

func (r *Recorder) configure(settings ekcore.ResolvedSettings) bool {
	// settings are only consumed before a game is loaded
	if !r.admit("Configure", host.OpQuery, r.State() == host.StateReady && !r.isLoaded()) {
		return false
	}
	defer r.leave(host.OpQuery, true)
	return r.inner.(ekcore.Configurable).Configure(settings)
}

type applierRecorder struct{ *Recorder }

func (a applierRecorder) ApplyCheats(cheats []ekcore.Cheat) bool { return a.applyCheats(cheats) }

type configurableRecorder struct{ *Recorder }

func (c configurableRecorder) Configure(s ekcore.ResolvedSettings) bool { return c.configure(s) }

type fullRecorder struct{ *Recorder }

func (f fullRecorder) ApplyCheats(cheats []ekcore.Cheat) bool   { return f.applyCheats(cheats) }
func (f fullRecorder) Configure(s ekcore.ResolvedSettings) bool { return f.configure(s) }

// wrap returns r as a Core that keeps the optional interfaces of the core
// it records.
func wrap(r *Recorder) ekcore.Core {
	_, applier := r.inner.(ekcore.CheatListApplier)
	_, configurable := r.inner.(ekcore.Configurable)
	switch {
	case applier && configurable:
		return fullRecorder{r}
	case applier:
		return applierRecorder{r}
	case configurable:
		return configurableRecorder{r}
	default:
		return r
	}
}

// Instrument returns a copy of desc whose Setup wraps every core it creates
// in a Recorder. onSetup receives each new recorder.
func Instrument(desc *ekcore.Descriptor, onSetup func(*Recorder)) *ekcore.Descriptor {
	d := *desc
	inner := desc.Setup
	d.Setup = func(system ekcore.System, bridge ekcore.Bridge) (ekcore.Core, error) {
		core, err := inner(system, bridge)
		if err != nil || core == nil {
			return core, err
		}
		r := newRecorder(core)
		if onSetup != nil {
			onSetup(r)
		}
		return wrap(r), nil
	}
	return &d
}
