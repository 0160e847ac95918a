package conformance

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/host"
)

// Options tune a conformance run.
type Options struct {
	Logger *slog.Logger
	// Settings are passed to every instance.
	Settings host.Values
	// Frames is the number of frames run between checkpoints. Default 8.
	Frames int
	// WorkDir holds saves and states. Default is a fresh temporary
	// directory that is removed afterwards.
	WorkDir string
	// Systems limits the run. Default is every system the core supports.
	Systems []ekcore.System
}

// Step is the outcome of one scripted check.
type Step struct {
	Name    string
	Err     error
	Skipped bool
}

// Report is the result of running the script against one system.
type Report struct {
	Core       string
	System     ekcore.System
	Steps      []Step
	Violations []error
	Calls      []Call
}

// Passed reports whether every step passed and the core saw no illegal call.
func (r *Report) Passed() bool {
	return len(r.Failures()) == 0 && len(r.Violations) == 0
}

// Failures returns the failed steps.
func (r *Report) Failures() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s\n", r.Core, r.System)
	for _, s := range r.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(&b, "  SKIP %s\n", s.Name)
		case s.Err != nil:
			fmt.Fprintf(&b, "  FAIL %s: %v\n", s.Name, s.Err)
		default:
			fmt.Fprintf(&b, "  ok   %s\n", s.Name)
		}
	}
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "  VIOLATION %v\n", v)
	}
	return b.String()
}

// capture collects audio for comparison.
type capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *capture) Accept(p []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
	return len(p)
}

func (c *capture) take() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := bytes.Clone(c.buf.Bytes())
	c.buf.Reset()
	return out
}

var errCheck = errors.New("conformance check failed")

func failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errCheck, fmt.Sprintf(format, args...))
}

// Check runs the scripted lifecycle against every selected system of desc
// with gamePath loaded. An error is returned only when the run itself could
// not be set up; core problems are reported in the Reports.
func Check(desc *ekcore.Descriptor, gamePath string, opts Options) ([]*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Frames <= 0 {
		opts.Frames = 8
	}
	if opts.WorkDir == "" {
		dir, err := os.MkdirTemp("", "eclipsekit-conformance-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)
		opts.WorkDir = dir
	}

	var rec *Recorder
	info, err := host.Inspect(Instrument(desc, func(r *Recorder) { rec = r }))
	if err != nil {
		return nil, err
	}
	systems := opts.Systems
	if len(systems) == 0 {
		systems = info.Systems
	}

	reports := make([]*Report, 0, len(systems))
	for _, system := range systems {
		rec = nil
		s := &script{
			info:   info,
			system: system,
			game:   gamePath,
			dir:    filepath.Join(opts.WorkDir, system.String()),
			opts:   opts,
			log:    log.With("core", info.ID, "system", system.String()),
			audio:  &capture{},
			report: &Report{Core: info.ID, System: system},
		}
		s.run(func() *Recorder { return rec })
		reports = append(reports, s.report)
	}
	return reports, nil
}

type script struct {
	info   *host.CoreInfo
	system ekcore.System
	game   string
	dir    string
	opts   Options
	log    *slog.Logger
	audio  *capture
	saved  []string
	report *Report
	inst   *host.Instance
}

func (s *script) step(name string, fn func() error) bool {
	err := fn()
	s.report.Steps = append(s.report.Steps, Step{Name: name, Err: err})
	if err != nil {
		s.log.Warn("conformance step failed", "step", name, "err", err)
	}
	return err == nil
}

func (s *script) skip(name string) {
	s.report.Steps = append(s.report.Steps, Step{Name: name, Skipped: true})
}

func (s *script) has(f ekcore.Features) bool {
	return s.info.FeaturesFor(s.system).Has(f)
}

func (s *script) run(recorder func() *Recorder) {
	defer func() {
		if r := recorder(); r != nil {
			s.report.Violations = r.Violations()
			s.report.Calls = r.Calls()
		}
	}()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.step("workdir", func() error { return err })
		return
	}

	ok := s.step("open", func() error {
		inst, err := host.Open(s.info, s.system, host.Callbacks{
			Audio:  s.audio,
			OnSave: func(path string) { s.saved = append(s.saved, path) },
		}, host.Options{Logger: s.log, Settings: s.opts.Settings})
		s.inst = inst
		return err
	})
	if !ok {
		return
	}
	defer s.step("deallocate", s.inst.Deallocate)

	if !s.step("start", func() error {
		return s.inst.Start(s.game, filepath.Join(s.dir, "game.sav"))
	}) {
		return
	}

	s.step("frames", s.checkFrames)
	s.step("pause", func() error { return s.checkPause(recorder()) })
	s.checkStates()
	s.checkSave()
	s.checkCheats()
	s.step("players", s.checkPlayers)
	s.checkRestart()
	s.step("stop", s.checkStop)
}

func (s *script) runFrames(n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for range n {
		if err := s.inst.ExecuteFrame(true); err != nil {
			return nil, err
		}
		f, ok := s.inst.Frame()
		if !ok {
			return nil, failf("no frame after ExecuteFrame")
		}
		px, err := f.Pixels()
		if err != nil {
			return nil, err
		}
		if len(px) < f.Format.FrameSize() {
			return nil, failf("frame is %d bytes, format needs %d", len(px), f.Format.FrameSize())
		}
		out = append(out, bytes.Clone(px))
	}
	return out, nil
}

func (s *script) checkFrames() error {
	before := s.inst.Frames()
	if _, err := s.runFrames(s.opts.Frames); err != nil {
		return err
	}
	if got := s.inst.Frames() - before; got != uint64(s.opts.Frames) {
		return failf("ran %d frames, want %d", got, s.opts.Frames)
	}
	return nil
}

func (s *script) checkPause(r *Recorder) error {
	if err := s.inst.Pause(); err != nil {
		return err
	}
	if err := s.inst.Pause(); err != nil {
		return fmt.Errorf("second pause: %w", err)
	}
	if r != nil && r.Count("Pause") != 1 {
		return failf("core saw %d pause calls, want 1", r.Count("Pause"))
	}
	frames := 0
	if r != nil {
		frames = r.Count("ExecuteFrame")
	}
	if err := s.inst.ExecuteFrame(true); !errors.Is(err, host.ErrInvalidState) {
		return failf("ExecuteFrame while paused returned %v", err)
	}
	if r != nil && r.Count("ExecuteFrame") != frames {
		return failf("ExecuteFrame while paused reached the core")
	}
	return s.inst.Play()
}

func (s *script) checkStates() {
	const name = "save state round trip"
	if !s.has(ekcore.FeatureSaveStates) {
		s.skip(name)
		return
	}
	s.step(name, func() error {
		path := filepath.Join(s.dir, "slot.state")
		if err := s.inst.SaveState(path); err != nil {
			return err
		}
		s.audio.take()
		want, err := s.runFrames(s.opts.Frames)
		if err != nil {
			return err
		}
		wantAudio := s.audio.take()

		if err := s.inst.LoadState(path); err != nil {
			return err
		}
		got, err := s.runFrames(s.opts.Frames)
		if err != nil {
			return err
		}
		gotAudio := s.audio.take()

		for i := range want {
			if !bytes.Equal(want[i], got[i]) {
				return failf("frame %d differs after LoadState", i)
			}
		}
		if !bytes.Equal(wantAudio, gotAudio) {
			return failf("audio differs after LoadState (%d vs %d bytes)", len(wantAudio), len(gotAudio))
		}
		return nil
	})
}

func (s *script) checkSave() {
	const name = "save"
	if !s.has(ekcore.FeatureSaving) {
		s.skip(name)
		return
	}
	s.step(name, func() error {
		path := filepath.Join(s.dir, "explicit.sav")
		if err := s.inst.Save(path); err != nil {
			return err
		}
		for _, p := range s.saved {
			if p == path {
				return nil
			}
		}
		if _, err := os.Stat(path); err != nil {
			return failf("save reported success but %s is missing", path)
		}
		return nil
	})
}

// sampleCode builds a code that fits a format's pattern.
func sampleCode(f ekcore.CheatFormat) string {
	if f.Pattern == "" {
		return "00"
	}
	return strings.Map(func(r rune) rune {
		if r == 'x' || r == 'X' {
			return '0'
		}
		return r
	}, f.Pattern)
}

func (s *script) checkCheats() {
	const name = "cheats"
	formats := s.info.CheatFormatsFor(s.system)
	if !s.has(ekcore.FeatureCheats) || len(formats) == 0 {
		s.skip(name)
		return
	}
	s.step(name, func() error {
		var cheats []ekcore.Cheat
		for _, f := range formats {
			cheats = append(cheats, ekcore.Cheat{Format: f.ID, Code: sampleCode(f), Enabled: true})
		}
		if err := s.inst.ApplyCheats(host.CheatUpdate{Mode: host.CheatReplace, Cheats: cheats}); err != nil {
			return err
		}
		before := s.inst.Cheats()

		bad := host.CheatUpdate{Cheats: []ekcore.Cheat{{Format: "\x00unknown", Code: "00", Enabled: true}}}
		if err := s.inst.ApplyCheats(bad); !errors.Is(err, host.ErrUnknownCheatFormat) {
			return failf("unknown format returned %v", err)
		}
		if after := s.inst.Cheats(); len(after) != len(before) {
			return failf("rejected update changed the cheat set")
		}
		if _, err := s.runFrames(1); err != nil {
			return err
		}
		return s.inst.ApplyCheats(host.CheatUpdate{Mode: host.CheatReplace})
	})
}

func (s *script) checkPlayers() error {
	if s.inst.MaxPlayers() == 0 {
		return nil
	}
	if err := s.inst.PlayerConnected(0); err != nil {
		return err
	}
	if err := s.inst.PlayerSetInputs(0, ekcore.InputStart|ekcore.InputDpadRight); err != nil {
		return err
	}
	if _, err := s.runFrames(1); err != nil {
		return err
	}
	if err := s.inst.PlayerDisconnected(0); err != nil {
		return err
	}
	if err := s.inst.PlayerDisconnected(0); err != nil {
		return fmt.Errorf("second disconnect: %w", err)
	}
	if err := s.inst.PlayerSetInputs(0, ekcore.InputStart); !errors.Is(err, host.ErrPlayerNotConnected) {
		return failf("input for disconnected player returned %v", err)
	}
	return nil
}

func (s *script) checkRestart() {
	const name = "restart"
	if !s.has(ekcore.FeatureSoftReset) {
		s.skip(name)
		return
	}
	s.step(name, func() error {
		if err := s.inst.Restart(); err != nil {
			return err
		}
		if err := s.inst.Play(); err != nil {
			return err
		}
		_, err := s.runFrames(1)
		return err
	})
}

func (s *script) checkStop() error {
	if err := s.inst.ExecuteFrame(true); err != nil {
		return err
	}
	f, ok := s.inst.Frame()
	if !ok {
		return failf("no frame before stop")
	}
	if err := s.inst.Stop(); err != nil {
		return err
	}
	if _, err := f.Pixels(); !errors.Is(err, host.ErrStaleFrame) {
		return failf("frame from before stop is still readable")
	}
	if err := s.inst.ExecuteFrame(true); !errors.Is(err, host.ErrInvalidState) {
		return failf("ExecuteFrame after stop returned %v", err)
	}
	return nil
}
