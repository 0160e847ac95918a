// Package runner drives a host instance from a single goroutine. Frames are
// paced to the core's frame rate and nudged by the audio buffer level; other
// goroutines reach the instance only through queued work and input.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/EclipseEmu/eclipsekit/host"
)

var (
	ErrAlreadyRunning = errors.New("runner already running")
	ErrStopped        = errors.New("runner stopped")
)

// Audio-driven timing adjusts frame sleep by the sink's buffer level, counted
// in frames of audio.
const (
	adtMinFrames = 3 // speed up below this
	adtMaxFrames = 6 // slow down above this
	idlePoll     = 10 * time.Millisecond
)

// BufferLeveler reports queued audio bytes. *audio.Player implements it.
type BufferLeveler interface {
	BufferLevel() int
}

// Options configures a Runner.
type Options struct {
	Logger *slog.Logger
	// Audio, when set, drives audio-driven timing.
	Audio BufferLeveler
	// AudioFrameBytes is the sink's bytes per frame of audio. Zero derives
	// it from the instance's audio format as interleaved stereo int16.
	AudioFrameBytes int
	// Frames stops the loop after that many frames. Zero runs until stopped.
	Frames uint64
	// Unpaced runs frames back to back.
	Unpaced bool
	// SkipRender runs frames with willRender false.
	SkipRender bool
	// OnFrame is called on the driver goroutine after each frame.
	OnFrame func(inst *host.Instance, frame uint64)
}

type job struct {
	fn  func(*host.Instance) error
	res chan error
}

// Runner is the single driver of an instance.
type Runner struct {
	inst    *host.Instance
	opts    Options
	log     *slog.Logger
	control *EmuControl
	input   *SharedInput
	fb      *SharedFramebuffer
	jobs    chan job
	done    chan struct{}
	running atomic.Bool
	frames  atomic.Uint64
}

// New creates a runner for a started instance.
func New(inst *host.Instance, opts Options) (*Runner, error) {
	video, err := inst.VideoFormat()
	if err != nil {
		return nil, fmt.Errorf("runner needs a started instance: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		inst:    inst,
		opts:    opts,
		log:     log.With("component", "runner"),
		control: NewEmuControl(),
		input:   &SharedInput{},
		fb:      NewSharedFramebuffer(video),
		jobs:    make(chan job, 16),
		done:    make(chan struct{}),
	}, nil
}

// Control returns the pause and stop control.
func (r *Runner) Control() *EmuControl { return r.control }

// Input returns the shared input queue.
func (r *Runner) Input() *SharedInput { return r.input }

// Framebuffer returns the copy of the latest rendered frame.
func (r *Runner) Framebuffer() *SharedFramebuffer { return r.fb }

// Frames returns the number of frames run by this runner.
func (r *Runner) Frames() uint64 { return r.frames.Load() }

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Do runs fn on the driver goroutine between frames and returns its error.
// fn has exclusive use of the instance and must not call Do.
func (r *Runner) Do(ctx context.Context, fn func(*host.Instance) error) error {
	j := job{fn: fn, res: make(chan error, 1)}
	select {
	case r.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
	select {
	case err := <-j.res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrStopped
	}
}

// Run drives the instance until ctx is done, Stop is called on the control,
// the frame limit is reached or a frame fails. It may be called once.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(r.done)

	frameTime, adtFrameBytes := r.timing()
	r.log.Debug("runner started", "frameTime", frameTime, "unpaced", r.opts.Unpaced)
	lastFrameTime := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		run, wake := r.control.CheckPause()
		if !run {
			return nil
		}
		r.runJobs()
		if wake != nil {
			r.hold(ctx, wake)
			lastFrameTime = time.Now()
			continue
		}

		r.flushInput()
		if r.inst.State() != host.StateRunning {
			r.hold(ctx, nil)
			lastFrameTime = time.Now()
			continue
		}

		if err := r.inst.ExecuteFrame(!r.opts.SkipRender); err != nil {
			return fmt.Errorf("execute frame: %w", err)
		}
		n := r.frames.Add(1)
		if !r.opts.SkipRender {
			if f, ok := r.inst.Frame(); ok {
				if err := r.fb.Update(f, n); err != nil {
					r.log.Warn("frame copy failed", "err", err)
				}
			}
		}
		if r.opts.OnFrame != nil {
			r.opts.OnFrame(r.inst, n)
		}
		if r.opts.Frames > 0 && n >= r.opts.Frames {
			return nil
		}

		if r.opts.Unpaced {
			continue
		}
		sleepTime := frameTime - time.Since(lastFrameTime)
		if r.opts.Audio != nil && adtFrameBytes > 0 {
			level := r.opts.Audio.BufferLevel()
			if level < adtMinFrames*adtFrameBytes {
				sleepTime = time.Duration(float64(sleepTime) * 0.9)
			} else if level > adtMaxFrames*adtFrameBytes {
				sleepTime = time.Duration(float64(sleepTime) * 1.1)
			}
		}
		if sleepTime > time.Millisecond {
			select {
			case <-time.After(sleepTime):
			case <-ctx.Done():
			case <-r.control.Done():
			}
		}
		lastFrameTime = time.Now()
	}
}

func (r *Runner) timing() (time.Duration, int) {
	fps, err := r.inst.DesiredFrameRate()
	if err != nil || fps <= 0 {
		fps = 60
	}
	frameTime := time.Duration(float64(time.Second) / fps)

	frameBytes := r.opts.AudioFrameBytes
	if frameBytes == 0 {
		if af, err := r.inst.AudioFormat(); err == nil {
			frameBytes = int(af.SampleRate/fps) * 4
		}
	}
	return frameTime, frameBytes
}

// hold waits while the driver must not run frames. Queued work still runs.
func (r *Runner) hold(ctx context.Context, wake <-chan struct{}) {
	var poll <-chan time.Time
	if wake == nil {
		t := time.NewTimer(idlePoll)
		defer t.Stop()
		poll = t.C
	}
	select {
	case j := <-r.jobs:
		r.exec(j)
	case <-wake:
	case <-poll:
	case <-ctx.Done():
	case <-r.control.Done():
	}
}

func (r *Runner) runJobs() {
	for {
		select {
		case j := <-r.jobs:
			r.exec(j)
		default:
			return
		}
	}
}

func (r *Runner) exec(j job) {
	j.res <- j.fn(r.inst)
}

func (r *Runner) flushInput() {
	changes, dropped := r.input.Take()
	if dropped > 0 {
		r.log.Warn("input queue overflowed", "dropped", dropped)
	}
	for _, c := range changes {
		if err := r.inst.PlayerSetInputs(c.Player, c.Input); err != nil {
			r.log.Debug("input rejected", "player", c.Player, "err", err)
		}
	}
}
