package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/host"
	"github.com/EclipseEmu/eclipsekit/refcore"
)

func startInstance(t *testing.T) *host.Instance {
	t.Helper()
	info, err := host.Inspect(refcore.Descriptor())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := host.Open(info, ekcore.SystemGB, host.Callbacks{}, host.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { inst.Deallocate() })

	game := filepath.Join(t.TempDir(), "game.gb")
	if err := os.WriteFile(game, []byte("runner game"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := inst.Start(game, ""); err != nil {
		t.Fatal(err)
	}
	return inst
}

func runAsync(t *testing.T, r *Runner) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return cancel, errc
}

func TestNewNeedsStartedInstance(t *testing.T) {
	info, err := host.Inspect(refcore.Descriptor())
	if err != nil {
		t.Fatal(err)
	}
	inst, err := host.Open(info, ekcore.SystemGB, host.Callbacks{}, host.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Deallocate()

	if _, err := New(inst, Options{}); err == nil {
		t.Error("New accepted an instance with no game")
	}
}

func TestRunFrameLimit(t *testing.T) {
	inst := startInstance(t)
	var seen uint64
	r, err := New(inst, Options{
		Frames:  10,
		Unpaced: true,
		OnFrame: func(_ *host.Instance, n uint64) { seen = n },
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Frames() != 10 || seen != 10 || inst.Frames() != 10 {
		t.Errorf("frames = %d, seen %d, instance %d", r.Frames(), seen, inst.Frames())
	}

	pixels, format, frame := r.Framebuffer().Read()
	if frame != 10 || format.Width != refcore.Width || len(pixels) != format.FrameSize() {
		t.Errorf("framebuffer frame %d format %+v len %d", frame, format, len(pixels))
	}

	if err := r.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v", err)
	}
	if err := r.Do(context.Background(), func(*host.Instance) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Run = %v", err)
	}
}

func TestRunSkipRenderLeavesFramebuffer(t *testing.T) {
	inst := startInstance(t)
	r, err := New(inst, Options{Frames: 3, Unpaced: true, SkipRender: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, _, frame := r.Framebuffer().Read(); frame != 0 {
		t.Errorf("framebuffer updated at frame %d", frame)
	}
}

func TestDoRunsBetweenFrames(t *testing.T) {
	inst := startInstance(t)
	r, err := New(inst, Options{Unpaced: true})
	if err != nil {
		t.Fatal(err)
	}
	cancel, errc := runAsync(t, r)
	ctx := context.Background()

	state := filepath.Join(t.TempDir(), "slot.state")
	if err := r.Do(ctx, func(i *host.Instance) error { return i.SaveState(state) }); err != nil {
		t.Fatalf("SaveState through Do: %v", err)
	}

	// pausing the instance holds the loop but work still runs
	if err := r.Do(ctx, (*host.Instance).Pause); err != nil {
		t.Fatal(err)
	}
	var held uint64
	if err := r.Do(ctx, func(i *host.Instance) error {
		held = i.Frames()
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := r.Do(ctx, func(i *host.Instance) error {
		if i.Frames() != held {
			return errors.New("frames ran while paused")
		}
		return i.Play()
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	if err := r.Do(ctx, func(*host.Instance) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Do error = %v", err)
	}

	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want canceled", err)
	}
}

func TestControlPauseHoldsRunner(t *testing.T) {
	inst := startInstance(t)
	r, err := New(inst, Options{Unpaced: true})
	if err != nil {
		t.Fatal(err)
	}
	_, errc := runAsync(t, r)

	r.Control().RequestPause()
	if !r.Control().IsPaused() {
		t.Fatal("expected paused after RequestPause")
	}
	// the driver has let go, so the instance may be used directly
	held := inst.Frames()
	if err := inst.SaveState(filepath.Join(t.TempDir(), "s.state")); err != nil {
		t.Fatalf("direct SaveState while paused: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if inst.Frames() != held {
		t.Error("frames ran while paused")
	}

	r.Control().RequestResume()
	deadline := time.Now().Add(time.Second)
	for inst.Frames() == held && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if inst.Frames() == held {
		t.Error("runner did not resume")
	}

	r.Control().Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runner did not exit after Stop")
	}
}

func TestInputFlushedBetweenFrames(t *testing.T) {
	inst := startInstance(t)
	if err := inst.PlayerConnected(0); err != nil {
		t.Fatal(err)
	}
	r, err := New(inst, Options{Frames: 1, Unpaced: true})
	if err != nil {
		t.Fatal(err)
	}
	r.Input().Set(0, ekcore.InputStart)
	r.Input().Set(1, ekcore.InputStart) // not connected, dropped with a log
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.Input().Len() != 0 {
		t.Errorf("queue not flushed: %d", r.Input().Len())
	}
}

type levelStub int

func (l levelStub) BufferLevel() int { return int(l) }

func TestTimingFromInstance(t *testing.T) {
	inst := startInstance(t)
	r, err := New(inst, Options{Audio: levelStub(0)})
	if err != nil {
		t.Fatal(err)
	}
	frameTime, frameBytes := r.timing()
	if want := time.Second / refcore.FrameRate; frameTime != want {
		t.Errorf("frameTime = %v, want %v", frameTime, want)
	}
	if want := refcore.SampleRate / refcore.FrameRate * 4; frameBytes != want {
		t.Errorf("frameBytes = %d, want %d", frameBytes, want)
	}
}
