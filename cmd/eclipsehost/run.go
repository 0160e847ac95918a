package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/audio"
	"github.com/EclipseEmu/eclipsekit/host"
	"github.com/EclipseEmu/eclipsekit/romloader"
	"github.com/EclipseEmu/eclipsekit/runner"
	"github.com/EclipseEmu/eclipsekit/savestate"
	"github.com/EclipseEmu/eclipsekit/storage"
)

// pickSystem returns the requested system, or the first system of the core
// whose loader accepts the game.
func pickSystem(info *host.CoreInfo, game string) (ekcore.System, error) {
	if *systemName != "" {
		s, err := ekcore.ParseSystem(*systemName)
		if err != nil {
			return ekcore.SystemUnknown, err
		}
		return s, nil
	}
	for _, s := range info.Systems {
		if _, err := romloader.New(s).Load(game); err == nil {
			return s, nil
		}
	}
	return ekcore.SystemUnknown, fmt.Errorf("%s cannot load %s", info.ID, game)
}

func run(desc *ekcore.Descriptor, gamePath string, cfg *storage.Config, log *slog.Logger) error {
	info, err := host.Inspect(desc)
	if err != nil {
		return err
	}
	system, err := pickSystem(info, gamePath)
	if err != nil {
		return err
	}
	log = log.With("core", info.ID, "system", system.String())

	stagingDir, err := storage.GetStagingDir()
	if err != nil {
		return err
	}
	staged, game, err := romloader.New(system).Stage(gamePath, stagingDir)
	if err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}
	crc := game.CRC32()
	log.Info("game loaded", "name", game.Name, "crc32", crc, "archived", game.Archived)

	saves, err := savestate.ForGame(crc, cfg.Saves.Dir, cfg.Saves.Slot, log)
	if err != nil {
		return err
	}

	sink := &audio.Tee{}
	inst, err := host.Open(info, system, host.Callbacks{
		Audio:  sink,
		OnSave: func(path string) { log.Info("save written", "path", path) },
	}, host.Options{Logger: log, Settings: cfg.CoreValues(info.ID)})
	if err != nil {
		return err
	}
	defer func() {
		if err := inst.Deallocate(); err != nil {
			log.Error("deallocate", "err", err)
		}
	}()

	if err := inst.Start(staged, saves.SRAMPath()); err != nil {
		return err
	}

	format, err := inst.AudioFormat()
	if err != nil {
		return err
	}
	var player *audio.Player
	if !*headless && !cfg.Audio.Muted && cfg.Audio.Backend == "oto" {
		player, err = audio.NewPlayer(format, audio.PlayerOptions{
			Volume: cfg.Audio.Volume,
			Buffer: time.Duration(cfg.Audio.BufferMs) * time.Millisecond,
		})
		if err != nil {
			log.Warn("audio initialization failed", "err", err)
		} else {
			sink.Primary = player
			defer player.Close()
		}
	}
	if *wavPath != "" {
		rec, err := audio.NewWAVRecorder(*wavPath, format)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error("closing WAV recording", "err", err)
			}
		}()
		sink.Taps = append(sink.Taps, rec)
	}

	if err := restoreState(inst, saves, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := runner.Options{
		Logger:     log,
		Frames:     *frames,
		Unpaced:    *headless,
		SkipRender: cfg.Video.SkipRender,
	}
	if player != nil {
		opts.Audio = player
	}
	r, err := runner.New(inst, opts)
	if err != nil {
		return err
	}

	if inst.Features().Has(ekcore.FeatureCheats) {
		if err := watchCheats(ctx, r, crc, log); err != nil {
			log.Warn("cheats disabled", "err", err)
		}
	}
	if inst.MaxPlayers() > 0 {
		if err := inst.PlayerConnected(0); err != nil {
			log.Warn("player not connected", "err", err)
		}
	}

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("stopped", "frames", r.Frames())
	if perr := persist(inst, saves, log); perr != nil {
		return errors.Join(err, perr)
	}
	return errors.Join(err, inst.Stop())
}

func restoreState(inst *host.Instance, saves *savestate.Manager, log *slog.Logger) error {
	switch {
	case *loadSlot >= 0:
		if err := saves.SetSlot(*loadSlot); err != nil {
			return err
		}
		return saves.Load(inst)
	case *resume:
		if err := saves.LoadResume(inst); err != nil {
			if errors.Is(err, savestate.ErrEmptySlot) {
				log.Info("no resume state")
				return nil
			}
			return err
		}
		log.Info("resumed")
	}
	return nil
}

// persist writes the battery save and resume state on exit.
func persist(inst *host.Instance, saves *savestate.Manager, log *slog.Logger) error {
	features := inst.Features()
	var errs []error
	if features.Has(ekcore.FeatureSaving) {
		errs = append(errs, saves.SaveSRAM(inst))
	}
	if features.Has(ekcore.FeatureSaveStates) {
		errs = append(errs, saves.SaveResume(inst))
		if *saveSlot {
			errs = append(errs, saves.Save(inst))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Debug("saves written", "dir", saves.Dir())
	return nil
}

// watchCheats applies the game's cheat list and reapplies it whenever the
// file changes.
func watchCheats(ctx context.Context, r *runner.Runner, crc string, log *slog.Logger) error {
	path, err := storage.GetCheatsPath(crc)
	if err != nil {
		return err
	}
	list, err := storage.LoadCheats(path)
	if err != nil {
		return err
	}
	apply := func(u host.CheatUpdate) {
		err := r.Do(ctx, func(inst *host.Instance) error { return inst.ApplyCheats(u) })
		if err != nil && !errors.Is(err, runner.ErrStopped) && ctx.Err() == nil {
			log.Warn("cheats rejected", "err", err)
		}
	}
	if len(list.Cheats) > 0 {
		log.Info("cheats loaded", "count", len(list.Cheats))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	w, err := storage.WatchCheats(path, log)
	if err != nil {
		return err
	}
	go func() {
		defer w.Close()
		apply(list.Update())
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.Done():
				return
			case u := <-w.Updates():
				apply(u)
			case err := <-w.Errors():
				log.Warn("cheat list", "err", err)
			}
		}
	}()
	return nil
}
