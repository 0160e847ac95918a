// eclipsehost runs a registered core headless or with audio, for playing,
// recording and checking cores against the host contract.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	ekcore "github.com/EclipseEmu/eclipsekit/api"
	"github.com/EclipseEmu/eclipsekit/conformance"
	_ "github.com/EclipseEmu/eclipsekit/refcore"
	"github.com/EclipseEmu/eclipsekit/storage"
)

var (
	configPath = flag.String("config", "", "path to config file (.json, .toml or .yaml)")
	coreID     = flag.String("core", "eclipse.refcore", "core id")
	systemName = flag.String("system", "", "system to run (default: first the game loads for)")
	frames     = flag.Uint64("frames", 0, "stop after this many frames (0 runs until interrupted)")
	wavPath    = flag.String("wav", "", "record audio to this WAV file")
	loadSlot   = flag.Int("state", -1, "load the save state in this slot after start")
	saveSlot   = flag.Bool("save-state", false, "save a state to the current slot on exit")
	resume     = flag.Bool("resume", false, "load the resume state after start")
	headless   = flag.Bool("headless", false, "no audio output and no frame pacing")
	listCores  = flag.Bool("list", false, "list registered cores and exit")
	check      = flag.Bool("check", false, "run the conformance script against the core and exit")
	stats      = flag.Bool("stats", false, "serve runtime statistics (statsview builds only)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *listCores {
		cmdList()
		return
	}
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	game := flag.Arg(0)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Log)

	desc, ok := ekcore.Lookup(*coreID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown core: %s (try -list)\n", *coreID)
		os.Exit(1)
	}

	if *stats {
		if !launchStats(os.Stderr) {
			log.Warn("statistics server not built in; rebuild with -tags statsview")
		}
	}

	if *check {
		os.Exit(cmdCheck(desc, game, cfg))
	}

	if err := run(desc, game, cfg, log); err != nil {
		log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `eclipsehost - run an eclipsekit core

Usage: eclipsehost [options] <game>
       eclipsehost -list

Options:`)
	flag.PrintDefaults()
}

func loadConfig() (*storage.Config, error) {
	path := *configPath
	if path == "" {
		if err := storage.EnsureDirectories(); err != nil {
			return nil, err
		}
		p, err := storage.GetConfigPath()
		if err != nil {
			return nil, err
		}
		if err := storage.CreateConfigIfMissing(p); err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := storage.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if problems := storage.ValidateConfig(cfg); len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "Config problems in %s, using defaults for:\n  %s\n", path, strings.Join(problems, "\n  "))
		cfg = storage.CorrectConfig(cfg)
	}
	return cfg, nil
}

func cmdList() {
	for _, d := range ekcore.Descriptors() {
		systems := make([]string, len(d.Systems))
		for i, s := range d.Systems {
			systems[i] = s.String()
		}
		fmt.Printf("%-20s %s %s (%s)\n", d.ID, d.Name, d.Version, strings.Join(systems, ", "))
		for _, s := range d.Systems {
			for _, f := range d.CheatFormatsFor(s) {
				fmt.Printf("  %-4s cheat format %-12s %s\n", s, f.ID, f.Pattern)
			}
		}
	}
}

func cmdCheck(desc *ekcore.Descriptor, game string, cfg *storage.Config) int {
	opts := conformance.Options{Settings: cfg.CoreValues(desc.ID)}
	if *systemName != "" {
		s, err := ekcore.ParseSystem(*systemName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		opts.Systems = []ekcore.System{s}
	}
	reports, err := conformance.Check(desc, game, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	code := 0
	for _, r := range reports {
		fmt.Print(r.String())
		if !r.Passed() {
			code = 1
		}
	}
	return code
}
