package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"whispr/audio"
	"whispr/beep"
	"whispr/clipboard"
	"whispr/config"
	"whispr/doctor"
	"whispr/hotkey"
	"whispr/log"
	"whispr/model"
	"whispr/notify"
	"whispr/paste"
	"whispr/pipeline"
	"whispr/shutdown"
	"whispr/transcriber"
)

var version = "dev"

type flags struct {
	setup     bool
	device    string
	model     string
	lang      string
	translate bool
	accel     bool
	config    string
	logPath   string
	autoPaste bool
	tui       bool
	doctor    bool
	models    bool
	version   bool
	test      string

	set map[string]bool
}

func parseFlags() *flags {
	f := &flags{}
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device interactively")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.StringVar(&f.model, "model", "", "Model id (tiny, base, small, medium, large, turbo)")
	flag.StringVar(&f.lang, "lang", "", "Language code for transcription (e.g. en, de). auto = detect")
	flag.BoolVar(&f.translate, "translate", false, "Translate speech to English")
	flag.BoolVar(&f.accel, "accel", false, "Use hardware acceleration when available")
	flag.StringVar(&f.config, "config", "", "Settings file (default: $XDG_CONFIG_HOME/whispr/settings.yaml)")
	flag.StringVar(&f.logPath, "logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	flag.BoolVar(&f.autoPaste, "autopaste", false, "Paste into the focused window after transcription")
	flag.BoolVar(&f.tui, "tui", true, "Run with terminal UI")
	flag.BoolVar(&f.doctor, "doctor", false, "Run interactive diagnostics and exit")
	flag.BoolVar(&f.models, "models", false, "List known models and which are downloaded")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.StringVar(&f.test, "test", "", "Headless test mode: replay WAV file, commands on stdin")
	flag.Parse()

	f.set = map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f
}

// overlay applies explicitly set flags on top of file settings. It runs
// again after every settings reload.
func (f *flags) overlay(s *config.Settings) {
	if f.set["model"] {
		s.Model = f.model
	}
	if f.set["lang"] {
		s.Language = f.lang
	}
	if f.set["translate"] {
		s.Translate = f.translate
	}
	if f.set["accel"] {
		s.Accel = f.accel
	}
	if f.set["autopaste"] {
		s.AutoPaste = f.autoPaste
	}
	if f.device != "" {
		s.Device = f.device
	}
}

func initCrashLog(dir string) {
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	log.Close()
	os.Exit(1)
}

func run() {
	f := parseFlags()

	if f.version {
		fmt.Printf("whispr %s\n", version)
		return
	}

	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	} else {
		initCrashLog(logPath)
	}

	loader := config.Loader{Path: f.config}
	settings, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	f.overlay(&settings)
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	store := config.NewStore(settings)

	if f.models {
		listModels(modelsDir(settings), settings.Model)
		return
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if f.test != "" {
		code := runTestMode(f.test, store)
		log.Close()
		os.Exit(code)
	}

	combo, err := hotkey.ParseCombo(settings.Hotkey)
	if err != nil {
		fatalf("hotkey %q: %v", settings.Hotkey, err)
	}

	actx, err := audio.NewContext()
	if err != nil {
		fatalf("initializing audio: %v", err)
	}
	defer actx.Close()

	if f.setup && f.device == "" {
		dev, err := audio.SelectDevice(actx)
		switch {
		case err != nil:
			fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		case dev != nil:
			f.device = dev.Name
			if err := store.Modify(func(s *config.Settings) { s.Device = dev.Name }); err != nil {
				log.Warnf("saving device: %v", err)
			}
			persistDevice(loader, dev.Name)
		}
	}

	engine := transcriber.Native()
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if f.doctor {
		code := runDoctor(ctx, store, actx, engine, combo)
		actx.Close()
		log.Close()
		os.Exit(code)
	}

	beep.SetEnabled(settings.Beep)
	go beep.Init()
	if settings.AutoPaste {
		if err := paste.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	sinks := []pipeline.Sink{
		beepSink(),
		outputSink(store, paste.New(clipboard.System(), nil), clipboard.System()),
		notifySink(store, notify.New(nil)),
	}
	var onLevel func(float64)
	if f.tui {
		sinks = append(sinks, tuiSink())
		onLevel = func(l float64) { tuiSend(AudioLevelMsg{Level: l}) }
	}

	a, err := newApp(appDeps{
		store:   store,
		audio:   actx,
		engine:  engine,
		backend: hotkey.Select(combo),
		sinks:   sinks,
		onLevel: onLevel,
	})
	if err != nil {
		fatalf("%v", err)
	}
	store.Subscribe(func(old, cur config.Settings) {
		beep.SetEnabled(cur.Beep)
		tuiSend(infoLine(cur, combo))
	})

	log.SessionStart(engine.Name(), settings.Model, a.bridge.Backend().Name())
	a.start(ctx)

	go func() {
		if err := config.Watch(ctx, loader, store, f.overlay); err != nil {
			log.Warnf("settings hot reload disabled: %v", err)
		}
	}()

	if f.tui {
		p := NewTUIProgram(tuiActions{
			toggle: a.coord.Toggle,
			evict:  a.evict,
			models: a.cache.Snapshot,
			state:  a.coord.State,
		})
		tuiMu.Lock()
		tuiProgram = p
		tuiMu.Unlock()
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		go tuiSend(infoLine(settings, combo))
		if _, err := p.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
		}
		tuiMu.Lock()
		tuiProgram = nil
		tuiMu.Unlock()
		stop()
	} else {
		fmt.Printf("whispr %s ready: press %s to record (%s, model %s)\n", version, combo, a.bridge.Backend().Name(), settings.Model)
		<-ctx.Done()
	}

	a.close()
	log.SessionEnd(a.completed())
}

func infoLine(s config.Settings, combo hotkey.Combo) tea.Msg {
	name := s.Model
	if s.Accel {
		name += " (accel)"
	}
	name += ", " + transcriber.NormalizeLanguage(s.Language)
	if s.Translate {
		name += " -> en"
	}
	device := s.Device
	if device == "" {
		device = "system default"
	} else if audio.IsBluetooth(device) {
		device += " (BT!)"
	}
	return InfoLineMsg{Model: name, Device: device, Hotkey: combo.String()}
}

// persistDevice writes the picked device to the settings file so -setup
// only has to be run once.
func persistDevice(l config.Loader, name string) {
	path := l.Path
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return
		}
		path = p
	}
	s, err := config.ReadFile(path)
	if err != nil {
		log.Warnf("saving device: %v", err)
		return
	}
	s.Device = name
	if err := config.WriteFile(path, s); err != nil {
		log.Warnf("saving device: %v", err)
	}
}

func listModels(dir, current string) {
	fmt.Printf("Models directory: %s\n\n", dir)
	for _, m := range model.Known {
		mark := " "
		if _, err := model.Path(dir, m.ID); err == nil {
			mark = "*"
		}
		cur := ""
		if m.ID == current {
			cur = "  (selected)"
		}
		fmt.Printf("  %s %-8s %5d MB  %s%s\n", mark, m.ID, m.SizeMB, model.FileName(m.ID), cur)
	}
	fmt.Println("\n* = downloaded. Fetch missing models from https://huggingface.co/ggerganov/whisper.cpp")
}

func runDoctor(ctx context.Context, store *config.Store, actx audio.Context, engine transcriber.Engine, combo hotkey.Combo) int {
	s := store.Get()
	dev, err := audio.FindDevice(actx, s.Device)
	if err != nil {
		fmt.Printf("Warning: %v, using system default\n", err)
	}
	cache := transcriber.NewCache(engine, model.Resolver(func() string { return modelsDir(store.Get()) }), model.Options{})
	defer cache.Close()

	fmt.Printf("engine: %s (acceleration available: %v)\n", engine.Name(), engine.AccelAvailable())
	if engine.Name() == "stub" {
		fmt.Println("Warning: built without whisper.cpp, transcription will fail")
	}
	return doctor.Run(ctx, doctor.Options{
		Backend:     hotkey.Select(combo),
		Combo:       combo,
		Audio:       actx,
		Device:      dev,
		Transcriber: transcriber.New(engine, cache, transcriber.Options{Policy: s.Policy(), Threads: s.Threads}),
		Request: transcriber.Request{
			ModelID:   s.Model,
			Accel:     s.Accel,
			Language:  s.Language,
			Translate: s.Translate,
		},
		Clipboard: clipboard.System(),
	})
}
