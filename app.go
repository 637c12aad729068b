package main

import (
	"context"
	"fmt"
	"sync"

	"whispr/audio"
	"whispr/config"
	"whispr/encoder"
	"whispr/hotkey"
	"whispr/log"
	"whispr/model"
	"whispr/pipeline"
	"whispr/recorder"
	"whispr/transcriber"
)

// app is the assembled pipeline. Live mode and -test mode build the same
// graph and differ only in the audio context, engine and hotkey backend.
type app struct {
	store  *config.Store
	audio  audio.Context
	rec    *recorder.Recorder
	engine transcriber.Engine
	cache  *model.Cache[transcriber.Model]
	tr     *transcriber.Transcriber
	coord  *pipeline.Coordinator
	bridge *hotkey.Bridge

	countMu sync.Mutex
	count   int
}

type appDeps struct {
	store   *config.Store
	audio   audio.Context
	engine  transcriber.Engine
	backend hotkey.Backend
	sinks   []pipeline.Sink
	onLevel func(float64)
}

func newApp(d appDeps) (*app, error) {
	s := d.store.Get()
	format, err := encoder.ParseFormat(s.ArchiveFormat)
	if err != nil {
		return nil, err
	}

	a := &app{store: d.store, audio: d.audio, engine: d.engine}
	a.rec = recorder.New(d.audio, recorder.Options{
		Capture: audio.CaptureConfig{
			SampleRate: uint32(s.CaptureRate),
			Channels:   uint32(s.CaptureChannels),
		},
		ArchiveDir:    s.ArchiveDir,
		ArchiveFormat: format,
		OnLevel:       d.onLevel,
	})
	if s.Device != "" {
		dev, err := audio.FindDevice(d.audio, s.Device)
		if err != nil {
			log.Warnf("device %q: %v, using system default", s.Device, err)
		} else {
			a.rec.SetDevice(dev)
		}
	}

	resolve := model.Resolver(func() string { return modelsDir(a.store.Get()) })
	a.cache = transcriber.NewCache(d.engine, resolve, model.Options{IdleTimeout: s.IdleTimeout})
	a.tr = transcriber.New(d.engine, a.cache, transcriber.Options{
		Policy:  s.Policy(),
		Threads: s.Threads,
	})

	sinks := append([]pipeline.Sink{pipeline.LogSink(), pipeline.SinkFunc(a.countCompleted)}, d.sinks...)
	a.coord = pipeline.New(a.rec, a.tr, pipeline.Options{
		Sink:       pipeline.Multi(sinks...),
		Settings:   a.requestOptions,
		ResetDelay: s.ResetDelay,
	})
	a.bridge = hotkey.NewBridge(d.backend, a.coord)

	d.store.Subscribe(a.settingsChanged)
	return a, nil
}

func modelsDir(s config.Settings) string {
	if s.ModelsDir != "" {
		return s.ModelsDir
	}
	return model.DefaultDir()
}

func (a *app) requestOptions() pipeline.RequestOptions {
	s := a.store.Get()
	return pipeline.RequestOptions{
		ModelID:   s.Model,
		Accel:     s.Accel,
		Language:  s.Language,
		Translate: s.Translate,
	}
}

func (a *app) countCompleted(ev pipeline.Event) {
	if ev.Kind != pipeline.KindTranscriptionComplete {
		return
	}
	a.countMu.Lock()
	a.count++
	a.countMu.Unlock()
}

func (a *app) completed() int {
	a.countMu.Lock()
	defer a.countMu.Unlock()
	return a.count
}

func (a *app) settingsChanged(old, cur config.Settings) {
	if old.ResetDelay != cur.ResetDelay {
		a.coord.SetResetDelay(cur.ResetDelay)
	}
	if old.Device != cur.Device {
		a.switchDevice(cur.Device)
	}
	if old.Hotkey != cur.Hotkey {
		log.Warnf("hotkey changed to %s; restart to apply", cur.Hotkey)
	}
	if old.Model != cur.Model || old.Accel != cur.Accel {
		log.Infof("model set to %s (accel=%v), loads on next transcription", cur.Model, cur.Accel)
	}
}

// switchDevice applies from the next recording. An empty name selects the
// system default.
func (a *app) switchDevice(name string) {
	if name == "" {
		a.rec.SetDevice(nil)
		log.Info("device_switch: system default")
		return
	}
	dev, err := audio.FindDevice(a.audio, name)
	if err != nil {
		log.Warnf("device_switch %q: %v", name, err)
		return
	}
	a.rec.SetDevice(dev)
	log.Info("device_switch: " + dev.Name)
}

// start registers the hotkey and runs the coordinator, reclaimer and
// hotkey bridge until ctx is done. A hotkey failure is logged and the app
// keeps running without one.
func (a *app) start(ctx context.Context) {
	s := a.store.Get()
	go a.coord.Run(ctx)
	go a.cache.RunReclaimer(ctx, s.ReclaimInterval)
	if err := a.bridge.Register(); err != nil {
		log.Errorf("hotkey unavailable: %v", err)
		return
	}
	go a.bridge.Run(ctx)
}

// evict unloads the current model, reporting a busy model as an error.
func (a *app) evict() error {
	id := a.store.Get().Model
	if err := a.cache.Evict(id); err != nil {
		return fmt.Errorf("evict %s: %w", id, err)
	}
	return nil
}

// close waits for the coordinator to stop and frees loaded models.
func (a *app) close() {
	<-a.coord.Done()
	if err := a.cache.Close(); err != nil {
		log.Warnf("closing model cache: %v", err)
	}
}
