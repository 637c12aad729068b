package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"whispr/log"
)

// settle gives an editor time to finish writing before the file is read.
const settle = 50 * time.Millisecond

// Watch reloads the settings file into st whenever it changes, until ctx is
// done. overlay, if set, is applied after every reload so session flags
// keep winning over the file. Invalid files are logged and ignored.
func Watch(ctx context.Context, l Loader, st *Store, overlay func(*Settings)) error {
	if l.Path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		l.Path = p
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warnf("closing settings watcher: %v", err)
		}
	}()

	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(l.Path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(l.Path), err)
	}
	log.Infof("watching %s", l.Path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(l.Path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(settle)
			}

		case <-pending:
			pending = nil
			reload(l, st, overlay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("settings watcher: %v", err)
		}
	}
}

func reload(l Loader, st *Store, overlay func(*Settings)) {
	s, err := ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		err = applyEnv(lookupOrEnv(l.Lookup), &s)
	}
	if err == nil && overlay != nil {
		overlay(&s)
	}
	if err == nil {
		err = st.Update(s)
	}
	if err != nil {
		log.Warnf("settings reload ignored: %v", err)
		return
	}
	log.Info("settings reloaded")
}
