package hotkey

import (
	"context"
	"fmt"

	"whispr/log"
)

// Toggler is what a trigger drives.
type Toggler interface {
	Toggle() error
}

// Bridge forwards backend triggers to a Toggler.
type Bridge struct {
	backend Backend
	target  Toggler
}

func NewBridge(backend Backend, target Toggler) *Bridge {
	return &Bridge{backend: backend, target: target}
}

func (b *Bridge) Backend() Backend { return b.backend }

func (b *Bridge) Register() error {
	if err := b.backend.Register(); err != nil {
		return fmt.Errorf("registering hotkey: %w", err)
	}
	log.Infof("hotkey registered via %s", b.backend.Name())
	return nil
}

// Run forwards triggers until ctx is done, then unregisters the backend.
// Register must have succeeded first.
func (b *Bridge) Run(ctx context.Context) {
	defer b.backend.Unregister()
	triggers := b.backend.Triggers()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			log.Info("hotkey_trigger")
			if err := b.target.Toggle(); err != nil {
				log.Warnf("hotkey toggle: %v", err)
			}
		}
	}
}
