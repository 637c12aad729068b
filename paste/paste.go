package paste

import (
	"strings"
	"sync"
	"time"

	"whispr/clipboard"
	"whispr/log"
)

// RestoreDelay is how long the transcription stays on the clipboard before
// the previous contents are put back. The target app must have read it by
// then.
const RestoreDelay = 600 * time.Millisecond

// Paster puts text into the focused window by copying it and sending the
// paste shortcut.
type Paster struct {
	clip  clipboard.Clipboard
	send  func() error
	delay time.Duration

	mu      sync.Mutex
	restore *time.Timer
	gen     int
	saved   string
}

// New returns a Paster. A nil send uses the platform keystroke.
func New(clip clipboard.Clipboard, send func() error) *Paster {
	if send == nil {
		send = Send
	}
	return &Paster{clip: clip, send: send, delay: RestoreDelay}
}

// SetRestoreDelay overrides RestoreDelay.
func (p *Paster) SetRestoreDelay(d time.Duration) {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
}

// Paste copies text, sends the paste keystroke and schedules the previous
// clipboard contents to be restored. Blank text is ignored.
func (p *Paster) Paste(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// a pending restore means the clipboard holds our own text
	if p.restore != nil {
		p.restore.Stop()
		p.restore = nil
	} else {
		prev, err := p.clip.Read()
		if err != nil {
			log.Warnf("reading clipboard: %v", err)
		}
		p.saved = prev
	}

	err := p.clip.Write(text)
	if err == nil {
		err = p.send()
	}
	// restore on failure too
	p.scheduleRestore()
	return err
}

// scheduleRestore puts p.saved back after the restore delay. p.mu is held.
func (p *Paster) scheduleRestore() {
	if p.saved == "" {
		return
	}
	p.gen++
	gen, saved := p.gen, p.saved
	p.restore = time.AfterFunc(p.delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return
		}
		p.restore = nil
		if err := p.clip.Write(saved); err != nil {
			log.Warnf("restoring clipboard: %v", err)
		}
	})
}
