package notify

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"whispr/log"
)

const title = "whispr"

// MinInterval rate-limits notifications so a flapping device does not
// flood the desktop.
const MinInterval = 3 * time.Second

// Notifier posts desktop notifications.
type Notifier struct {
	send func(title, message string) error
	now  func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New returns a Notifier. A nil send posts through the OS notification
// service.
func New(send func(title, message string) error) *Notifier {
	if send == nil {
		beeep.AppName = title
		send = func(t, m string) error { return beeep.Notify(t, m, "") }
	}
	return &Notifier{send: send, now: time.Now}
}

// Failure reports a failed stage. Calls within MinInterval of the previous
// notification are dropped.
func (n *Notifier) Failure(stage, msg string) {
	n.mu.Lock()
	now := n.now()
	if !n.last.IsZero() && now.Sub(n.last) < MinInterval {
		n.mu.Unlock()
		return
	}
	n.last = now
	n.mu.Unlock()

	if err := n.send(title, stage+" failed: "+msg); err != nil {
		log.Warnf("notification: %v", err)
	}
}
