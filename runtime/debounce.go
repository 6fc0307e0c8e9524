package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type debounceKey struct {
	subject string
	scope   uuid.UUID
}

type debounceEntry struct {
	gen   uint64
	timer *time.Timer
}

// Debouncer is a reset-or-fire-after-idle timer keyed by (subject, scope).
// Reset arms (or re-arms) the idle timer for a key; if the key stays
// unrefreshed for the full window, onExpire fires exactly once.
//
// Every Reset bumps a generation stamp. The expiry callback re-checks the
// stamp under the lock before firing, so a timer that was already mid-fire
// when a Reset or Cancel raced with it never reaches onExpire.
type Debouncer struct {
	mu       sync.Mutex
	idle     time.Duration
	entries  map[debounceKey]*debounceEntry
	onExpire func(subject string, scope uuid.UUID)
}

func NewDebouncer(idle time.Duration, onExpire func(subject string, scope uuid.UUID)) *Debouncer {
	return &Debouncer{
		idle:     idle,
		entries:  make(map[debounceKey]*debounceEntry),
		onExpire: onExpire,
	}
}

// Reset starts the idle countdown for (subject, scope), replacing any
// pending one. Returns true if no countdown was pending before.
func (d *Debouncer) Reset(subject string, scope uuid.UUID) bool {
	key := debounceKey{subject: subject, scope: scope}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, pending := d.entries[key]
	if pending {
		entry.timer.Stop()
		entry.gen++
	} else {
		entry = &debounceEntry{}
		d.entries[key] = entry
	}

	gen := entry.gen
	entry.timer = time.AfterFunc(d.idle, func() {
		d.fire(key, gen)
	})
	return !pending
}

// Cancel drops the pending countdown for (subject, scope) if any.
// Returns true if a countdown was pending.
func (d *Debouncer) Cancel(subject string, scope uuid.UUID) bool {
	key := debounceKey{subject: subject, scope: scope}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, pending := d.entries[key]
	if !pending {
		return false
	}
	entry.timer.Stop()
	delete(d.entries, key)
	return true
}

// Pending reports how many countdowns are currently armed.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Debouncer) fire(key debounceKey, gen uint64) {
	d.mu.Lock()
	entry, ok := d.entries[key]
	if !ok || entry.gen != gen {
		// A Reset or Cancel won the race; this firing is stale.
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	d.onExpire(key.subject, key.scope)
}
