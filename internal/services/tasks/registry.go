// Package tasks tracks in-flight analysis runs so a stock is never
// analyzed twice concurrently.
package tasks

import (
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// ErrDuplicateTask indicates the stock is already being analyzed. Surfaced
// to submitters as an immediate rejection, never mid-stream.
var ErrDuplicateTask = errors.New("analysis already in progress")

// entry records who acquired a key and when.
type entry struct {
	started  time.Time
	clientID string
}

// Registry implements interfaces.TaskRegistry with a mutex-guarded map.
type Registry struct {
	mu      sync.Mutex
	running map[string]entry
	logger  arbor.ILogger
}

// NewRegistry creates an empty task registry.
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		running: make(map[string]entry),
		logger:  logger,
	}
}

// TryAcquire marks key as running on behalf of ownerClientID. Returns false
// if the key is already held, regardless of which client holds it.
func (r *Registry) TryAcquire(key, ownerClientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, held := r.running[key]; held {
		r.logger.Debug().
			Str("task", key).
			Str("held_by", cur.clientID).
			Msg("Task already running, rejecting duplicate")
		return false
	}

	r.running[key] = entry{started: time.Now(), clientID: ownerClientID}
	return true
}

// Release frees key. Releasing a key that is not held is a no-op, so callers
// can defer Release unconditionally on every exit path.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, held := r.running[key]; held {
		delete(r.running, key)
		r.logger.Debug().
			Str("task", key).
			Str("client_id", cur.clientID).
			Dur("held", time.Since(cur.started)).
			Msg("Task released")
	}
}

// Running reports whether key is currently held.
func (r *Registry) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.running[key]
	return held
}

// Owner returns the client ID that acquired key, and whether the key is held.
func (r *Registry) Owner(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, held := r.running[key]
	return cur.clientID, held
}

// ActiveCount returns the number of held keys.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
