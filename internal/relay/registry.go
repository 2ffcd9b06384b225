package relay

import (
	"sort"
	"sync"

	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// Registry maps connection keys to live channels. It is process-local:
// entries are created when a session registers and removed when that
// same session disconnects.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	logger   *logging.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Register installs ch under its key and starts its write pump. A
// channel already registered under the same key is stopped before being
// replaced, so a reconnecting client cannot leak its previous
// connection.
func (r *Registry) Register(ch *Channel) {
	r.mu.Lock()
	old := r.channels[ch.key]
	r.channels[ch.key] = ch
	r.mu.Unlock()

	go ch.writePump()

	if old != nil {
		old.stop()
		r.logger.Info("connection replaced", "connection_key", ch.key)
		return
	}
	r.logger.Debug("connection registered", "connection_key", ch.key, "connections", r.Count())
}

// Unregister removes ch from the registry and stops it. The entry is
// deleted only while it still holds ch: a session whose channel was
// already replaced by a reconnect must not evict its successor.
func (r *Registry) Unregister(ch *Channel) {
	r.mu.Lock()
	current := r.channels[ch.key]
	if current == ch {
		delete(r.channels, ch.key)
	}
	r.mu.Unlock()

	ch.stop()
	if current == ch {
		r.logger.Debug("connection unregistered", "connection_key", ch.key, "connections", r.Count())
	}
}

// Send queues v for the channel registered under key and reports whether
// it was queued. Delivery is best-effort: a connection that fails mid
// flight is torn down by its write pump and removed when its session
// exits.
func (r *Registry) Send(key string, v any) bool {
	r.mu.RLock()
	ch, ok := r.channels[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return ch.enqueue(v)
}

// Broadcast queues v for every registered channel and returns the number
// of keys attempted. Delivery runs over a point-in-time snapshot, so
// registrations racing the broadcast do not disturb the iteration.
func (r *Registry) Broadcast(v any) int {
	r.mu.RLock()
	channels := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	for _, ch := range channels {
		ch.enqueue(v)
	}
	return len(channels)
}

// Keys returns the currently registered connection keys, sorted for
// stable output.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.channels))
	for key := range r.channels {
		keys = append(keys, key)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll stops every registered channel and empties the registry.
// Used during shutdown so session read loops unblock promptly.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		ch.stop()
	}
	if len(channels) > 0 {
		r.logger.Info("all connections closed", "count", len(channels))
	}
}
