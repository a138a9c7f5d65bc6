// Package broadcast carries the forced-logout signal from code with no view
// of the application shell (the request gateway) to whatever owns
// navigation. Explicitly constructed and injected so each test can run its
// own isolated instance.
package broadcast

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// LogoutBroadcast holds at most one registered logout handler.
//
// Register overwrites the slot; Trigger invokes the handler if present and
// is otherwise a logged no-op. Triggers are never queued: a handler
// registered later does not see earlier triggers.
type LogoutBroadcast struct {
	mu      sync.Mutex
	handler func()
}

// New creates an empty LogoutBroadcast.
func New() *LogoutBroadcast {
	return &LogoutBroadcast{}
}

// Register installs handler, replacing any previous registration.
func (b *LogoutBroadcast) Register(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Clear removes the registered handler.
func (b *LogoutBroadcast) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = nil
}

// Trigger invokes the registered handler, if any.
func (b *LogoutBroadcast) Trigger() {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()

	if handler == nil {
		log.Debug().Msg("logout triggered with no registered handler")
		return
	}
	handler()
}
