package drafts

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long a Saver waits after the last edit before
// persisting.
const DefaultDebounce = time.Second

// Saver debounces draft writes for one template: Arm schedules a write and
// rearming replaces the pending one, Flush persists the pending content
// immediately, Stop cancels without writing.
type Saver struct {
	store      *Store
	templateID string
	delay      time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *string
}

// NewSaver creates a Saver for templateID. delay <= 0 uses DefaultDebounce.
func NewSaver(store *Store, templateID string, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Saver{store: store, templateID: templateID, delay: delay}
}

// Arm schedules content to be written after the debounce delay, replacing
// any previously scheduled write.
func (s *Saver) Arm(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &content
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.flushPending)
}

// Flush persists any pending content immediately and disarms the timer.
func (s *Saver) Flush() {
	s.flushPending()
}

// Stop disarms the timer and drops any pending content without writing.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
}

func (s *Saver) flushPending() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending == nil {
		return
	}
	if err := s.store.Save(s.templateID, *pending); err != nil {
		log.Warn().Err(err).Str("template_id", s.templateID).Msg("failed to save draft")
	}
}
