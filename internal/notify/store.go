// Package notify aggregates the user-facing outcomes of save cycles:
// per-unit validation errors, per-unit submission errors, a cycle-level
// network error, and ephemeral notifications with optional auto-expiry.
//
// Validation and submission errors are mutually exclusive outputs of one
// save cycle - the coordinator only populates submission errors when
// validation fully passed - but the store itself does not enforce that; it
// is a dumb aggregation point with independently settable slots.
package notify

import (
	"sync"
	"time"

	"github.com/draftline/draftline/internal/unit"
)

// SubmissionError is one unit's submit failure, resolved for display.
type SubmissionError struct {
	UnitID      unit.ID `json:"unit_id"`
	DisplayName string  `json:"display_name"`
	Message     string  `json:"message"`
	Retryable   bool    `json:"retryable"`
}

// RetryableStatus reports whether a submit rejection with the given
// transport status is worth retrying. Server-side (5xx) and transportless
// failures are retryable; client-side (4xx) rejections are not.
func RetryableStatus(code int) bool {
	return code == 0 || code >= 500
}

// Store holds the four independently settable slots plus the timers backing
// notification auto-expiry.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu            sync.Mutex
	validation    []unit.ValidationSummary
	submission    []SubmissionError
	network       string
	hasNetwork    bool
	notifications []Notification
	timers        map[string]*time.Timer
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{timers: make(map[string]*time.Timer)}
}

// SetValidationErrors replaces the validation error list.
func (s *Store) SetValidationErrors(summaries []unit.ValidationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation = append([]unit.ValidationSummary(nil), summaries...)
}

// ValidationErrors returns a snapshot of the validation error list.
func (s *Store) ValidationErrors() []unit.ValidationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]unit.ValidationSummary(nil), s.validation...)
}

// SetSubmissionErrors replaces the submission error list.
func (s *Store) SetSubmissionErrors(errs []SubmissionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submission = append([]SubmissionError(nil), errs...)
}

// SubmissionErrors returns a snapshot of the submission error list.
func (s *Store) SubmissionErrors() []SubmissionError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubmissionError(nil), s.submission...)
}

// SetNetworkError records the single cycle-level transport error.
func (s *Store) SetNetworkError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = message
	s.hasNetwork = true
}

// NetworkError returns the cycle-level transport error, if set.
func (s *Store) NetworkError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network, s.hasNetwork
}

// HasErrors reports whether any error slot is populated.
// Notifications do not count as errors.
func (s *Store) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.validation) > 0 || len(s.submission) > 0 || s.hasNetwork
}

// ClearAll empties the three error slots. Notifications are untouched.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validation = nil
	s.submission = nil
	s.network = ""
	s.hasNetwork = false
}

// ClearErrorsForUnit removes one unit's entries from both the validation and
// submission lists without touching other units' entries or the network slot.
func (s *Store) ClearErrorsForUnit(id unit.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.validation[:0]
	for _, v := range s.validation {
		if v.UnitID != id {
			kept = append(kept, v)
		}
	}
	s.validation = kept

	keptSub := s.submission[:0]
	for _, e := range s.submission {
		if e.UnitID != id {
			keptSub = append(keptSub, e)
		}
	}
	s.submission = keptSub
}
