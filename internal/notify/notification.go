package notify

import (
	"time"

	"github.com/google/uuid"
)

// Level classifies a notification for display purposes.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is an ephemeral user-facing message. Dismissible by id;
// AutoDismiss > 0 additionally removes it after that duration.
type Notification struct {
	ID          string        `json:"id"`
	Message     string        `json:"message"`
	Level       Level         `json:"level"`
	AutoDismiss time.Duration `json:"auto_dismiss,omitempty"`
}

// Notify appends a notification and returns its id.
//
// If ttl > 0 a timer is armed that removes the notification on expiry.
// Expiry and Dismiss both funnel through the same id-keyed removal, so the
// notification is removed exactly once: dismiss-after-expiry and
// expiry-after-dismiss are safe no-ops.
func (s *Store) Notify(message string, level Level, ttl time.Duration) string {
	n := Notification{
		ID:          uuid.NewString(),
		Message:     message,
		Level:       level,
		AutoDismiss: ttl,
	}

	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	if ttl > 0 {
		s.timers[n.ID] = time.AfterFunc(ttl, func() {
			s.Dismiss(n.ID)
		})
	}
	s.mu.Unlock()

	return n.ID
}

// Dismiss removes a notification by id. Absent ids are a no-op, so calling
// Dismiss after auto-expiry (or expiry firing after an explicit Dismiss) is
// safe.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// Notifications returns a snapshot of the active notifications in arrival
// order.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}
