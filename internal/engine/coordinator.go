package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/draftline/draftline/internal/notify"
	"github.com/draftline/draftline/internal/registry"
	"github.com/draftline/draftline/internal/unit"
)

// State is the coordinator's position in the save cycle state machine.
//
// Transitions:
//
//	idle → validating → idle            (validation failed)
//	idle → validating → submitting → success
//	idle → validating → submitting → error
//
// success and error persist until the next SaveAll so the presentation
// layer can render the outcome of the last cycle.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// DefaultSuccessTTL is how long the "all changes saved" notification stays
// visible before auto-dismissing.
const DefaultSuccessTTL = 5 * time.Second

// Coordinator sequences the validation phase and the submission phase over
// the dirty set and forwards terminal results to the alert store.
//
// Each Coordinator owns its registry, dirty set, and alert store, so tests
// and embedders create isolated instances instead of sharing process-wide
// state.
//
// Thread-safety model:
//   - Register/Unregister/ReportDirty: safe from any goroutine
//   - SaveAll: safe to call from any goroutine, but cycles never overlap -
//     a call arriving while one is in flight is rejected
//   - Snapshot accessors (Status, IsDirty, ...): safe from any goroutine
type Coordinator struct {
	registry *registry.Registry
	dirty    *registry.DirtySet
	alerts   *notify.Store
	clock    *Clock

	saveDeadline time.Duration
	successTTL   time.Duration

	mu       sync.Mutex
	state    State
	inFlight bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSaveDeadline bounds how long a save cycle waits at each fan-in
// barrier. On expiry every unit still pending is treated as a synthetic
// failure; the underlying call is NOT cancelled, which avoids orphaning a
// partial write that may still complete server-side.
//
// Zero (the default) means no deadline: the cycle waits for every unit to
// settle, however long that takes.
func WithSaveDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		c.saveDeadline = d
	}
}

// WithSuccessTTL overrides how long the success notification stays visible.
func WithSuccessTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		c.successTTL = d
	}
}

// WithClock sets a pre-positioned cycle clock. Used when resuming sequence
// numbering from persisted state.
func WithClock(clock *Clock) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// New creates an idle Coordinator with an empty registry, dirty set, and
// alert store.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:   registry.New(),
		dirty:      registry.NewDirtySet(),
		alerts:     notify.NewStore(),
		clock:      NewClock(),
		successTTL: DefaultSuccessTTL,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces a unit's registration.
// Called by a unit's lifecycle on creation.
func (c *Coordinator) Register(reg unit.Registration) {
	c.registry.Register(reg)
}

// Unregister removes a unit's registration. The unit's dirty flag, if set,
// is left in place; phase runners skip ids that no longer resolve.
// Called by a unit's lifecycle on destruction.
func (c *Coordinator) Unregister(id unit.ID) {
	c.registry.Unregister(id)
}

// ReportDirty records a unit's local edit-state transition.
func (c *Coordinator) ReportDirty(id unit.ID, dirty bool) {
	if dirty {
		c.dirty.MarkDirty(id)
		return
	}
	c.dirty.MarkClean(id)
}

// IsDirty reports whether any unit has unsaved edits.
func (c *Coordinator) IsDirty() bool {
	return c.dirty.IsDirty()
}

// DirtyUnitIDs returns a snapshot of the dirty unit ids in no particular
// order.
func (c *Coordinator) DirtyUnitIDs() []unit.ID {
	return c.dirty.IDs()
}

// Status returns the coordinator's current state.
func (c *Coordinator) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsValidating reports whether a validation phase is currently running.
// It stays true until every validator has settled, not just the first.
func (c *Coordinator) IsValidating() bool {
	return c.Status() == StateValidating
}

// Alerts exposes the error and notification store for rendering.
func (c *Coordinator) Alerts() *notify.Store {
	return c.alerts
}

// ValidationErrors snapshots the per-unit validation failures of the last
// cycle.
func (c *Coordinator) ValidationErrors() []unit.ValidationSummary {
	return c.alerts.ValidationErrors()
}

// SubmissionErrors snapshots the per-unit submission failures of the last
// cycle.
func (c *Coordinator) SubmissionErrors() []notify.SubmissionError {
	return c.alerts.SubmissionErrors()
}

// NetworkError returns the cycle-level transport error of the last cycle,
// if any.
func (c *Coordinator) NetworkError() (string, bool) {
	return c.alerts.NetworkError()
}

// Notifications snapshots the active notifications.
func (c *Coordinator) Notifications() []notify.Notification {
	return c.alerts.Notifications()
}

// DismissNotification removes a notification by id.
func (c *Coordinator) DismissNotification(id string) {
	c.alerts.Dismiss(id)
}

// ClearAllErrors empties every error slot.
func (c *Coordinator) ClearAllErrors() {
	c.alerts.ClearAll()
}

// ClearErrorsForUnit removes one unit's validation and submission errors.
func (c *Coordinator) ClearErrorsForUnit(id unit.ID) {
	c.alerts.ClearErrorsForUnit(id)
}

// SaveAll validates every dirty registered unit and, only if all of them
// pass, submits them. Returns true iff the whole cycle ended in success.
//
// Partial failure is not rolled back: units whose submit succeeded are
// marked clean and stay saved even when siblings fail; the failures stay
// dirty so a retry re-submits exactly the units that still need it.
//
// SaveAll never panics. A panic escaping the coordination logic (not
// attributable to any single unit) is recovered and recorded as the single
// cycle-level network error.
func (c *Coordinator) SaveAll(ctx context.Context) (saved bool) {
	if !c.begin() {
		slog.Warn("save cycle rejected: one already in flight")
		return false
	}

	seq := c.clock.Next()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("save cycle aborted", "cycle", seq, "panic", r)
			c.alerts.SetNetworkError(fmt.Sprintf("save failed: %v", r))
			c.setState(StateError)
			saved = false
		}
		c.end()
	}()

	slog.Info("save cycle starting", "cycle", seq, "dirty", c.dirty.Len())

	// Prior cycle outcomes would be misleading once a new cycle runs.
	c.alerts.ClearAll()

	c.setState(StateValidating)
	allValid, summaries := c.validateAllDirty(ctx)
	if !allValid {
		slog.Info("save cycle blocked by validation",
			"cycle", seq,
			"failed_units", len(summaries),
		)
		c.alerts.SetValidationErrors(summaries)
		c.setState(StateIdle)
		return false
	}

	c.setState(StateSubmitting)
	summary := c.submitAllDirty(ctx)
	if summary.Status == unit.SubmissionSuccess {
		slog.Info("save cycle succeeded",
			"cycle", seq,
			"saved_units", len(summary.SuccessfulUnits),
		)
		c.alerts.Notify("All changes saved", notify.LevelSuccess, c.successTTL)
		c.setState(StateSuccess)
		return true
	}

	errs := make([]notify.SubmissionError, 0, len(summary.FailedUnits))
	for _, f := range summary.FailedUnits {
		errs = append(errs, notify.SubmissionError{
			UnitID:      f.UnitID,
			DisplayName: c.registry.DisplayName(f.UnitID),
			Message:     f.Error,
			Retryable:   notify.RetryableStatus(f.StatusCode),
		})
	}
	slog.Info("save cycle failed",
		"cycle", seq,
		"saved_units", len(summary.SuccessfulUnits),
		"failed_units", len(errs),
	)
	c.alerts.SetSubmissionErrors(errs)
	c.setState(StateError)
	return false
}

// begin claims the single in-flight slot. Returns false if a cycle is
// already running.
func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// resolveDirty snapshots the dirty set and resolves each id through the
// registry. Dirty-but-unregistered ids are skipped: they cannot be validated
// or submitted, and they stay in the dirty set untouched.
func (c *Coordinator) resolveDirty() []unit.Registration {
	ids := c.dirty.IDs()
	regs := make([]unit.Registration, 0, len(ids))
	for _, id := range ids {
		reg, ok := c.registry.Resolve(id)
		if !ok {
			slog.Debug("skipping dirty unit with no registration", "unit", id)
			continue
		}
		regs = append(regs, reg)
	}
	return regs
}

// deadlineChan returns a channel that fires when the configured save
// deadline expires, or a nil channel (blocks forever) when no deadline is
// set. The returned stop func releases the timer.
func (c *Coordinator) deadlineChan() (<-chan time.Time, func()) {
	if c.saveDeadline <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(c.saveDeadline)
	return t.C, func() { t.Stop() }
}
