package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/draftline/draftline/internal/unit"
)

// validateAllDirty runs the validation phase: every dirty id that resolves
// in the registry has its validator invoked concurrently, and the phase
// waits for all of them to settle. A slow or failing validator for one unit
// never blocks or cancels validation of the others.
//
// Returns allValid (true iff zero failures) and one summary per failing
// unit, sorted by unit id so the aggregate is independent of completion
// order.
func (c *Coordinator) validateAllDirty(ctx context.Context) (bool, []unit.ValidationSummary) {
	targets := c.resolveDirty()
	if len(targets) == 0 {
		return true, nil
	}

	type outcome struct {
		id      unit.ID
		summary *unit.ValidationSummary
	}

	// Buffered to len(targets) so late validators (after a deadline expiry)
	// can still send and exit instead of leaking.
	results := make(chan outcome, len(targets))
	for _, reg := range targets {
		go func(reg unit.Registration) {
			res := runValidator(ctx, reg.Validate)
			if res.Valid {
				results <- outcome{id: reg.ID}
				return
			}
			results <- outcome{id: reg.ID, summary: &unit.ValidationSummary{
				UnitID:      reg.ID,
				DisplayName: reg.DisplayName,
				Errors:      res.Errors,
			}}
		}(reg)
	}

	pending := make(map[unit.ID]unit.Registration, len(targets))
	for _, reg := range targets {
		pending[reg.ID] = reg
	}

	deadline, stop := c.deadlineChan()
	defer stop()

	var summaries []unit.ValidationSummary
	for len(pending) > 0 {
		select {
		case o := <-results:
			delete(pending, o.id)
			if o.summary != nil {
				summaries = append(summaries, *o.summary)
			}

		case <-deadline:
			// Units still pending become synthetic failures. Their
			// underlying calls are not cancelled; late results are dropped.
			for id, reg := range pending {
				summaries = append(summaries, unit.ValidationSummary{
					UnitID:      id,
					DisplayName: reg.DisplayName,
					Errors:      []unit.FieldError{{Message: "save deadline exceeded"}},
				})
			}
			pending = nil
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UnitID < summaries[j].UnitID
	})
	return len(summaries) == 0, summaries
}

// runValidator invokes one unit's validator with full containment: an error
// return or a panic becomes a failing ValidationResult instead of escaping
// into the phase.
func runValidator(ctx context.Context, fn unit.ValidateFunc) (res unit.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = unit.Invalid(unit.FieldError{Message: fmt.Sprintf("validator panicked: %v", r)})
		}
	}()

	out, err := fn(ctx)
	if err != nil {
		return unit.Invalid(unit.FieldError{Message: err.Error()})
	}

	// Keep the errors-empty-iff-valid invariant even for sloppy validators.
	if out.Valid {
		out.Errors = nil
	} else if len(out.Errors) == 0 {
		out.Errors = []unit.FieldError{{Message: "validation failed"}}
	}
	return out
}
