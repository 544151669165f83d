package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/draftline/draftline/internal/unit"
)

// submitAllDirty runs the submission phase: every dirty id that resolves in
// the registry has its submitter invoked concurrently, then the per-unit
// outcomes are reconciled against the dirty set.
//
// Reconciliation rule: MarkClean is applied to successful units only, so a
// retry re-submits exactly the units that still need it. Status is
// SubmissionSuccess iff no unit failed - successes are never rolled back
// when siblings fail.
func (c *Coordinator) submitAllDirty(ctx context.Context) unit.SubmissionSummary {
	targets := c.resolveDirty()

	results := make(chan unit.SubmitResult, len(targets))
	for _, reg := range targets {
		go func(reg unit.Registration) {
			results <- runSubmitter(ctx, reg)
		}(reg)
	}

	pending := make(map[unit.ID]struct{}, len(targets))
	for _, reg := range targets {
		pending[reg.ID] = struct{}{}
	}

	deadline, stop := c.deadlineChan()
	defer stop()

	settled := make([]unit.SubmitResult, 0, len(targets))
	for len(pending) > 0 {
		select {
		case r := <-results:
			if _, ok := pending[r.UnitID]; !ok {
				// Late result for a unit already synthesized as failed.
				continue
			}
			delete(pending, r.UnitID)
			settled = append(settled, r)

		case <-deadline:
			for id := range pending {
				settled = append(settled, unit.SubmitResult{
					Success: false,
					UnitID:  id,
					Error:   "save deadline exceeded",
				})
			}
			pending = nil
		}
	}

	summary := unit.SubmissionSummary{
		Status:          unit.SubmissionSuccess,
		SuccessfulUnits: []unit.ID{},
		FailedUnits:     []unit.SubmitResult{},
	}
	for _, r := range settled {
		if r.Success {
			c.dirty.MarkClean(r.UnitID)
			summary.SuccessfulUnits = append(summary.SuccessfulUnits, r.UnitID)
			continue
		}
		summary.FailedUnits = append(summary.FailedUnits, r)
	}
	if len(summary.FailedUnits) > 0 {
		summary.Status = unit.SubmissionError
	}

	sort.Slice(summary.SuccessfulUnits, func(i, j int) bool {
		return summary.SuccessfulUnits[i] < summary.SuccessfulUnits[j]
	})
	sort.Slice(summary.FailedUnits, func(i, j int) bool {
		return summary.FailedUnits[i].UnitID < summary.FailedUnits[j].UnitID
	})
	return summary
}

// runSubmitter invokes one unit's submitter with full containment: an error
// return or a panic becomes a failed SubmitResult for that unit only.
//
// The registered id is authoritative - whatever the submitter put in
// SubmitResult.UnitID is overwritten so reconciliation always targets the
// unit that was actually invoked.
func runSubmitter(ctx context.Context, reg unit.Registration) (res unit.SubmitResult) {
	defer func() {
		if r := recover(); r != nil {
			res = unit.SubmitResult{
				Success: false,
				UnitID:  reg.ID,
				Error:   fmt.Sprintf("submit panicked: %v", r),
			}
		}
	}()

	out, err := reg.Submit(ctx)
	if err != nil {
		return unit.SubmitResult{
			Success:    false,
			UnitID:     reg.ID,
			Error:      err.Error(),
			StatusCode: out.StatusCode,
		}
	}

	out.UnitID = reg.ID
	if !out.Success && out.Error == "" {
		out.Error = "submit failed"
	}
	return out
}
