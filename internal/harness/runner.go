package harness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/draftline/draftline/internal/engine"
	"github.com/draftline/draftline/internal/unit"
)

// scriptedUnit turns a UnitSpec into live capability functions with call
// counters, so reports can assert the validation gate (zero submit calls
// when any unit fails validation).
type scriptedUnit struct {
	spec          UnitSpec
	validateCalls atomic.Int64
	submitCalls   atomic.Int64
}

func (s *scriptedUnit) registration() unit.Registration {
	return unit.Registration{
		ID:          unit.ID(s.spec.ID),
		DisplayName: s.spec.DisplayName,
		Validate:    s.validate,
		Submit:      s.submit,
	}
}

func (s *scriptedUnit) validate(ctx context.Context) (unit.ValidationResult, error) {
	s.validateCalls.Add(1)

	v := s.spec.Validation
	if v == nil {
		return unit.Valid(), nil
	}
	settle(ctx, v.SettleMS)

	if v.Fail != "" {
		return unit.ValidationResult{}, errors.New(v.Fail)
	}
	if len(v.Errors) == 0 {
		return unit.Valid(), nil
	}

	errs := make([]unit.FieldError, 0, len(v.Errors))
	for _, e := range v.Errors {
		errs = append(errs, unit.FieldError{Field: e.Field, Message: e.Message})
	}
	return unit.Invalid(errs...), nil
}

func (s *scriptedUnit) submit(ctx context.Context) (unit.SubmitResult, error) {
	s.submitCalls.Add(1)

	sub := s.spec.Submit
	if sub == nil {
		return unit.SubmitResult{Success: true, UnitID: unit.ID(s.spec.ID)}, nil
	}
	settle(ctx, sub.SettleMS)

	switch sub.Outcome {
	case "", OutcomeOK:
		return unit.SubmitResult{Success: true, UnitID: unit.ID(s.spec.ID)}, nil

	case OutcomeFail:
		msg := sub.Error
		if msg == "" {
			msg = "submit failed"
		}
		return unit.SubmitResult{
			Success:    false,
			UnitID:     unit.ID(s.spec.ID),
			Error:      msg,
			StatusCode: sub.StatusCode,
		}, nil

	case OutcomeError:
		msg := sub.Error
		if msg == "" {
			msg = "submit error"
		}
		return unit.SubmitResult{StatusCode: sub.StatusCode}, errors.New(msg)

	case OutcomePanic:
		msg := sub.Error
		if msg == "" {
			msg = "submit panic"
		}
		panic(msg)

	default:
		return unit.SubmitResult{}, fmt.Errorf("unknown outcome %q", sub.Outcome)
	}
}

// settle sleeps for the scripted settle time, bailing early if the context
// is done.
func settle(ctx context.Context, ms int) {
	if ms <= 0 {
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-ctx.Done():
	}
}

// Run executes one save cycle for the scenario and captures the outcome.
func Run(ctx context.Context, sc *Scenario, opts ...engine.Option) (*Report, error) {
	coord := engine.New(opts...)

	scripted := make([]*scriptedUnit, 0, len(sc.Units))
	for _, spec := range sc.Units {
		su := &scriptedUnit{spec: spec}
		scripted = append(scripted, su)

		if spec.registered() {
			coord.Register(su.registration())
		}
		if spec.Dirty {
			coord.ReportDirty(unit.ID(spec.ID), true)
		}
	}

	saved := coord.SaveAll(ctx)

	return buildReport(sc, coord, scripted, saved), nil
}
