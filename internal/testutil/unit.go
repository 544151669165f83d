// Package testutil provides deterministic unit fixtures for engine tests.
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/draftline/draftline/internal/unit"
)

// Unit is a scripted unit with programmable validate/submit outcomes and
// atomic call counters.
//
// Zero value behavior: validation passes, submit succeeds, no delays.
// Counters make gate assertions possible (e.g. "no submit was ever invoked
// when validation failed").
type Unit struct {
	ID          unit.ID
	DisplayName string

	// FieldErrors, when non-empty, makes the validator report these failures.
	FieldErrors []unit.FieldError
	// ValidateErr makes the validator return an error (exceptional path).
	ValidateErr error
	// ValidatePanic, when non-empty, makes the validator panic.
	ValidatePanic string
	// ValidateDelay stalls the validator before settling.
	ValidateDelay time.Duration

	// SubmitFailure, when non-empty, makes submit settle unsuccessfully with
	// this message.
	SubmitFailure string
	// SubmitErr makes submit return an error (normalized by the runner).
	SubmitErr error
	// SubmitPanic, when non-empty, makes submit panic.
	SubmitPanic string
	// StatusCode is attached to failed submits.
	StatusCode int
	// SubmitDelay stalls the submitter before settling.
	SubmitDelay time.Duration

	validateCalls atomic.Int64
	submitCalls   atomic.Int64
}

// Registration returns the capability entry for this scripted unit.
func (u *Unit) Registration() unit.Registration {
	return unit.Registration{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Validate:    u.validate,
		Submit:      u.submit,
	}
}

// ValidateCalls returns how many times the validator was invoked.
func (u *Unit) ValidateCalls() int {
	return int(u.validateCalls.Load())
}

// SubmitCalls returns how many times the submitter was invoked.
func (u *Unit) SubmitCalls() int {
	return int(u.submitCalls.Load())
}

func (u *Unit) validate(ctx context.Context) (unit.ValidationResult, error) {
	u.validateCalls.Add(1)
	wait(ctx, u.ValidateDelay)

	if u.ValidatePanic != "" {
		panic(u.ValidatePanic)
	}
	if u.ValidateErr != nil {
		return unit.ValidationResult{}, u.ValidateErr
	}
	if len(u.FieldErrors) > 0 {
		return unit.Invalid(u.FieldErrors...), nil
	}
	return unit.Valid(), nil
}

func (u *Unit) submit(ctx context.Context) (unit.SubmitResult, error) {
	u.submitCalls.Add(1)
	wait(ctx, u.SubmitDelay)

	if u.SubmitPanic != "" {
		panic(u.SubmitPanic)
	}
	if u.SubmitErr != nil {
		return unit.SubmitResult{StatusCode: u.StatusCode}, u.SubmitErr
	}
	if u.SubmitFailure != "" {
		return unit.SubmitResult{
			Success:    false,
			UnitID:     u.ID,
			Error:      u.SubmitFailure,
			StatusCode: u.StatusCode,
		}, nil
	}
	return unit.SubmitResult{Success: true, UnitID: u.ID}, nil
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
