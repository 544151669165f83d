// Package unit defines the data model shared by the save engine: unit
// identifiers, validation and submission results, and the capability
// contract a unit must satisfy to participate in coordinated saves.
//
// Units are capability-typed, not inheritance-typed. A Registration stores
// the validate and submit functions directly, so any concrete type that can
// produce the two signatures qualifies - there is no base class or embedded
// struct to extend.
package unit

import "context"

// ID is an opaque, caller-chosen identifier for one unit.
//
// IDs must be unique among currently-registered units. Re-registering an
// existing ID replaces the prior registration (last writer wins).
type ID string

// FieldError describes one failed constraint within a unit.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of one unit's validation pass.
//
// INVARIANT: Errors is empty iff Valid is true.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Valid returns a passing ValidationResult.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing ValidationResult carrying the given field errors.
func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// ValidationSummary reports one unit's validation failure.
// Produced only for units that failed validation.
type ValidationSummary struct {
	UnitID      ID           `json:"unit_id"`
	DisplayName string       `json:"display_name"`
	Errors      []FieldError `json:"errors"`
}

// SubmitResult is the outcome of one unit's submit call.
//
// Error is populated iff Success is false. StatusCode optionally carries the
// transport status of the rejection; the notification layer uses its class
// to flag the failure retryable or not. Data is an opaque payload echoed
// back by the unit's transport (e.g. the server response body).
type SubmitResult struct {
	Success    bool   `json:"success"`
	UnitID     ID     `json:"unit_id"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// SubmissionStatus is the aggregate verdict of one submission phase.
type SubmissionStatus string

const (
	// SubmissionSuccess means every dirty registered unit submitted cleanly.
	SubmissionSuccess SubmissionStatus = "success"
	// SubmissionError means at least one unit's submit failed.
	// Successes within the same phase stay saved (partial failure, no rollback).
	SubmissionError SubmissionStatus = "error"
)

// SubmissionSummary reconciles the per-unit outcomes of one submission phase.
type SubmissionSummary struct {
	Status          SubmissionStatus `json:"status"`
	SuccessfulUnits []ID             `json:"successful_units"`
	FailedUnits     []SubmitResult   `json:"failed_units"`
}

// ValidateFunc checks a unit's current edits.
//
// Expected validation failures must be reported through the returned
// ValidationResult, not the error. A non-nil error marks a truly exceptional
// condition; the phase runner still contains it and converts it into a
// failing summary rather than letting it escape.
type ValidateFunc func(ctx context.Context) (ValidationResult, error)

// SubmitFunc persists a unit's current edits.
//
// A non-nil error is tolerated and normalized by the phase runner into a
// failed SubmitResult for that unit only.
type SubmitFunc func(ctx context.Context) (SubmitResult, error)

// Registration is one unit's entry in the live registry: its identity,
// display name, and the two capability functions.
type Registration struct {
	ID          ID
	DisplayName string
	Validate    ValidateFunc
	Submit      SubmitFunc
}
