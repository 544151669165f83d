// Package engine implements the coordinated validation-and-submission engine.
//
// The engine lets any number of independently editable units (form sections,
// panels, documents) be saved as a single logical operation with well-defined
// partial-failure semantics.
//
// ARCHITECTURE:
//
// Two-Phase Save Cycle:
// SaveAll runs exactly two phases in strict sequence:
//  1. Validation - every dirty registered unit's validator runs concurrently;
//     submission is attempted only if every one of them passes.
//  2. Submission - every dirty registered unit's submitter runs concurrently;
//     successes are marked clean, failures stay dirty for retry.
//
// Both phases are pure fan-out/fan-in: N independent asynchronous calls are
// launched and the coordinator suspends at the fan-in barrier until all of
// them settle. No ordering between units is guaranteed or required within a
// phase - correctness never depends on which unit's call resolves first.
//
// Failure Containment:
// A unit's validator or submitter returning an error (or panicking) is
// contained at the phase-runner boundary and converted into a structured
// per-unit result. One unit's failure never aborts or corrupts its siblings'
// results. Only a failure of the coordination logic itself becomes the
// cycle-level network error, and even that is recovered - SaveAll never
// panics to its caller.
//
// Concurrent SaveAll calls are not coordinated: a call that arrives while a
// cycle is in flight is rejected.
package engine
