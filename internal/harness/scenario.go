// Package harness executes save-cycle scenarios described in YAML.
//
// A scenario declares a set of scripted units (what their validators and
// submitters will report, and how long they take to settle), marks some of
// them dirty, runs one SaveAll cycle, and captures the outcome as a
// deterministic Report suitable for golden-file comparison.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one save-cycle test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Units lists the scripted units taking part in the cycle.
	Units []UnitSpec `yaml:"units"`
}

// UnitSpec scripts one unit's behavior for the cycle.
type UnitSpec struct {
	// ID is the unit identifier.
	ID string `yaml:"id"`

	// DisplayName is the name shown in error reports.
	DisplayName string `yaml:"display_name"`

	// Dirty marks the unit as having unsaved edits at cycle start.
	Dirty bool `yaml:"dirty,omitempty"`

	// Registered controls whether the unit is registered before the cycle.
	// Defaults to true; a dirty-but-unregistered unit exercises the
	// dangling-id path.
	Registered *bool `yaml:"registered,omitempty"`

	// Validation scripts the validator. Absent means the unit validates
	// cleanly.
	Validation *ValidationSpec `yaml:"validation,omitempty"`

	// Submit scripts the submitter. Absent means the submit succeeds.
	Submit *SubmitSpec `yaml:"submit,omitempty"`
}

// ValidationSpec scripts a unit's validator.
type ValidationSpec struct {
	// Errors, when non-empty, makes the validator report these failures.
	Errors []FieldErrorSpec `yaml:"errors,omitempty"`

	// Fail, when non-empty, makes the validator return an error with this
	// message (the exceptional path, distinct from a failing result).
	Fail string `yaml:"fail,omitempty"`

	// SettleMS delays the validator to exercise completion-order
	// independence.
	SettleMS int `yaml:"settle_ms,omitempty"`
}

// FieldErrorSpec is one scripted constraint failure.
type FieldErrorSpec struct {
	Field   string `yaml:"field"`
	Message string `yaml:"message"`
}

// Submit outcomes.
const (
	OutcomeOK    = "ok"    // submit succeeds
	OutcomeFail  = "fail"  // submit settles with success=false
	OutcomeError = "error" // submit returns an error (normalized by the runner)
	OutcomePanic = "panic" // submit panics (contained by the runner)
)

// SubmitSpec scripts a unit's submitter.
type SubmitSpec struct {
	// Outcome is one of ok, fail, error, panic. Defaults to ok.
	Outcome string `yaml:"outcome,omitempty"`

	// Error is the failure message for fail/error/panic outcomes.
	Error string `yaml:"error,omitempty"`

	// StatusCode is the transport status attached to a failed submit;
	// its class decides retryability in the report.
	StatusCode int `yaml:"status_code,omitempty"`

	// SettleMS delays the submitter.
	SettleMS int `yaml:"settle_ms,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML. Unknown fields are rejected so
// a typoed key fails loudly instead of silently scripting nothing.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Units) == 0 {
		return fmt.Errorf("scenario %s: at least one unit is required", s.Name)
	}

	seen := make(map[string]bool, len(s.Units))
	for _, u := range s.Units {
		if u.ID == "" {
			return fmt.Errorf("scenario %s: unit id is required", s.Name)
		}
		if seen[u.ID] {
			return fmt.Errorf("scenario %s: duplicate unit id %q", s.Name, u.ID)
		}
		seen[u.ID] = true

		if u.Submit != nil {
			switch u.Submit.Outcome {
			case "", OutcomeOK, OutcomeFail, OutcomeError, OutcomePanic:
			default:
				return fmt.Errorf("scenario %s: unit %s: unknown submit outcome %q",
					s.Name, u.ID, u.Submit.Outcome)
			}
		}
	}
	return nil
}

// registered reports whether the unit should be registered before the cycle.
func (u *UnitSpec) registered() bool {
	return u.Registered == nil || *u.Registered
}
