package harness

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/draftline/draftline/internal/engine"
	"github.com/draftline/draftline/internal/notify"
	"github.com/draftline/draftline/internal/unit"
)

// Report captures the observable outcome of one save cycle in a canonical,
// order-independent form: every list is sorted by unit id, so the same
// scenario produces byte-identical JSON regardless of which unit's call
// settled first.
type Report struct {
	Scenario         string                   `json:"scenario"`
	Saved            bool                     `json:"saved"`
	Status           string                   `json:"status"`
	DirtyAfter       []string                 `json:"dirty_after"`
	ValidationErrors []unit.ValidationSummary `json:"validation_errors"`
	SubmissionErrors []notify.SubmissionError `json:"submission_errors"`
	NetworkError     string                   `json:"network_error,omitempty"`
	Notifications    []string                 `json:"notifications"`
	ValidateCalls    map[string]int           `json:"validate_calls"`
	SubmitCalls      map[string]int           `json:"submit_calls"`
}

// buildReport snapshots the coordinator's post-cycle state.
func buildReport(sc *Scenario, coord *engine.Coordinator, scripted []*scriptedUnit, saved bool) *Report {
	r := &Report{
		Scenario:         sc.Name,
		Saved:            saved,
		Status:           string(coord.Status()),
		DirtyAfter:       []string{},
		ValidationErrors: coord.ValidationErrors(),
		SubmissionErrors: coord.SubmissionErrors(),
		Notifications:    []string{},
		ValidateCalls:    make(map[string]int, len(scripted)),
		SubmitCalls:      make(map[string]int, len(scripted)),
	}
	if r.ValidationErrors == nil {
		r.ValidationErrors = []unit.ValidationSummary{}
	}
	if r.SubmissionErrors == nil {
		r.SubmissionErrors = []notify.SubmissionError{}
	}

	for _, id := range coord.DirtyUnitIDs() {
		r.DirtyAfter = append(r.DirtyAfter, string(id))
	}
	sort.Strings(r.DirtyAfter)

	if msg, ok := coord.NetworkError(); ok {
		r.NetworkError = msg
	}
	for _, n := range coord.Notifications() {
		r.Notifications = append(r.Notifications, fmt.Sprintf("%s: %s", n.Level, n.Message))
	}

	for _, su := range scripted {
		r.ValidateCalls[su.spec.ID] = int(su.validateCalls.Load())
		r.SubmitCalls[su.spec.ID] = int(su.submitCalls.Load())
	}
	return r
}

// JSON renders the report as indented canonical JSON with a trailing
// newline. Map keys are sorted by encoding/json, so the output is stable.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Text renders the report for terminal output.
func (r *Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "Saved:    %v\n", r.Saved)
	fmt.Fprintf(&b, "Status:   %s\n", r.Status)

	if len(r.DirtyAfter) == 0 {
		fmt.Fprintln(&b, "Dirty after: (none)")
	} else {
		fmt.Fprintf(&b, "Dirty after: %s\n", strings.Join(r.DirtyAfter, ", "))
	}

	if len(r.ValidationErrors) > 0 {
		fmt.Fprintln(&b, "Validation errors:")
		for _, v := range r.ValidationErrors {
			for _, fe := range v.Errors {
				field := fe.Field
				if field == "" {
					field = "-"
				}
				fmt.Fprintf(&b, "  %s (%s): %s: %s\n", v.UnitID, v.DisplayName, field, fe.Message)
			}
		}
	}

	if len(r.SubmissionErrors) > 0 {
		fmt.Fprintln(&b, "Submission errors:")
		for _, e := range r.SubmissionErrors {
			retry := "not retryable"
			if e.Retryable {
				retry = "retryable"
			}
			fmt.Fprintf(&b, "  %s (%s): %s [%s]\n", e.UnitID, e.DisplayName, e.Message, retry)
		}
	}

	if r.NetworkError != "" {
		fmt.Fprintf(&b, "Network error: %s\n", r.NetworkError)
	}

	for _, n := range r.Notifications {
		fmt.Fprintf(&b, "Notification: %s\n", n)
	}

	return b.String()
}
