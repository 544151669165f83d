// Package form provides a concrete unit implementation: a form section whose
// payload is a tagged Go struct, validated with go-playground/validator and
// persisted through the SQLite section store on submit.
//
// The engine never sees any of this - a Section only meets it through the
// two capability functions in its Registration.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/draftline/draftline/internal/engine"
	"github.com/draftline/draftline/internal/store"
	"github.com/draftline/draftline/internal/unit"
)

// validate is shared across sections; the validator caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Section adapts one tagged struct to the engine's capability contract.
type Section struct {
	id          unit.ID
	displayName string
	store       *store.Store
	rev         atomic.Int64

	mu   sync.Mutex
	data any // pointer to a struct carrying `validate` tags
}

// NewSection creates a section over data, which must be a pointer to a
// struct with `validate` tags. Submitted payloads are written to st keyed by
// the section id.
func NewSection(id unit.ID, displayName string, data any, st *store.Store) *Section {
	return &Section{
		id:          id,
		displayName: displayName,
		store:       st,
		data:        data,
	}
}

// ID returns the section's unit id.
func (s *Section) ID() unit.ID {
	return s.id
}

// Registration returns the section's capability entry for the registry.
func (s *Section) Registration() unit.Registration {
	return unit.Registration{
		ID:          s.id,
		DisplayName: s.displayName,
		Validate:    s.Validate,
		Submit:      s.Submit,
	}
}

// Bind registers the section with the coordinator and returns the unbind
// func for the section's teardown. Unbinding does not clear the dirty flag;
// that mirrors the decoupled registry/dirty-set lifecycle.
func (s *Section) Bind(c *engine.Coordinator) func() {
	c.Register(s.Registration())
	return func() { c.Unregister(s.id) }
}

// Edit applies a mutation to the section's data and reports it dirty.
func (s *Section) Edit(c *engine.Coordinator, mutate func()) {
	s.mu.Lock()
	mutate()
	s.mu.Unlock()
	c.ReportDirty(s.id, true)
}

// Validate checks the section's data against its struct tags.
//
// Constraint violations come back as a failing ValidationResult; only a
// misuse of the validator itself (non-struct data) is returned as an error.
func (s *Section) Validate(ctx context.Context) (unit.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := validate.StructCtx(ctx, s.data)
	if err == nil {
		return unit.Valid(), nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return unit.ValidationResult{}, fmt.Errorf("validate section %s: %w", s.id, err)
	}

	errs := make([]unit.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, unit.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return unit.Invalid(errs...), nil
}

// Submit marshals the section's data and upserts it into the store.
// Transport failures are reported through the SubmitResult, never panicked.
func (s *Section) Submit(ctx context.Context) (unit.SubmitResult, error) {
	s.mu.Lock()
	payload, err := json.Marshal(s.data)
	s.mu.Unlock()
	if err != nil {
		return unit.SubmitResult{
			Success: false,
			UnitID:  s.id,
			Error:   fmt.Sprintf("encode payload: %v", err),
		}, nil
	}

	seq := s.rev.Add(1)
	if err := s.store.SaveSection(ctx, string(s.id), payload, seq); err != nil {
		return unit.SubmitResult{
			Success: false,
			UnitID:  s.id,
			Error:   err.Error(),
		}, nil
	}

	return unit.SubmitResult{
		Success: true,
		UnitID:  s.id,
		Data:    json.RawMessage(payload),
	}, nil
}

// fieldMessage renders one tag violation for display.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
