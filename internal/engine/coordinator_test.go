package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftline/draftline/internal/testutil"
	"github.com/draftline/draftline/internal/unit"
)

func TestSaveAll_CleanOnSuccess(t *testing.T) {
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	u2 := &testutil.Unit{ID: "u2", DisplayName: "Billing"}
	c.Register(u1.Registration())
	c.Register(u2.Registration())
	c.ReportDirty("u1", true)
	c.ReportDirty("u2", true)

	saved := c.SaveAll(context.Background())

	require.True(t, saved)
	assert.Empty(t, c.DirtyUnitIDs(), "every dirty registered unit should be clean after success")
	assert.Equal(t, StateSuccess, c.Status())
	assert.False(t, c.Alerts().HasErrors())

	notifications := c.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "All changes saved", notifications[0].Message)
}

func TestSaveAll_PartialFailureRetainsOnlyFailed(t *testing.T) {
	// Concrete scenario: u1 valid + submit succeeds, u2 valid + submit
	// returns a server error.
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	u2 := &testutil.Unit{ID: "u2", DisplayName: "Billing", SubmitFailure: "Server error", StatusCode: 500}
	c.Register(u1.Registration())
	c.Register(u2.Registration())
	c.ReportDirty("u1", true)
	c.ReportDirty("u2", true)

	saved := c.SaveAll(context.Background())

	require.False(t, saved)
	assert.Equal(t, StateError, c.Status())
	assert.Equal(t, []unit.ID{"u2"}, c.DirtyUnitIDs(), "only the failed unit stays dirty")

	errs := c.SubmissionErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, unit.ID("u2"), errs[0].UnitID)
	assert.Equal(t, "Billing", errs[0].DisplayName)
	assert.Equal(t, "Server error", errs[0].Message)
	assert.True(t, errs[0].Retryable, "5xx failures are retryable")

	assert.Empty(t, c.ValidationErrors(), "validation and submission errors are mutually exclusive")
	assert.Empty(t, c.Notifications(), "no success notification on failure")
}

func TestSaveAll_ValidationGate(t *testing.T) {
	// Concrete scenario: one invalid unit blocks submission for everyone.
	c := New()
	invalid := &testutil.Unit{
		ID:          "contact",
		DisplayName: "Contact",
		FieldErrors: []unit.FieldError{{Field: "name", Message: "Name is required"}},
	}
	ok := &testutil.Unit{ID: "profile", DisplayName: "Profile"}
	c.Register(invalid.Registration())
	c.Register(ok.Registration())
	c.ReportDirty("contact", true)
	c.ReportDirty("profile", true)

	saved := c.SaveAll(context.Background())

	require.False(t, saved)
	assert.Zero(t, invalid.SubmitCalls(), "no submit may run when validation fails")
	assert.Zero(t, ok.SubmitCalls(), "no submit may run when validation fails")
	assert.Len(t, c.DirtyUnitIDs(), 2, "dirty set untouched on validation failure")
	assert.Equal(t, StateIdle, c.Status())

	summaries := c.ValidationErrors()
	require.Len(t, summaries, 1)
	assert.Equal(t, unit.ID("contact"), summaries[0].UnitID)
	require.Len(t, summaries[0].Errors, 1)
	assert.Equal(t, unit.FieldError{Field: "name", Message: "Name is required"}, summaries[0].Errors[0])
	assert.Empty(t, c.SubmissionErrors())
}

func TestSaveAll_DirtyUnregisteredIsSkipped(t *testing.T) {
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	c.Register(u1.Registration())
	c.ReportDirty("u1", true)
	c.ReportDirty("ghost", true) // never registered

	saved := c.SaveAll(context.Background())

	require.True(t, saved, "the dangling id must not block the cycle")
	assert.Equal(t, []unit.ID{"ghost"}, c.DirtyUnitIDs(), "dangling id stays dirty until explicitly cleaned")
	assert.Equal(t, 1, u1.ValidateCalls())
	assert.Equal(t, 1, u1.SubmitCalls())
}

func TestSaveAll_UnregisterLeavesDirtyFlag(t *testing.T) {
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	c.Register(u1.Registration())
	c.ReportDirty("u1", true)

	c.Unregister("u1")

	assert.True(t, c.IsDirty(), "dirty membership outlives registration")
	saved := c.SaveAll(context.Background())
	assert.True(t, saved)
	assert.Zero(t, u1.ValidateCalls())
}

func TestSaveAll_NoDirtyUnits(t *testing.T) {
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	c.Register(u1.Registration())

	saved := c.SaveAll(context.Background())

	assert.True(t, saved)
	assert.Zero(t, u1.ValidateCalls(), "clean units are not validated")
	assert.Zero(t, u1.SubmitCalls())
}

func TestSaveAll_ReregisterReplacesCapabilities(t *testing.T) {
	c := New()
	failing := &testutil.Unit{ID: "u1", DisplayName: "Profile", SubmitFailure: "boom"}
	c.Register(failing.Registration())
	c.ReportDirty("u1", true)

	// Re-registering the same id swaps in the new capabilities.
	working := &testutil.Unit{ID: "u1", DisplayName: "Profile v2"}
	c.Register(working.Registration())

	saved := c.SaveAll(context.Background())

	assert.True(t, saved)
	assert.Zero(t, failing.SubmitCalls())
	assert.Equal(t, 1, working.SubmitCalls())
}

func TestSaveAll_RejectsConcurrentCycle(t *testing.T) {
	c := New()
	slow := &testutil.Unit{ID: "slow", DisplayName: "Slow", SubmitDelay: 200 * time.Millisecond}
	c.Register(slow.Registration())
	c.ReportDirty("slow", true)

	first := make(chan bool)
	go func() {
		first <- c.SaveAll(context.Background())
	}()

	// Wait until the first cycle is past validation and into submission.
	require.Eventually(t, func() bool {
		return c.Status() == StateSubmitting
	}, time.Second, time.Millisecond)

	assert.False(t, c.SaveAll(context.Background()), "second cycle must be rejected while one is in flight")

	select {
	case saved := <-first:
		assert.True(t, saved, "first cycle is unaffected by the rejected call")
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not finish")
	}
}

func TestSaveAll_IsValidatingWindow(t *testing.T) {
	c := New()

	// The validator itself observes the coordinator state mid-phase.
	var sawValidating bool
	probe := unit.Registration{
		ID:          "probe",
		DisplayName: "Probe",
		Validate: func(ctx context.Context) (unit.ValidationResult, error) {
			sawValidating = c.IsValidating()
			return unit.Valid(), nil
		},
		Submit: func(ctx context.Context) (unit.SubmitResult, error) {
			return unit.SubmitResult{Success: true, UnitID: "probe"}, nil
		},
	}
	c.Register(probe)
	c.ReportDirty("probe", true)

	c.SaveAll(context.Background())

	assert.True(t, sawValidating, "IsValidating should hold while validators run")
	assert.False(t, c.IsValidating(), "IsValidating clears once every validator settled")
}

func TestSaveAll_ClearsPriorErrors(t *testing.T) {
	c := New()
	u1 := &testutil.Unit{ID: "u1", DisplayName: "Profile", SubmitFailure: "boom"}
	c.Register(u1.Registration())
	c.ReportDirty("u1", true)

	require.False(t, c.SaveAll(context.Background()))
	require.NotEmpty(t, c.SubmissionErrors())

	// Fix the unit and retry: prior errors must be gone.
	fixed := &testutil.Unit{ID: "u1", DisplayName: "Profile"}
	c.Register(fixed.Registration())

	require.True(t, c.SaveAll(context.Background()))
	assert.Empty(t, c.SubmissionErrors())
	assert.False(t, c.Alerts().HasErrors())
}

func TestSaveAll_DeadlineSynthesizesFailures(t *testing.T) {
	c := New(WithSaveDeadline(50 * time.Millisecond))
	fast := &testutil.Unit{ID: "fast", DisplayName: "Fast"}
	stuck := &testutil.Unit{ID: "stuck", DisplayName: "Stuck", SubmitDelay: 5 * time.Second}
	c.Register(fast.Registration())
	c.Register(stuck.Registration())
	c.ReportDirty("fast", true)
	c.ReportDirty("stuck", true)

	start := time.Now()
	saved := c.SaveAll(context.Background())

	require.False(t, saved)
	assert.Less(t, time.Since(start), 2*time.Second, "deadline must bound the fan-in wait")
	assert.Equal(t, []unit.ID{"stuck"}, c.DirtyUnitIDs(), "the fast unit's success is kept")

	errs := c.SubmissionErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, unit.ID("stuck"), errs[0].UnitID)
	assert.Equal(t, "save deadline exceeded", errs[0].Message)
	assert.True(t, errs[0].Retryable)
}

func TestSaveAll_NonRetryableClientRejection(t *testing.T) {
	c := New()
	u := &testutil.Unit{ID: "u1", DisplayName: "Profile", SubmitFailure: "invalid payload", StatusCode: 422}
	c.Register(u.Registration())
	c.ReportDirty("u1", true)

	require.False(t, c.SaveAll(context.Background()))

	errs := c.SubmissionErrors()
	require.Len(t, errs, 1)
	assert.False(t, errs[0].Retryable, "4xx rejections are not retryable")
}

func TestCoordinator_ReportDirtyTransitions(t *testing.T) {
	c := New()

	c.ReportDirty("u1", true)
	assert.True(t, c.IsDirty())

	c.ReportDirty("u1", false)
	assert.False(t, c.IsDirty())
}

func TestCoordinator_ClearErrorsForUnit(t *testing.T) {
	c := New()
	a := &testutil.Unit{ID: "a", DisplayName: "A", SubmitFailure: "boom"}
	b := &testutil.Unit{ID: "b", DisplayName: "B", SubmitFailure: "boom"}
	c.Register(a.Registration())
	c.Register(b.Registration())
	c.ReportDirty("a", true)
	c.ReportDirty("b", true)

	require.False(t, c.SaveAll(context.Background()))
	require.Len(t, c.SubmissionErrors(), 2)

	c.ClearErrorsForUnit("a")

	errs := c.SubmissionErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, unit.ID("b"), errs[0].UnitID)
}
