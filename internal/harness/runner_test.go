package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_PartialFailure(t *testing.T) {
	sc, err := Load("testdata/partial-failure.yaml")
	require.NoError(t, err)

	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, report.Saved)
	assert.Equal(t, "error", report.Status)
	assert.Equal(t, []string{"billing"}, report.DirtyAfter)
	require.Len(t, report.SubmissionErrors, 1)
	assert.Equal(t, "Server error", report.SubmissionErrors[0].Message)
	assert.True(t, report.SubmissionErrors[0].Retryable)
	assert.Equal(t, 1, report.SubmitCalls["profile"], "the sibling still submitted")
}

func TestRun_ValidationGateBlocksAllSubmits(t *testing.T) {
	sc, err := Load("testdata/validation-blocked.yaml")
	require.NoError(t, err)

	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, report.Saved)
	assert.Equal(t, "idle", report.Status)
	for id, calls := range report.SubmitCalls {
		assert.Zerof(t, calls, "unit %s must not submit when validation fails", id)
	}
	require.Len(t, report.ValidationErrors, 1)
	assert.Equal(t, "Name is required", report.ValidationErrors[0].Errors[0].Message)
}

func TestRun_UnregisteredDirtyUnit(t *testing.T) {
	sc, err := Parse([]byte(`
name: dangling
units:
  - id: live
    display_name: Live
    dirty: true
  - id: ghost
    display_name: Ghost
    dirty: true
    registered: false
`))
	require.NoError(t, err)

	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.True(t, report.Saved, "dangling dirty ids never block the cycle")
	assert.Equal(t, []string{"ghost"}, report.DirtyAfter)
	assert.Zero(t, report.ValidateCalls["ghost"])
	assert.Zero(t, report.SubmitCalls["ghost"])
}

func TestRun_PanicOutcomeIsContained(t *testing.T) {
	sc, err := Parse([]byte(`
name: panicking-sibling
units:
  - id: steady
    display_name: Steady
    dirty: true
  - id: bomb
    display_name: Bomb
    dirty: true
    submit:
      outcome: panic
      error: kaboom
`))
	require.NoError(t, err)

	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, report.Saved)
	assert.Equal(t, []string{"bomb"}, report.DirtyAfter, "the steady unit's save is kept")
	require.Len(t, report.SubmissionErrors, 1)
	assert.Contains(t, report.SubmissionErrors[0].Message, "kaboom")
}

func TestReport_TextRendering(t *testing.T) {
	sc, err := Load("testdata/partial-failure.yaml")
	require.NoError(t, err)

	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	text := report.Text()
	assert.Contains(t, text, "Scenario: partial-failure")
	assert.Contains(t, text, "Status:   error")
	assert.Contains(t, text, "billing (Billing): Server error [retryable]")
}
