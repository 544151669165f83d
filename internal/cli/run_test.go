package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCommand_SuccessfulCycle(t *testing.T) {
	path := writeScenario(t, "clean.yaml", `
name: clean
units:
  - id: profile
    display_name: Profile
    dirty: true
`)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Scenario: clean")
	assert.Contains(t, out.String(), "Saved:    true")
}

func TestRunCommand_FailingCycleExitsOne(t *testing.T) {
	path := writeScenario(t, "fail.yaml", `
name: fail
units:
  - id: billing
    display_name: Billing
    dirty: true
    submit:
      outcome: fail
      error: Server error
      status_code: 500
`)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "Server error [retryable]")
}

func TestRunCommand_JSONOutput(t *testing.T) {
	path := writeScenario(t, "clean.yaml", `
name: clean
units:
  - id: profile
    display_name: Profile
    dirty: true
`)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--format", "json", "run", path})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scenario string `json:"scenario"`
			Saved    bool   `json:"saved"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "clean", resp.Data.Scenario)
	assert.True(t, resp.Data.Saved)
	assert.Equal(t, "success", resp.Data.Status)
}

func TestRunCommand_MissingScenario(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "does-not-exist.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), ErrCodeScenarioLoad)
}

func TestRunCommand_DeadlineFlag(t *testing.T) {
	path := writeScenario(t, "slow.yaml", `
name: slow
units:
  - id: sluggish
    display_name: Sluggish
    dirty: true
    submit:
      settle_ms: 500
`)

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "--deadline", "30ms", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "save deadline exceeded")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--format", "xml", "run", "anything.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
