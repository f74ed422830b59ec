package tools

import (
	"testing"
	"time"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellToolAllowlistRejectsCommandNotListed(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: time.Second, AllowedCommands: []string{"echo"}})
	result, err := exec(map[string]any{"command": "ls -la"})
	require.Error(t, err)
	assert.Equal(t, sexpr.StatusFailed, result.Status)
}

func TestShellToolAllowlistPermitsListedCommand(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: 5 * time.Second, AllowedCommands: []string{"echo"}})
	result, err := exec(map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, sexpr.StatusComplete, result.Status)
}

func TestShellToolNoAllowlistPermitsAnyNonDenylistedCommand(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: 5 * time.Second})
	result, err := exec(map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, sexpr.StatusComplete, result.Status)
}

func TestShellToolDenylistAppliesEvenWhenAllowlisted(t *testing.T) {
	_, exec := NewShellTool(ShellConfig{Timeout: time.Second, AllowedCommands: []string{"rm", "echo"}})
	result, err := exec(map[string]any{"command": "rm -rf /tmp/x"})
	require.Error(t, err)
	assert.Equal(t, sexpr.StatusFailed, result.Status)
}

func TestDefaultAllowedCommandsIncludesExpectedSet(t *testing.T) {
	assert.Contains(t, DefaultAllowedCommands, "git")
	assert.Contains(t, DefaultAllowedCommands, "go")
	assert.NotContains(t, DefaultAllowedCommands, "rm")
}
