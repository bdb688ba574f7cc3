package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSafeClassAutoAllows(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{ToolName: "list_files", Arguments: map[string]any{}})
	assert.True(t, v.Allow)
	assert.False(t, v.RequiresConfirmation)
	assert.Equal(t, RiskSafe, v.Risk)
}

func TestEvaluateRequiresConfirmationClass(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{ToolName: "write_file", Arguments: map[string]any{"path": "/tmp/notes.txt"}})
	require.True(t, v.Allow)
	assert.True(t, v.RequiresConfirmation)
	assert.Equal(t, RiskMedium, v.Risk)
}

func TestEvaluateUnknownToolDefaultsToMediumConfirmation(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{ToolName: "some_future_tool", Arguments: map[string]any{}})
	assert.True(t, v.Allow)
	assert.True(t, v.RequiresConfirmation)
	assert.Equal(t, RiskMedium, v.Risk)
}

func TestEvaluateBannedVerbAlwaysDenies(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{
		ToolName:  "run_command",
		Arguments: map[string]any{"command": "rm -rf /"},
	})
	assert.False(t, v.Allow)
	assert.Equal(t, RiskCritical, v.Risk)
	assert.False(t, v.RequiresConfirmation)
}

func TestEvaluateBannedVerbWordBoundary(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// "normal" should not match the banned verb "rm" as a substring.
	v := e.Evaluate(ToolCall{
		ToolName:  "run_command",
		Arguments: map[string]any{"command": "echo normal"},
	})
	assert.True(t, v.Allow)
}

func TestEvaluateProtectedDirectoryDeniesRead(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{
		ToolName:  "read_file",
		Arguments: map[string]any{"path": "/etc/shadow"},
	})
	assert.False(t, v.Allow)
	assert.Equal(t, RiskCritical, v.Risk)
}

func TestEvaluatePathTraversalDenied(t *testing.T) {
	e := NewEngine(DefaultConfig())
	v := e.Evaluate(ToolCall{
		ToolName:  "read_file",
		Arguments: map[string]any{"path": "/tmp/../etc/passwd"},
	})
	assert.False(t, v.Allow)
}

func TestEvaluateForbiddenClassAlwaysDenies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tools["delete_all"] = ToolRule{Class: ClassForbidden}
	e := NewEngine(cfg)
	v := e.Evaluate(ToolCall{ToolName: "delete_all", Arguments: map[string]any{"confirm": true}})
	assert.False(t, v.Allow)
	assert.Equal(t, RiskCritical, v.Risk)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	call := ToolCall{ToolName: "read_file", Arguments: map[string]any{"path": "/tmp/a.txt"}}
	v1 := e.Evaluate(call)
	v2 := e.Evaluate(call)
	assert.Equal(t, v1, v2)
}

func TestMaxRisk(t *testing.T) {
	assert.Equal(t, RiskHigh, Max(RiskLow, RiskHigh))
	assert.Equal(t, RiskCritical, Max(RiskCritical, RiskSafe))
}
