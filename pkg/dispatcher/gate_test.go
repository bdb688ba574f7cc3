package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/approval"
	"github.com/hopper-project/core/pkg/audit"
	"github.com/hopper-project/core/pkg/policy"
	"github.com/hopper-project/core/pkg/tool/builtin"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	auditLog, err := audit.NewLog(t.TempDir())
	require.NoError(t, err)
	return &Gate{
		Engine:  policy.NewEngine(policy.DefaultConfig()),
		Broker:  approval.NewBroker(approval.BrokerInteractive, 0),
		Audit:   auditLog,
		Resolve: approval.AutoApproveResolver(),
	}
}

func TestGateCheckAllowsSafeToolWithoutConfirmation(t *testing.T) {
	g := newTestGate(t)
	err := g.Check(t.Context(), "alice", policy.ToolCall{
		Principal: "alice",
		ToolName:  "list_files",
		Arguments: map[string]any{},
	})
	assert.NoError(t, err)
}

func TestGateCheckDeniesBannedVerb(t *testing.T) {
	g := newTestGate(t)
	err := g.Check(t.Context(), "alice", policy.ToolCall{
		Principal: "alice",
		ToolName:  "run_command",
		Arguments: map[string]any{"command": "rm -rf /"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestGateCheckResolvesConfirmationViaResolver(t *testing.T) {
	g := newTestGate(t)
	err := g.Check(t.Context(), "alice", policy.ToolCall{
		Principal: "alice",
		ToolName:  "write_file",
		Arguments: map[string]any{"path": "/tmp/notes.txt"},
	})
	assert.NoError(t, err)
}

func TestGateCheckPropagatesConfirmationRejection(t *testing.T) {
	g := newTestGate(t)
	g.Resolve = func(ctx context.Context, req approval.Request) (approval.Decision, error) {
		return approval.DecisionDeny, nil
	}
	err := g.Check(t.Context(), "alice", policy.ToolCall{
		Principal: "alice",
		ToolName:  "write_file",
		Arguments: map[string]any{"path": "/tmp/notes.txt"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfirmationRejected))
}

// TestGatePermissionCheckerRunsThroughAgentLoop exercises PermissionChecker
// the way the Tool Registry actually invokes it: via a ToolInvoker call
// made from inside a running Loop, so the principal the Loop stashed in
// ctx via agent.PrincipalFromContext is what PermissionChecker recovers.
func TestGatePermissionCheckerRunsThroughAgentLoop(t *testing.T) {
	g := newTestGate(t)
	checker := g.PermissionChecker()

	invoker := &recordingInvoker{checker: checker}
	loop := agent.New(fixedPlanner{response: "Thought: listing\nAction: list_files()"}, invoker)
	result := loop.Run(t.Context(), "bob", "list the files", nil)

	require.NotEmpty(t, result.Trace)
	assert.NoError(t, invoker.lastErr)
}

type fixedPlanner struct{ response string }

func (p fixedPlanner) Plan(ctx context.Context, prompt string) (string, error) {
	return p.response, nil
}

type recordingInvoker struct {
	checker func(ctx context.Context, toolName string, params map[string]any) error
	lastErr error
}

func (r *recordingInvoker) ExecuteWithContext(ctx context.Context, name string, params map[string]any) (*builtin.Result, error) {
	r.lastErr = r.checker(ctx, name, params)
	if r.lastErr != nil {
		return nil, r.lastErr
	}
	return &builtin.Result{Success: true}, nil
}

func (r *recordingInvoker) ToOpenAIFunctions() []map[string]any { return nil }
