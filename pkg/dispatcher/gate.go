package dispatcher

import (
	"context"
	"time"

	"github.com/hopper-project/core/pkg/agent"
	"github.com/hopper-project/core/pkg/approval"
	"github.com/hopper-project/core/pkg/audit"
	perrors "github.com/hopper-project/core/pkg/errors"
	"github.com/hopper-project/core/pkg/policy"
)

// Gate runs one tool call through the Permission Engine and, when required,
// the Confirmation Broker, writing a single audit entry for the outcome. It
// is the shared security path used both by the Tool Registry's
// PermissionChecker hook and by the /exec route, which calls the executor
// worker directly rather than through the registry.
type Gate struct {
	Engine  *policy.Engine
	Broker  *approval.Broker
	Audit   *audit.Log
	Resolve approval.Resolver
}

// Check evaluates call, resolves confirmation if the verdict requires it,
// and records the decision. It returns nil when the call may proceed.
func (g *Gate) Check(ctx context.Context, sessionID string, call policy.ToolCall) error {
	start := time.Now()
	verdict := g.Engine.Evaluate(call)

	entry := audit.Entry{
		Principal: call.Principal,
		SessionID: sessionID,
		ToolName:  call.ToolName,
		Params:    call.Arguments,
		RiskLevel: string(verdict.Risk),
	}

	if !verdict.Allow {
		entry.Decision = "forbidden"
		entry.Success = false
		entry.Error = verdict.Reason
		entry.DurationMS = time.Since(start).Milliseconds()
		g.record(entry)
		return perrors.Wrap(ErrPermissionDenied, perrors.ErrCodePermissionDenied, verdict.Reason).
			WithContext("tool", call.ToolName).
			WithContext("principal", call.Principal)
	}

	if !verdict.RequiresConfirmation {
		entry.Decision = "safe"
		entry.Success = true
		entry.DurationMS = time.Since(start).Milliseconds()
		g.record(entry)
		return nil
	}

	req := approval.Request{
		ToolName:  call.ToolName,
		Principal: call.Principal,
		Risk:      verdict.Risk,
		Reason:    verdict.Reason,
		Arguments: call.Arguments,
		CreatedAt: time.Now(),
	}
	decision, autoApproved, err := g.Broker.RequestConfirmation(ctx, call.Principal, call.ToolName, req, g.Resolve)
	entry.AutoApproved = autoApproved
	entry.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		entry.Decision = "rejected"
		entry.Success = false
		entry.Error = err.Error()
		g.record(entry)
		return perrors.Wrap(err, perrors.ErrCodeConfirmationTimeout, "confirmation request failed").
			WithContext("tool", call.ToolName).
			WithRetryable(true)
	}
	if decision != approval.DecisionAllow {
		entry.Decision = "rejected"
		entry.Success = false
		g.record(entry)
		return perrors.Wrap(ErrConfirmationRejected, perrors.ErrCodeConfirmationReject, "confirmation rejected").
			WithContext("tool", call.ToolName).
			WithContext("principal", call.Principal)
	}

	entry.Decision = "confirmed"
	entry.Success = true
	g.record(entry)
	return nil
}

// PermissionChecker adapts Gate to the shape pkg/tool.Registry expects, so
// the registry calls through the same Permission → Confirmation path every
// other ingress route uses. The principal doubles as the audit session ID,
// matching the Context Store's per-principal session model.
func (g *Gate) PermissionChecker() func(ctx context.Context, toolName string, params map[string]any) error {
	return func(ctx context.Context, toolName string, params map[string]any) error {
		principal, _ := agent.PrincipalFromContext(ctx)
		return g.Check(ctx, principal, policy.ToolCall{Principal: principal, ToolName: toolName, Arguments: params})
	}
}

func (g *Gate) record(e audit.Entry) {
	if g.Audit == nil {
		return
	}
	_ = g.Audit.Append(e)
}
