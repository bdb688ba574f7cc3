package tool

import (
	"github.com/hopper-project/core/pkg/tool/builtin"
)

// approvalMiddleware routes every tool call through the registry's
// PermissionChecker (Permission Engine + Confirmation Broker) before the
// tool's Execute method ever runs. With no checker configured, calls pass
// straight through — callers that need enforcement must SetPermissionChecker.
func (r *Registry) approvalMiddleware() Middleware {
	return func(next Executor) Executor {
		return func(ctx *ExecutionContext) (*builtin.Result, error) {
			if r == nil || ctx == nil {
				return next(ctx)
			}
			r.mu.RLock()
			check := r.permissionCheck
			r.mu.RUnlock()
			if check == nil {
				return next(ctx)
			}

			execCtx := ctx.Context
			if execCtx == nil {
				execCtx = ctx.Context
			}
			if err := check(execCtx, ctx.ToolName, ctx.Params); err != nil {
				return &builtin.Result{Success: false, Error: err.Error()}, nil
			}
			return next(ctx)
		}
	}
}
