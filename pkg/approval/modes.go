// Package approval implements the Confirmation Broker: it carries a
// confirmation question from the orchestrator to a human and returns the
// decision before a per-request deadline. Classifying whether an action
// needs confirmation in the first place is the Permission Engine's job
// (pkg/policy); this package only carries the question once that
// classification has already been made.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hopper-project/core/pkg/policy"
)

// Request is the confirmation question carried from the Permission Engine's
// verdict to a human.
type Request struct {
	ToolName  string
	Principal string
	Risk      policy.RiskLevel
	Reason    string
	Arguments map[string]any
	CreatedAt time.Time
}

// Decision is the human's answer to a Request.
type Decision int

const (
	DecisionDeny Decision = iota
	DecisionAllow
)

// String returns the decision name.
func (d Decision) String() string {
	if d == DecisionAllow {
		return "approved"
	}
	return "rejected"
}

// CLIResolver returns a Resolver that prompts a human on out and reads a
// yes/no answer from in — the interactive mode's front-end. Any input other
// than a case-insensitive "y"/"yes" is treated as a rejection, matching the
// fail-closed default the Permission Engine uses for unclassified actions.
func CLIResolver(in io.Reader, out io.Writer) Resolver {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, req Request) (Decision, error) {
		fmt.Fprintf(out, "Confirm %s (risk=%s): %s\n", req.ToolName, req.Risk, req.Reason)
		fmt.Fprint(out, "Allow? [y/N] ")

		answered := make(chan string, 1)
		errc := make(chan error, 1)
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil {
				errc <- err
				return
			}
			answered <- line
		}()

		select {
		case <-ctx.Done():
			return DecisionDeny, ctx.Err()
		case err := <-errc:
			return DecisionDeny, err
		case line := <-answered:
			line = strings.ToLower(strings.TrimSpace(line))
			if line == "y" || line == "yes" {
				return DecisionAllow, nil
			}
			return DecisionDeny, nil
		}
	}
}

// AutoApproveResolver always approves; used only when the broker itself is
// not in BrokerAutoApprove mode but a caller still wants a no-prompt
// resolver (e.g. trusted batch jobs). The broker reports approvals from a
// Resolver as not auto-approved, so their audit entries carry
// auto_approved=false; only BrokerAutoApprove mode sets that flag.
func AutoApproveResolver() Resolver {
	return func(ctx context.Context, req Request) (Decision, error) {
		return DecisionAllow, nil
	}
}
