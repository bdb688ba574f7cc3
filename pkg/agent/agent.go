// Package agent implements the Agent Loop: the reason/act/observe cycle
// that drives a user utterance through the Permission → Confirmation →
// Tool Registry → Worker Pool → Audit pipeline and produces a final answer
// or a structured partial result, per spec.md §4.5.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hopper-project/core/pkg/hlog"
	"github.com/hopper-project/core/pkg/tool/builtin"
)

const (
	// DefaultMaxSteps bounds the loop's iteration count (spec.md §4.5).
	DefaultMaxSteps = 10
	// DefaultDeadline bounds the loop's wall-clock budget.
	DefaultDeadline = 30 * time.Second
)

// ErrPlannerUnreachable is the sentinel a Planner implementation must wrap
// (via fmt.Errorf("...: %w", ErrPlannerUnreachable)) to signal that the
// loop should fall back to the deterministic classifier instead of
// retrying the planner itself.
var ErrPlannerUnreachable = errors.New("agent: planner unreachable")

// Planner is the external collaborator that turns a prompt into raw
// planner text obeying the grammar in grammar.go. It is implemented by a
// worker-backed client in production and by a fixture in tests.
type Planner interface {
	Plan(ctx context.Context, prompt string) (string, error)
}

// ToolInvoker is the capability the loop is given by dependency injection —
// it has no idea the Tool Registry, Permission Engine, or Confirmation
// Broker exist behind it. Implemented by *pkg/tool.Registry.
type ToolInvoker interface {
	ExecuteWithContext(ctx context.Context, name string, params map[string]any) (*builtin.Result, error)
	ToOpenAIFunctions() []map[string]any
}

// HistoryMessage is one role-tagged line of prior conversation, as produced
// by the Context Store's format_history_for_prompt.
type HistoryMessage struct {
	Role    string
	Content string
}

// Observation is the outcome of one Action.
type Observation struct {
	Status   string // "success", "failure", "cancelled"
	Result   map[string]any
	Error    string
	Duration time.Duration
}

// StepTrace is one iteration of the loop: a thought, optionally an action
// and its observation.
type StepTrace struct {
	Thought     string
	Action      *Action
	Observation *Observation
}

// Outcome classifies how a Run terminated.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeIncomplete Outcome = "incomplete"
	OutcomeFailure    Outcome = "failure"
)

// Result is what Run returns: a terminal answer, or a partial trace with
// the reason it didn't reach one.
type Result struct {
	Outcome      Outcome
	Answer       string
	Trace        []StepTrace
	ErrorKind    string // "timeout", "max_iterations", "cancelled", "validation", "planner_error", ""
	ActionsTaken []string
}

// Stats are the loop's running counters, exposed via a read-only accessor.
type Stats struct {
	ActionsAttempted uint64
	ActionsSucceeded uint64
	ActionsFailed    uint64
	TotalThoughts    uint64
	LLMFailures      uint64
}

// FallbackClassifier produces a minimal rule-based answer when the planner
// is unreachable, so the loop can still return something coherent instead
// of failing outright (spec.md §8 scenario S6).
type FallbackClassifier func(utterance string) string

// Loop drives the reason/act/observe cycle.
type Loop struct {
	planner  Planner
	invoker  ToolInvoker
	fallback FallbackClassifier

	maxSteps int
	deadline time.Duration
	tracer   trace.Tracer
	logger   *hlog.Logger
	reasoner *hlog.ReasoningLogger

	actionsAttempted atomic.Uint64
	actionsSucceeded atomic.Uint64
	actionsFailed    atomic.Uint64
	totalThoughts    atomic.Uint64
	llmFailures      atomic.Uint64
}

// Option configures a Loop at construction.
type Option func(*Loop)

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option { return func(l *Loop) { l.maxSteps = n } }

// WithDeadline overrides DefaultDeadline.
func WithDeadline(d time.Duration) Option { return func(l *Loop) { l.deadline = d } }

// WithTracer attaches an OpenTelemetry tracer; spans are created per step
// when set.
func WithTracer(t trace.Tracer) Option { return func(l *Loop) { l.tracer = t } }

// WithFallbackClassifier overrides DefaultFallbackClassifier.
func WithFallbackClassifier(f FallbackClassifier) Option {
	return func(l *Loop) { l.fallback = f }
}

// WithLogger attaches a structured event logger; when set, the loop emits a
// CategoryAgentLoop event for each executed action, for a final answer and
// for a planner error, and a CategoryRetry event when the planner is
// unreachable. Steps whose planner output fails to parse emit no event.
func WithLogger(lg *hlog.Logger) Option { return func(l *Loop) { l.logger = lg } }

// WithReasoningLogger attaches a reasoning-block logger; each step's raw
// thought (including the fallback-classifier path) is appended to it when
// set.
func WithReasoningLogger(rl *hlog.ReasoningLogger) Option {
	return func(l *Loop) { l.reasoner = rl }
}

// New constructs a Loop.
func New(planner Planner, invoker ToolInvoker, opts ...Option) *Loop {
	l := &Loop{
		planner:  planner,
		invoker:  invoker,
		fallback: DefaultFallbackClassifier,
		maxSteps: DefaultMaxSteps,
		deadline: DefaultDeadline,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats snapshots the loop's running counters.
func (l *Loop) Stats() Stats {
	return Stats{
		ActionsAttempted: l.actionsAttempted.Load(),
		ActionsSucceeded: l.actionsSucceeded.Load(),
		ActionsFailed:    l.actionsFailed.Load(),
		TotalThoughts:    l.totalThoughts.Load(),
		LLMFailures:      l.llmFailures.Load(),
	}
}

// Run executes the loop for one utterance, observing cancellation between
// every step and around every tool call.
func (l *Loop) Run(ctx context.Context, principal, utterance string, history []HistoryMessage) *Result {
	result := l.run(ctx, principal, utterance, history)
	recordOutcome(result)
	return result
}

// principalContextKey carries the requesting principal alongside ctx so a
// ToolInvoker's own permission-checking hook can identify who is calling
// without the Agent Loop having to know that hook exists.
type principalContextKey struct{}

// PrincipalFromContext extracts the principal set by Run, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalContextKey{}).(string)
	return p, ok
}

func (l *Loop) run(ctx context.Context, principal, utterance string, history []HistoryMessage) *Result {
	if utterance == "" {
		return &Result{Outcome: OutcomeFailure, ErrorKind: "validation"}
	}

	ctx = context.WithValue(ctx, principalContextKey{}, principal)
	deadline := time.Now().Add(l.deadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var steps []StepTrace
	var actionsTaken []string
	catalog := l.invoker.ToOpenAIFunctions()

	for step := 1; step <= l.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return &Result{Outcome: OutcomeIncomplete, Trace: steps, ActionsTaken: actionsTaken, ErrorKind: cancelOrTimeout(err)}
		}

		stepCtx, span := l.startSpan(ctx, step)
		prompt := buildPrompt(utterance, history, steps, catalog)

		raw, err := l.planner.Plan(stepCtx, prompt)
		if err != nil {
			l.llmFailures.Add(1)
			metricLLMFailures.Inc()
			l.endSpan(span, err)
			if errors.Is(err, ErrPlannerUnreachable) {
				answer := l.fallback(utterance)
				thought := "planner unreachable; using fallback classifier"
				steps = append(steps, StepTrace{
					Thought: thought,
					Action:  &Action{ToolName: "fallback_generic"},
					Observation: &Observation{
						Status: "success",
						Result: map[string]any{"answer": answer},
					},
				})
				actionsTaken = append(actionsTaken, "fallback_generic")
				l.logReasoning(principal, thought)
				l.logEvent(hlog.LevelWarn, hlog.CategoryRetry, "planner_unreachable", principal, map[string]any{"step": step})
				return &Result{Outcome: OutcomeSuccess, Answer: answer, Trace: steps, ActionsTaken: actionsTaken}
			}
			l.logEvent(hlog.LevelError, hlog.CategoryAgentLoop, "planner_error", principal, map[string]any{"step": step, "error": err.Error()})
			return &Result{Outcome: OutcomeFailure, Trace: steps, ActionsTaken: actionsTaken, ErrorKind: "planner_error"}
		}

		resp, parseErr := ParseResponse(raw)
		if parseErr != nil {
			steps = append(steps, StepTrace{
				Observation: &Observation{Status: "failure", Error: parseErr.Error()},
			})
			l.endSpan(span, parseErr)
			continue
		}
		l.totalThoughts.Add(1)
		metricThoughts.Inc()

		l.logReasoning(principal, resp.Thought)

		if resp.IsFinal {
			steps = append(steps, StepTrace{Thought: resp.Thought})
			l.endSpan(span, nil)
			l.logEvent(hlog.LevelInfo, hlog.CategoryAgentLoop, "final_answer", principal, map[string]any{"step": step})
			return &Result{Outcome: OutcomeSuccess, Answer: resp.Answer, Trace: steps, ActionsTaken: actionsTaken}
		}

		obs := l.invoke(stepCtx, resp.Action)
		steps = append(steps, StepTrace{Thought: resp.Thought, Action: resp.Action, Observation: obs})
		actionsTaken = append(actionsTaken, resp.Action.ToolName)
		l.endSpan(span, nil)
		l.logEvent(hlog.LevelInfo, hlog.CategoryAgentLoop, "action", principal, map[string]any{
			"step": step, "tool": resp.Action.ToolName, "status": obs.Status,
		})

		if time.Now().After(deadline) {
			return &Result{Outcome: OutcomeIncomplete, Trace: steps, ActionsTaken: actionsTaken, ErrorKind: "timeout"}
		}
	}

	return &Result{Outcome: OutcomeIncomplete, Trace: steps, ActionsTaken: actionsTaken, ErrorKind: "max_iterations"}
}

func (l *Loop) invoke(ctx context.Context, action *Action) *Observation {
	l.actionsAttempted.Add(1)
	metricActionsAttempted.Inc()
	start := time.Now()
	result, err := l.invoker.ExecuteWithContext(ctx, action.ToolName, action.Arguments)
	duration := time.Since(start)

	if ctx.Err() != nil {
		l.actionsFailed.Add(1)
		metricActionsFailed.Inc()
		return &Observation{Status: "cancelled", Error: ctx.Err().Error(), Duration: duration}
	}
	if err != nil {
		l.actionsFailed.Add(1)
		metricActionsFailed.Inc()
		return &Observation{Status: "failure", Error: err.Error(), Duration: duration}
	}
	if result == nil || !result.Success {
		l.actionsFailed.Add(1)
		metricActionsFailed.Inc()
		errMsg := "handler returned no result"
		if result != nil {
			errMsg = result.Error
		}
		return &Observation{Status: "failure", Error: errMsg, Duration: duration}
	}
	l.actionsSucceeded.Add(1)
	metricActionsSucceeded.Inc()
	return &Observation{Status: "success", Result: result.Data, Duration: duration}
}

// logEvent is a no-op when no logger was attached via WithLogger.
func (l *Loop) logEvent(level hlog.Level, category hlog.Category, eventType, sessionID string, details map[string]any) {
	if l.logger == nil {
		return
	}
	_ = l.logger.Log(hlog.Event{
		Level:     level,
		Category:  category,
		EventType: eventType,
		SessionID: sessionID,
		Details:   details,
	})
}

// logReasoning is a no-op when no reasoner was attached via
// WithReasoningLogger, or when the step produced no thought text.
func (l *Loop) logReasoning(sessionID, thought string) {
	if l.reasoner == nil || thought == "" {
		return
	}
	_ = l.reasoner.WriteBlock("planner", sessionID, thought)
}

func cancelOrTimeout(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "cancelled"
}

func (l *Loop) startSpan(ctx context.Context, step int) (context.Context, trace.Span) {
	if l.tracer == nil {
		return ctx, nil
	}
	spanCtx, span := l.tracer.Start(ctx, "agent.step", trace.WithAttributes(attribute.Int("agent.step", step)))
	return spanCtx, span
}

func (l *Loop) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func buildPrompt(utterance string, history []HistoryMessage, steps []StepTrace, catalog []map[string]any) string {
	var b strings.Builder
	writeLine := func(s string) { b.WriteString(s); b.WriteByte('\n') }

	writeLine("Task: " + utterance)
	writeLine(fmt.Sprintf("Tools available: %d", len(catalog)))
	for _, msg := range history {
		writeLine(fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	for _, st := range steps {
		if st.Thought != "" {
			writeLine("Thought: " + st.Thought)
		}
		if st.Action != nil && st.Observation != nil {
			writeLine(fmt.Sprintf("Action: %s -> %s", st.Action.ToolName, st.Observation.Status))
		}
	}
	writeLine("Respond with exactly one Thought: block followed by either an Action: line or an Answer: block.")
	return b.String()
}
