package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopper-project/core/pkg/tool/builtin"
)

// scriptedPlanner replays a fixed sequence of raw planner responses, one per
// call to Plan, so a test can drive the loop through a known trajectory.
type scriptedPlanner struct {
	responses []string
	err       error
	calls     int
}

func (p *scriptedPlanner) Plan(ctx context.Context, prompt string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.calls >= len(p.responses) {
		return "", fmt.Errorf("scriptedPlanner: no more responses")
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

// stubInvoker records every ExecuteWithContext call and returns a fixed
// result, so the loop's tool-invocation side effects can be asserted on.
type stubInvoker struct {
	result *builtin.Result
	err    error
	calls  []string
}

func (s *stubInvoker) ExecuteWithContext(ctx context.Context, name string, params map[string]any) (*builtin.Result, error) {
	s.calls = append(s.calls, name)
	return s.result, s.err
}

func (s *stubInvoker) ToOpenAIFunctions() []map[string]any {
	return []map[string]any{{"name": "list_files"}}
}

func TestRunRejectsEmptyUtterance(t *testing.T) {
	l := New(&scriptedPlanner{}, &stubInvoker{})
	res := l.Run(context.Background(), "alice", "", nil)
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, "validation", res.ErrorKind)
}

func TestRunReturnsAnswerOnFirstStep(t *testing.T) {
	planner := &scriptedPlanner{responses: []string{
		"Thought: I already know this.\nAnswer: 42",
	}}
	l := New(planner, &stubInvoker{})
	res := l.Run(context.Background(), "alice", "what is the answer", nil)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "42", res.Answer)
	assert.Empty(t, res.ActionsTaken)
}

func TestRunInvokesToolThenAnswers(t *testing.T) {
	planner := &scriptedPlanner{responses: []string{
		`Thought: need to list files.` + "\n" + `Action: list_files(path="/tmp")`,
		"Thought: got the listing.\nAnswer: there are 3 files",
	}}
	invoker := &stubInvoker{result: &builtin.Result{Success: true, Data: map[string]any{"count": 3}}}
	l := New(planner, invoker)

	res := l.Run(context.Background(), "alice", "list my files", nil)
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "there are 3 files", res.Answer)
	assert.Equal(t, []string{"list_files"}, res.ActionsTaken)
	assert.Equal(t, []string{"list_files"}, invoker.calls)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "success", res.Trace[0].Observation.Status)
}

func TestRunFallsBackWhenPlannerUnreachable(t *testing.T) {
	planner := &scriptedPlanner{err: fmt.Errorf("dial tcp: %w", ErrPlannerUnreachable)}
	l := New(planner, &stubInvoker{})

	res := l.Run(context.Background(), "alice", "send an email", nil)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, []string{"fallback_generic"}, res.ActionsTaken)
	assert.NotEmpty(t, res.Answer)
	assert.Equal(t, uint64(1), l.Stats().LLMFailures)
}

func TestRunReturnsFailureOnOtherPlannerError(t *testing.T) {
	planner := &scriptedPlanner{err: fmt.Errorf("internal planner fault")}
	l := New(planner, &stubInvoker{})

	res := l.Run(context.Background(), "alice", "do something", nil)
	assert.Equal(t, OutcomeFailure, res.Outcome)
	assert.Equal(t, "planner_error", res.ErrorKind)
}

func TestRunContinuesPastMalformedResponse(t *testing.T) {
	planner := &scriptedPlanner{responses: []string{
		"this has neither Action nor Answer",
		"Thought: retrying.\nAnswer: recovered",
	}}
	l := New(planner, &stubInvoker{})

	res := l.Run(context.Background(), "alice", "do something", nil)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "recovered", res.Answer)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "failure", res.Trace[0].Observation.Status)
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	responses := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		responses = append(responses, `Thought: still working.`+"\n"+`Action: list_files(path="/tmp")`)
	}
	planner := &scriptedPlanner{responses: responses}
	invoker := &stubInvoker{result: &builtin.Result{Success: true, Data: map[string]any{}}}
	l := New(planner, invoker, WithMaxSteps(3))

	res := l.Run(context.Background(), "alice", "loop forever", nil)
	assert.Equal(t, OutcomeIncomplete, res.Outcome)
	assert.Equal(t, "max_iterations", res.ErrorKind)
	assert.Len(t, res.Trace, 3)
}

func TestRunStopsOnDeadline(t *testing.T) {
	planner := &scriptedPlanner{}
	invoker := &stubInvoker{result: &builtin.Result{Success: true, Data: map[string]any{}}}
	l := New(planner, invoker, WithDeadline(time.Millisecond), WithMaxSteps(1000))

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	res := l.Run(ctx, "alice", "do something slow", nil)
	assert.Equal(t, OutcomeIncomplete, res.Outcome)
	assert.Equal(t, "timeout", res.ErrorKind)
}

func TestInvokeMarksFailureWhenResultUnsuccessful(t *testing.T) {
	planner := &scriptedPlanner{responses: []string{
		`Thought: trying.` + "\n" + `Action: write_file(path="/tmp/x")`,
		"Thought: done.\nAnswer: gave up",
	}}
	invoker := &stubInvoker{result: &builtin.Result{Success: false, Error: "permission denied"}}
	l := New(planner, invoker)

	res := l.Run(context.Background(), "alice", "write a file", nil)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "failure", res.Trace[0].Observation.Status)
	assert.Equal(t, "permission denied", res.Trace[0].Observation.Error)
	assert.Equal(t, uint64(1), l.Stats().ActionsFailed)
}

func TestDefaultFallbackClassifierDistinguishesCategories(t *testing.T) {
	assert.Contains(t, DefaultFallbackClassifier(""), "couldn't understand")
	assert.Contains(t, DefaultFallbackClassifier("send an email to bob"), "can't carry out that action")
	assert.Contains(t, DefaultFallbackClassifier("how this"), "too brief")
	assert.Contains(t, DefaultFallbackClassifier("tell me about the history of compilers"), "degraded mode")
}
