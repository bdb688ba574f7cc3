package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActionsAttempted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "actions_attempted_total",
		Help:      "Number of tool invocations attempted by the agent loop.",
	})
	metricActionsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "actions_succeeded_total",
		Help:      "Number of tool invocations that returned a successful observation.",
	})
	metricActionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "actions_failed_total",
		Help:      "Number of tool invocations that failed, were cancelled, or timed out.",
	})
	metricThoughts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "thoughts_total",
		Help:      "Number of successfully parsed planner responses.",
	})
	metricLLMFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "llm_failures_total",
		Help:      "Number of planner calls that failed, including falls to the degraded classifier.",
	})
	metricRunOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hopper",
		Subsystem: "agent",
		Name:      "run_outcomes_total",
		Help:      "Terminal outcomes of agent loop runs, labeled by outcome.",
	}, []string{"outcome"})
)

// recordOutcome increments the run-outcome counter, labeled by the Result's
// Outcome, once a Run reaches a terminal Result.
func recordOutcome(r *Result) {
	metricRunOutcomes.WithLabelValues(string(r.Outcome)).Inc()
}
