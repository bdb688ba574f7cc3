package agent

import "strings"

// actionVerbs mirrors the keyword-based action detection the degraded-mode
// classifier falls back on when the planner itself is unreachable: a small,
// deterministic rule set, not a model call.
var actionVerbs = []string{"send", "create", "run", "execute", "launch", "open", "close", "delete", "start", "stop"}

// vagueWords flags short interrogative utterances that carry too little
// content for a generic reply to address meaningfully.
var vagueWords = []string{"how", "what", "why", "this", "that", "thing"}

// DefaultFallbackClassifier produces a minimal, rule-based reply when the
// planner is unreachable (spec.md §8 scenario S6). It never calls a tool and
// never invents an answer beyond acknowledging the category of the request,
// so the loop can still return something coherent instead of failing
// outright while the planner is down.
func DefaultFallbackClassifier(utterance string) string {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return "I couldn't understand that request, and the planner is currently unavailable. Please try again shortly."
	}

	words := strings.Fields(lower)

	for _, verb := range actionVerbs {
		if strings.Contains(lower, verb) {
			return "The planner is temporarily unavailable, so I can't carry out that action right now. Please retry in a moment."
		}
	}

	if len(words) <= 4 {
		for _, w := range vagueWords {
			if strings.Contains(lower, w) {
				return "That request is a bit too brief for me to answer without the planner, which is currently unavailable. Could you add more detail and try again shortly?"
			}
		}
	}

	return "I'm running in degraded mode because the planner is unavailable, so I can't fully research or answer that right now. Please try again shortly."
}
