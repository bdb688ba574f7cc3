package policy

import "time"

// ActionClass is one of the three disjoint classes every registered tool is
// statically assigned to.
type ActionClass string

const (
	// ClassSafe tools are auto-allowed without confirmation (read-only
	// listings, queries, system-info).
	ClassSafe ActionClass = "safe"
	// ClassRequiresConfirmation tools are allowed only after a human
	// approves (open/close application, execute script, destructive-looking
	// file ops).
	ClassRequiresConfirmation ActionClass = "requires_confirmation"
	// ClassForbidden tools are denied irrespective of arguments.
	ClassForbidden ActionClass = "forbidden"
)

// RiskLevel is an ordered label assigned to every verdict.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskOrder gives RiskLevel a total order for Max/comparisons.
var riskOrder = map[RiskLevel]int{
	RiskSafe:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Max returns the higher of two risk levels.
func Max(a, b RiskLevel) RiskLevel {
	if riskOrder[b] > riskOrder[a] {
		return b
	}
	return a
}

// ToolCall is the (principal, action, arguments) triple the Engine decides
// over.
type ToolCall struct {
	Principal string
	ToolName  string
	Arguments map[string]any
}

// Verdict is the Permission Engine's synchronous decision for one ToolCall.
type Verdict struct {
	Allow               bool      `json:"allow"`
	Risk                RiskLevel `json:"risk"`
	RequiresConfirmation bool     `json:"requires_confirmation"`
	Reason              string    `json:"reason"`
}

// ToolRule statically assigns a tool name to an action class and, for
// requires-confirmation tools, the risk level to report absent a sharper
// argument-level signal.
type ToolRule struct {
	Class        ActionClass `yaml:"class"`
	Risk         RiskLevel   `yaml:"risk"`
	ReadsPath    bool        `yaml:"reads_path"`     // argument inspection: protected-dir + extension screen
	ExecutesVerb bool        `yaml:"executes_verb"`  // argument inspection: banned-verb screen
}

// Config is the static policy: which tools land in which class, and the
// argument-level screens that can override the class-level decision.
type Config struct {
	Tools map[string]ToolRule `yaml:"tools"`

	// ProtectedDirectories denies file-reading tools whose resolved path
	// falls under any of these prefixes.
	ProtectedDirectories []string `yaml:"protected_directories"`
	// SafeExtensions allow-lists file extensions for file-reading tools;
	// empty means no extension restriction.
	SafeExtensions []string `yaml:"safe_extensions"`
	// BannedVerbs is matched with word-boundary semantics against the raw
	// command string of process-exec tool calls.
	BannedVerbs []string `yaml:"banned_verbs"`

	// DefaultClass is used for any tool name not present in Tools. Per
	// spec.md §4.2 this must be ClassRequiresConfirmation.
	DefaultClass ActionClass `yaml:"default_class"`
	// DefaultRisk is the risk level reported alongside DefaultClass.
	DefaultRisk RiskLevel `yaml:"default_risk"`

	// ConfirmationExpiry is loaded from the policy file but read by no other
	// package; the Confirmation Broker takes its timeout from NewBroker.
	ConfirmationExpiry time.Duration `yaml:"confirmation_expiry"`
}
