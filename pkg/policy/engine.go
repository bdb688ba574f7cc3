package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Engine is a pure function from (principal, action, arguments) to a
// Verdict. It has no side effects beyond the decision itself — it never
// dispatches a confirmation and never writes the audit log.
type Engine struct {
	mu     sync.RWMutex
	config Config
	banned []*regexp.Regexp
}

// NewEngine constructs an Engine from a static Config. Banned-verb patterns
// are compiled once up front.
func NewEngine(cfg Config) *Engine {
	if cfg.DefaultClass == "" {
		cfg.DefaultClass = ClassRequiresConfirmation
	}
	if cfg.DefaultRisk == "" {
		cfg.DefaultRisk = RiskMedium
	}
	e := &Engine{config: cfg}
	e.compileBanned()
	return e
}

// LoadConfigFile reads a policy YAML file and layers it over DefaultConfig,
// mirroring pkg/config.Load's own read-then-default pattern. A missing file
// is not an error — the conservative defaults apply.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("policy: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	return cfg, nil
}

func (e *Engine) compileBanned() {
	e.banned = make([]*regexp.Regexp, 0, len(e.config.BannedVerbs))
	for _, verb := range e.config.BannedVerbs {
		// Word-boundary match against shell metacharacter/whitespace
		// delimiters, mirroring the source policy's banned-command screen.
		pattern := `(^|\s|;|\||&)` + regexp.QuoteMeta(verb) + `(\s|;|\||&|$)`
		if re, err := regexp.Compile(pattern); err == nil {
			e.banned = append(e.banned, re)
		}
	}
}

// SetConfig atomically replaces the active policy, recompiling banned-verb
// patterns under the write lock.
func (e *Engine) SetConfig(cfg Config) {
	if cfg.DefaultClass == "" {
		cfg.DefaultClass = ClassRequiresConfirmation
	}
	if cfg.DefaultRisk == "" {
		cfg.DefaultRisk = RiskMedium
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = cfg
	e.compileBanned()
}

// Config returns the currently active policy.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// Evaluate decides whether call is allowed unconditionally, allowed subject
// to confirmation, or denied. Argument inspection is performed first and
// dominates class-level screening: a normally-confirmable action whose
// arguments trip a banned pattern is downgraded to deny.
func (e *Engine) Evaluate(call ToolCall) Verdict {
	e.mu.RLock()
	cfg := e.config
	banned := e.banned
	e.mu.RUnlock()

	rule, known := cfg.Tools[call.ToolName]
	class := cfg.DefaultClass
	risk := cfg.DefaultRisk
	if known {
		class = rule.Class
		risk = rule.Risk
	}

	if rule.ExecutesVerb {
		if reason, hit := screenBannedVerb(call.Arguments, banned); hit {
			return Verdict{Allow: false, Risk: RiskCritical, RequiresConfirmation: false, Reason: reason}
		}
	}
	if rule.ReadsPath {
		if reason, hit := screenProtectedPath(call.Arguments, cfg.ProtectedDirectories, cfg.SafeExtensions); hit {
			return Verdict{Allow: false, Risk: RiskCritical, RequiresConfirmation: false, Reason: reason}
		}
	}

	switch class {
	case ClassForbidden:
		return Verdict{
			Allow:  false,
			Risk:   RiskCritical,
			Reason: fmt.Sprintf("%q is a forbidden action", call.ToolName),
		}
	case ClassSafe:
		if risk == "" {
			risk = RiskSafe
		}
		return Verdict{
			Allow:  true,
			Risk:   risk,
			Reason: fmt.Sprintf("%q is classified safe", call.ToolName),
		}
	case ClassRequiresConfirmation:
		if risk == "" {
			risk = RiskMedium
		}
		reason := fmt.Sprintf("%q requires human confirmation", call.ToolName)
		if !known {
			reason = fmt.Sprintf("%q is not classified; defaulting to confirmation", call.ToolName)
		}
		return Verdict{
			Allow:               true,
			Risk:                risk,
			RequiresConfirmation: true,
			Reason:              reason,
		}
	default:
		return Verdict{
			Allow:               true,
			Risk:                RiskMedium,
			RequiresConfirmation: true,
			Reason:              fmt.Sprintf("unrecognized action class %q; defaulting to confirmation", class),
		}
	}
}

// screenBannedVerb inspects the process-exec tool call's command string (or
// tokenized argv) for a banned verb at a word boundary.
func screenBannedVerb(args map[string]any, banned []*regexp.Regexp) (string, bool) {
	raw := commandString(args)
	if raw == "" {
		return "", false
	}
	for _, re := range banned {
		if re.MatchString(raw) {
			return fmt.Sprintf("command %q matches a banned verb", raw), true
		}
	}
	return "", false
}

func commandString(args map[string]any) string {
	if s, ok := args["command"].(string); ok {
		return s
	}
	if argv, ok := args["argv"].([]string); ok {
		return strings.Join(argv, " ")
	}
	if argv, ok := args["argv"].([]any); ok {
		parts := make([]string, 0, len(argv))
		for _, a := range argv {
			if s, ok := a.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// screenProtectedPath inspects a file-reading tool call's resolved path
// against the protected-directories and safe-extensions sets.
func screenProtectedPath(args map[string]any, protectedDirs, safeExts []string) (string, bool) {
	raw, ok := args["path"].(string)
	if !ok {
		raw, ok = args["file_path"].(string)
	}
	if !ok || raw == "" {
		return "", false
	}
	if strings.Contains(raw, "..") {
		return "path traversal detected", true
	}
	resolved := filepath.Clean(raw)
	if !filepath.IsAbs(resolved) {
		abs, err := filepath.Abs(resolved)
		if err == nil {
			resolved = abs
		}
	}
	for _, dir := range protectedDirs {
		dir = filepath.Clean(dir)
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return fmt.Sprintf("path %q is under protected directory %q", resolved, dir), true
		}
	}
	if len(safeExts) > 0 {
		ext := strings.ToLower(filepath.Ext(resolved))
		allowed := false
		for _, e := range safeExts {
			if strings.EqualFold(e, ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Sprintf("extension %q is not in the safe-extensions allow-list", ext), true
		}
	}
	return "", false
}

// DefaultConfig mirrors the source policy's own conservative defaults:
// read-only listings, search and learn_knowledge are safe; file writes,
// process exec, URL fetches and app control require confirmation; banned
// verbs in process-exec commands and protected system directories in
// read_file paths are always denied.
func DefaultConfig() Config {
	return Config{
		Tools: map[string]ToolRule{
			"list_files":     {Class: ClassSafe, Risk: RiskSafe},
			"search_files":   {Class: ClassSafe, Risk: RiskSafe},
			"git_status":     {Class: ClassSafe, Risk: RiskSafe},
			"read_file":      {Class: ClassSafe, Risk: RiskLow, ReadsPath: true},
			"write_file":     {Class: ClassRequiresConfirmation, Risk: RiskMedium},
			"fetch_url":      {Class: ClassRequiresConfirmation, Risk: RiskLow},
			"run_command":    {Class: ClassRequiresConfirmation, Risk: RiskHigh, ExecutesVerb: true},
			"open_app":       {Class: ClassRequiresConfirmation, Risk: RiskLow},
			"close_app":      {Class: ClassRequiresConfirmation, Risk: RiskMedium},
			"learn_knowledge": {Class: ClassSafe, Risk: RiskSafe},
		},
		ProtectedDirectories: []string{"/etc", "/root", "/sys", "/proc", "/boot"},
		SafeExtensions:       []string{},
		BannedVerbs:          []string{"rm", "sudo", "kill", "shutdown", "reboot", "mkfs", "dd", "format"},
		DefaultClass:         ClassRequiresConfirmation,
		DefaultRisk:          RiskMedium,
		ConfirmationExpiry:   0,
	}
}
