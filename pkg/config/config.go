// Package config loads and hot-reloads the orchestrator's configuration:
// listen addresses, storage paths, the permission policy file, confirmation
// behavior, and worker-pool tuning. Config files are YAML; environment
// variables with the HOPPER_ prefix override individual fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfirmationMode selects how the Confirmation Broker resolves
// requires-confirmation actions.
type ConfirmationMode string

const (
	ConfirmationInteractive ConfirmationMode = "interactive"
	ConfirmationAsync       ConfirmationMode = "async"
	ConfirmationAutoApprove ConfirmationMode = "auto_approve"
)

// Config is the orchestrator's full runtime configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	WorkDir    string `yaml:"work_dir"`

	Audit      AuditConfig      `yaml:"audit"`
	Policy     PolicyConfig     `yaml:"policy"`
	Confirm    ConfirmConfig    `yaml:"confirmation"`
	Context    ContextConfig    `yaml:"context"`
	Worker     WorkerConfig     `yaml:"worker"`
	Auth       AuthConfig       `yaml:"auth"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
}

// AuditConfig configures the append-only audit log.
type AuditConfig struct {
	Dir           string `yaml:"dir"`
	SQLiteIndex   string `yaml:"sqlite_index"`
	EnableIndex   bool   `yaml:"enable_index"`
}

// PolicyConfig points at the permission policy definition.
type PolicyConfig struct {
	FilePath      string `yaml:"file_path"`
	ReloadOnWrite bool   `yaml:"reload_on_write"`
}

// ConfirmConfig configures the Confirmation Broker.
type ConfirmConfig struct {
	Mode           ConfirmationMode `yaml:"mode"`
	DefaultTimeout time.Duration    `yaml:"default_timeout"`
	PushVAPIDKey   string           `yaml:"push_vapid_key"`
}

// ContextConfig bounds the conversational context store.
type ContextConfig struct {
	MaxExchangesPerPrincipal int `yaml:"max_exchanges_per_principal"`
	TokenBudget              int `yaml:"token_budget"`
}

// WorkerConfig tunes the Service Coordinator's worker pool.
type WorkerConfig struct {
	MaxConcurrency     int           `yaml:"max_concurrency"`
	QueueDepth         int           `yaml:"queue_depth"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	CircuitOpenAfter   int           `yaml:"circuit_open_after"`
	CircuitResetAfter  time.Duration `yaml:"circuit_reset_after"`
	NATSURL            string        `yaml:"nats_url"`
}

// AuthConfig configures ingress JWT verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Disabled  bool   `yaml:"disabled"`
}

// SandboxConfig mirrors pkg/sandbox.Config for config-file loading.
type SandboxConfig struct {
	Mode         string   `yaml:"mode"`
	AllowNetwork bool     `yaml:"allow_network"`
	DeniedVerbs  []string `yaml:"denied_verbs"`
}

// Default returns a safe, fully-populated default configuration.
func Default() *Config {
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return &Config{
		ListenAddr: "127.0.0.1:8787",
		WorkDir:    cwd,
		Audit: AuditConfig{
			Dir:         filepath.Join(home, ".hopper", "audit"),
			SQLiteIndex: filepath.Join(home, ".hopper", "audit", "index.db"),
			EnableIndex: true,
		},
		Policy: PolicyConfig{
			FilePath:      filepath.Join(home, ".hopper", "policy.yaml"),
			ReloadOnWrite: true,
		},
		Confirm: ConfirmConfig{
			Mode:           ConfirmationInteractive,
			DefaultTimeout: 5 * time.Minute,
		},
		Context: ContextConfig{
			MaxExchangesPerPrincipal: 50,
			TokenBudget:              8000,
		},
		Worker: WorkerConfig{
			MaxConcurrency:    8,
			QueueDepth:        64,
			RequestTimeout:    30 * time.Second,
			HeartbeatInterval: 10 * time.Second,
			CircuitOpenAfter:  5,
			CircuitResetAfter: 30 * time.Second,
		},
		Sandbox: SandboxConfig{
			Mode: "workspace",
		},
	}
}

// Load reads a YAML config file (if it exists), layers environment
// variable overrides on top, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOPPER_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("HOPPER_WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv("HOPPER_AUDIT_DIR"); v != "" {
		cfg.Audit.Dir = v
	}
	if v := os.Getenv("HOPPER_POLICY_FILE"); v != "" {
		cfg.Policy.FilePath = v
	}
	if v := os.Getenv("HOPPER_CONFIRMATION_MODE"); v != "" {
		cfg.Confirm.Mode = ConfirmationMode(v)
	}
	if v := os.Getenv("HOPPER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("HOPPER_WORKER_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.MaxConcurrency = n
		}
	}
	if v := os.Getenv("HOPPER_NATS_URL"); v != "" {
		cfg.Worker.NATSURL = v
	}
}

// Validate checks invariants the rest of the orchestrator depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("config: listen_addr cannot be empty")
	}
	switch c.Confirm.Mode {
	case ConfirmationInteractive, ConfirmationAsync, ConfirmationAutoApprove:
	default:
		return fmt.Errorf("config: unknown confirmation mode %q", c.Confirm.Mode)
	}
	if c.Worker.MaxConcurrency <= 0 {
		return fmt.Errorf("config: worker.max_concurrency must be positive")
	}
	if c.Context.MaxExchangesPerPrincipal <= 0 {
		return fmt.Errorf("config: context.max_exchanges_per_principal must be positive")
	}
	if !c.Auth.Disabled && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt_secret is required unless auth.disabled is set")
	}
	return nil
}
