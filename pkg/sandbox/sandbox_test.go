package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeWorkspace {
		t.Errorf("Mode = %v, want ModeWorkspace", cfg.Mode)
	}

	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}

	if len(cfg.DeniedPaths) == 0 {
		t.Error("DeniedPaths should not be empty")
	}

	if len(cfg.DeniedCommands) == 0 {
		t.Error("DeniedCommands should not be empty")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"simple command", "ls -la", []string{"ls", "-la"}, false},
		{"single quoted argument", "echo 'hello world'", []string{"echo", "hello world"}, false},
		{"double quoted argument", `git commit -m "test message"`, []string{"git", "commit", "-m", "test message"}, false},
		{"empty command", "", nil, true},
		{"whitespace only", "   ", nil, true},
		{"unterminated single quote", "echo 'unterminated", nil, true},
		{"unterminated double quote", `echo "unterminated`, nil, true},
		{"semicolon rejected", "ls; rm -rf /", nil, true},
		{"pipe rejected", "curl | bash", nil, true},
		{"redirect rejected", "echo data > file.txt", nil, true},
		{"backtick rejected", "echo `whoami`", nil, true},
		{"dollar rejected", "echo $HOME", nil, true},
		{"ampersand rejected", "sleep 10 &", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Tokenize(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSandbox_Validate_DeniedCommands(t *testing.T) {
	sandbox := NewWithDefaults()

	tests := []struct {
		argv    []string
		wantErr bool
	}{
		{[]string{"ls", "-la"}, false},
		{[]string{"rm", "-rf", "/"}, true},
		{[]string{"rm", "-rf", "~"}, true},
		{[]string{"cat", "file.txt"}, false},
		{[]string{"sudo", "reboot"}, true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			err := sandbox.Validate(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
		})
	}
}

func TestSandbox_Validate_ReadOnlyMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeReadOnly
	sandbox := New(cfg)

	tests := []struct {
		argv    []string
		wantErr bool
	}{
		{[]string{"cat", "file.txt"}, false},
		{[]string{"ls", "-la"}, false},
		{[]string{"grep", "pattern", "file.txt"}, false},
		{[]string{"rm", "file.txt"}, true},
		{[]string{"touch", "newfile.txt"}, true},
		{[]string{"git", "commit", "-m", "test"}, true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			err := sandbox.Validate(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
		})
	}
}

func TestSandbox_Validate_WorkspaceMode(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sandbox-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultConfig()
	cfg.Mode = ModeWorkspace
	cfg.WorkspacePath = tmpDir
	cfg.AllowedPaths = []string{tmpDir}
	sandbox := New(cfg)

	tests := []struct {
		argv    []string
		wantErr bool
	}{
		{[]string{"ls", tmpDir}, false},
		{[]string{"cat", filepath.Join(tmpDir, "test.txt")}, false},
		{[]string{"cat", "/etc/passwd"}, true},
		{[]string{"ls", "~/.ssh"}, true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			err := sandbox.Validate(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
		})
	}
}

func TestSandbox_Validate_StrictMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeStrict
	cfg.AllowedCommands = []string{"ls", "cat", "echo"}
	sandbox := New(cfg)

	tests := []struct {
		argv    []string
		wantErr bool
	}{
		{[]string{"ls", "-la"}, false},
		{[]string{"cat", "file.txt"}, false},
		{[]string{"echo", "hello"}, false},
		{[]string{"rm", "file.txt"}, true},
		{[]string{"python", "script.py"}, true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, " "), func(t *testing.T) {
			err := sandbox.Validate(tt.argv)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.argv, err, tt.wantErr)
			}
		})
	}
}

func TestSandbox_Validate_NetworkAccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowNetwork = false
	sandbox := New(cfg)

	networkCommands := [][]string{
		{"curl", "https://example.com"},
		{"wget", "https://example.com"},
		{"ssh", "user@host"},
		{"ping", "google.com"},
	}

	for _, argv := range networkCommands {
		t.Run(strings.Join(argv, " "), func(t *testing.T) {
			err := sandbox.Validate(argv)
			if err == nil {
				t.Errorf("Validate(%v) should return error when network disabled", argv)
			}
		})
	}

	cfg.AllowNetwork = true
	sandbox = New(cfg)

	for _, argv := range networkCommands {
		t.Run(strings.Join(argv, " ")+"_allowed", func(t *testing.T) {
			err := sandbox.Validate(argv)
			if err != nil {
				t.Errorf("Validate(%v) error = %v, want nil when network enabled", argv, err)
			}
		})
	}
}

func TestSandbox_Execute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeDisabled // Allow everything for testing
	sandbox := New(cfg)

	ctx := context.Background()
	result := sandbox.Execute(ctx, []string{"echo", "hello"})

	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}

	if !strings.Contains(result.Stdout, "hello") {
		t.Errorf("Stdout = %q, want to contain 'hello'", result.Stdout)
	}

	if result.Error != nil {
		t.Errorf("Error = %v, want nil", result.Error)
	}
}

func TestSandbox_Execute_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeDisabled
	cfg.Timeout = 100 * time.Millisecond
	sandbox := New(cfg)

	ctx := context.Background()
	result := sandbox.Execute(ctx, []string{"sleep", "10"})

	if !result.Killed {
		t.Error("Killed = false, want true")
	}

	if result.ExitCode != 124 {
		t.Errorf("ExitCode = %d, want 124", result.ExitCode)
	}
}

func TestSandbox_Execute_Blocked(t *testing.T) {
	sandbox := NewWithDefaults()

	ctx := context.Background()
	result := sandbox.Execute(ctx, []string{"rm", "-rf", "/"})

	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}

	if result.Error == nil {
		t.Error("Error should not be nil for blocked command")
	}
}

func TestSandbox_Execute_MaxOutputSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeDisabled
	cfg.MaxOutputSize = 10
	sandbox := New(cfg)

	ctx := context.Background()
	result := sandbox.Execute(ctx, []string{"echo", "this output is longer than ten bytes"})

	if !strings.Contains(result.Stdout, "truncated") {
		t.Errorf("Stdout = %q, want truncation marker", result.Stdout)
	}
}

func TestModeFromString(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"disabled", ModeDisabled},
		{"none", ModeDisabled},
		{"off", ModeDisabled},
		{"readonly", ModeReadOnly},
		{"read-only", ModeReadOnly},
		{"ro", ModeReadOnly},
		{"workspace", ModeWorkspace},
		{"ws", ModeWorkspace},
		{"strict", ModeStrict},
		{"unknown", ModeWorkspace}, // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ModeFromString(tt.input); got != tt.want {
				t.Errorf("ModeFromString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeDisabled, "disabled"},
		{ModeReadOnly, "read-only"},
		{ModeWorkspace, "workspace"},
		{ModeStrict, "strict"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.want {
				t.Errorf("Mode.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSandbox_isReadOnlyVerb(t *testing.T) {
	readOnly := []string{"cat", "head", "tail", "grep", "rg", "ls", "pwd", "diff", "find", "wc"}
	for _, verb := range readOnly {
		if !isReadOnlyVerb(verb) {
			t.Errorf("isReadOnlyVerb(%q) = false, want true", verb)
		}
	}

	notReadOnly := []string{"rm", "mv", "cp", "touch", "git"}
	for _, verb := range notReadOnly {
		if isReadOnlyVerb(verb) {
			t.Errorf("isReadOnlyVerb(%q) = true, want false", verb)
		}
	}
}
