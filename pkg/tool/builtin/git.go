package builtin

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitStatusTool shows git working tree status via go-git, grounding the
// read-only git connector described for this runtime's tool surface.
type GitStatusTool struct{ workDirAware }

func (t *GitStatusTool) Name() string { return "git_status" }

func (t *GitStatusTool) Description() string {
	return "Show git working tree status: modified, staged, and untracked files."
}

func (t *GitStatusTool) Parameters() ParameterSchema {
	return ParameterSchema{Type: "object", Properties: map[string]PropertySchema{}, Required: []string{}}
}

func (t *GitStatusTool) Execute(params map[string]any) (*Result, error) {
	repoPath := t.repoPath()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("open repo: %v", err)}, nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("get worktree: %v", err)}, nil
	}
	status, err := wt.Status()
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("get status: %v", err)}, nil
	}

	entries := make([]map[string]any, 0, len(status))
	for file, st := range status {
		entries = append(entries, map[string]any{
			"path":    file,
			"staged":  string(st.Staging),
			"worktree": string(st.Worktree),
		})
	}

	return &Result{
		Success: true,
		Data: map[string]any{
			"entries": entries,
			"count":   len(entries),
			"clean":   len(entries) == 0,
		},
	}, nil
}

func (t *GitStatusTool) repoPath() string {
	if strings.TrimSpace(t.workDir) == "" {
		return "."
	}
	return t.workDir
}

// GitLogTool shows recent commit history via go-git.
type GitLogTool struct{ workDirAware }

func (t *GitLogTool) Name() string { return "git_log" }

func (t *GitLogTool) Description() string {
	return "Show recent commit history (hash, author, message, time)."
}

func (t *GitLogTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"limit": {Type: "integer", Description: "Maximum commits to return", Default: 10},
		},
		Required: []string{},
	}
}

func (t *GitLogTool) Execute(params map[string]any) (*Result, error) {
	limit := parseInt(params["limit"], 10)
	if limit <= 0 {
		limit = 10
	}

	repo, err := git.PlainOpen(t.repoPathForLog())
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("open repo: %v", err)}, nil
	}
	head, err := repo.Head()
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("get HEAD: %v", err)}, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("log: %v", err)}, nil
	}

	commits := make([]map[string]any, 0, limit)
	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if count >= limit {
			return nil
		}
		commits = append(commits, map[string]any{
			"hash":    c.Hash.String(),
			"message": strings.TrimSpace(c.Message),
			"author":  c.Author.Name,
			"email":   c.Author.Email,
			"time":    c.Author.When.Format(time.RFC3339),
		})
		count++
		return nil
	})
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("iterate log: %v", err)}, nil
	}

	return &Result{Success: true, Data: map[string]any{"commits": commits, "count": len(commits)}}, nil
}

func (t *GitLogTool) repoPathForLog() string {
	if strings.TrimSpace(t.workDir) == "" {
		return "."
	}
	return t.workDir
}

// GitDiffTool shows a diff via the git CLI (go-git's diff support is
// worktree-status-level only; shelling out to the real binary for a
// unified diff is the simplest faithful option and carries no shell risk
// since arguments are passed as an argv slice, never through sh -c).
type GitDiffTool struct{ workDirAware }

func (t *GitDiffTool) Name() string { return "git_diff" }

func (t *GitDiffTool) Description() string {
	return "Show a unified diff of unstaged (default) or staged changes, optionally limited to one file."
}

func (t *GitDiffTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"staged": {Type: "boolean", Description: "Show staged changes instead of unstaged", Default: false},
			"file":   {Type: "string", Description: "Limit diff to a single file"},
		},
		Required: []string{},
	}
}

func (t *GitDiffTool) Execute(params map[string]any) (*Result, error) {
	args := []string{"diff"}
	if staged, ok := params["staged"].(bool); ok && staged {
		args = append(args, "--cached")
	}
	if file, ok := params["file"].(string); ok && file != "" {
		if strings.TrimSpace(t.workDir) != "" {
			_, rel, err := resolveRelPath(t.workDir, file)
			if err != nil {
				return &Result{Success: false, Error: err.Error()}, nil
			}
			file = rel
		}
		args = append(args, "--", file)
	}

	ctx, cancel := t.execContext()
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if strings.TrimSpace(t.workDir) != "" {
		cmd.Dir = t.workDir
	}
	cmd.Env = mergeEnv(cmd.Env, t.env)
	stdout := newLimitedBuffer(t.maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	err := cmd.Run()
	if ctx.Err() != nil {
		return &Result{Success: false, Error: "git diff timed out"}, nil
	}
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("git diff failed: %v", err)}, nil
	}

	data := map[string]any{"diff": stdout.String()}
	result := &Result{Success: true, Data: data}
	if stdout.Truncated() {
		data["diff_truncated"] = true
		result.ShouldAbridge = true
		result.DisplayData = data
	}
	return result, nil
}
