package main

import (
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/hopper-project/core/pkg/policy"
)

// watchPolicyFile reloads the Permission Engine whenever the policy file
// changes on disk, logging a unified diff of what changed so an operator
// editing the file live can see the effect of each save. A parse error
// leaves the previously-loaded policy in force. Mirrors pkg/config.Watch's
// own fsnotify-on-a-single-file idiom.
func watchPolicyFile(path string, engine *policy.Engine) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	previous, _ := os.ReadFile(path)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				current, err := os.ReadFile(path)
				if err != nil {
					slog.Error("policy reload: read failed, keeping previous policy", "path", path, "error", err)
					continue
				}
				cfg, err := policy.LoadConfigFile(path)
				if err != nil {
					slog.Error("policy reload: parse failed, keeping previous policy", "path", path, "error", err)
					continue
				}
				diff := difflib.UnifiedDiff{
					A:        difflib.SplitLines(string(previous)),
					B:        difflib.SplitLines(string(current)),
					FromFile: "policy (previous)",
					ToFile:   "policy (reloaded)",
					Context:  2,
				}
				text, _ := difflib.GetUnifiedDiffString(diff)
				engine.SetConfig(cfg)
				previous = current
				slog.Info("policy reloaded", "path", path, "diff", text)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("policy watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
