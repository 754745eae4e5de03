package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// PolicyWatcher keeps the current policies in sync with a file on disk. An
// edit that fails to parse or validate is logged and the previous policies
// stay in effect.
type PolicyWatcher struct {
	path     string
	current  atomic.Pointer[Policies]
	logger   *slog.Logger
	onReload func(Policies)
}

// WatcherOption configures a PolicyWatcher.
type WatcherOption func(*PolicyWatcher)

// WithReloadHook is called after every successful reload.
func WithReloadHook(fn func(Policies)) WatcherOption {
	return func(w *PolicyWatcher) {
		w.onReload = fn
	}
}

// NewPolicyWatcher loads path once. The initial load must succeed.
func NewPolicyWatcher(path string, logger *slog.Logger, opts ...WatcherOption) (*PolicyWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("policy watcher: path is required")
	}
	p, err := LoadPolicies(path)
	if err != nil {
		return nil, err
	}
	w := &PolicyWatcher{path: filepath.Clean(path), logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	w.current.Store(&p)
	return w, nil
}

// Current returns the policies in effect.
func (w *PolicyWatcher) Current() Policies {
	return *w.current.Load()
}

// Reload re-reads the file and swaps it in if valid.
func (w *PolicyWatcher) Reload() error {
	p, err := LoadPolicies(w.path)
	if err != nil {
		return err
	}
	w.current.Store(&p)
	if w.onReload != nil {
		w.onReload(p)
	}
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace
// files by rename, so the directory is watched rather than the file itself.
func (w *PolicyWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("policy watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := w.Reload(); err != nil {
				w.logger.ErrorContext(ctx, "policy reload rejected, keeping previous policy",
					"path", w.path,
					"error", err,
				)
				continue
			}
			w.logger.InfoContext(ctx, "policy reloaded", "path", w.path)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "policy watcher error", "error", err)
		}
	}
}
