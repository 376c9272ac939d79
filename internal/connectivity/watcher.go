package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher feeds a Monitor from a state file holding a single class name
// ("offline", "wifi" or "online"). The host's network daemon rewrites the
// file whenever connectivity changes.
type FileWatcher struct {
	path    string
	monitor *Monitor
	logger  *slog.Logger
}

// NewFileWatcher creates a watcher for path that updates monitor.
func NewFileWatcher(path string, monitor *Monitor, logger *slog.Logger) *FileWatcher {
	return &FileWatcher{
		path:    path,
		monitor: monitor,
		logger:  logger.With("component", "connectivity_watcher", "path", path),
	}
}

// Refresh reads the state file once and applies it. A missing file is ignored.
func (w *FileWatcher) Refresh() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read connectivity state: %w", err)
	}
	c, err := ParseClass(string(data))
	if err != nil {
		return err
	}
	w.monitor.Set(c)
	return nil
}

// Run applies the current file contents and then follows changes until ctx
// is cancelled. The parent directory is watched so atomic replacements
// (write to temp file, rename) are seen.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	if err := w.Refresh(); err != nil {
		w.logger.Warn("failed to read initial connectivity state", "error", err)
	}

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("connectivity state file changed", "op", event.Op.String())
				if err := w.Refresh(); err != nil {
					w.logger.Warn("failed to apply connectivity state", "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}
