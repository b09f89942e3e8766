package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher imports spreadsheet files dropped into a directory.
type Watcher struct {
	imports *ImportService
	logger  *slog.Logger
	// settle is how long a file must sit after its last write before it
	// is imported, so half-copied files are not picked up.
	settle time.Duration
}

// NewWatcher creates a drop-directory watcher.
func NewWatcher(imports *ImportService, logger *slog.Logger) *Watcher {
	return &Watcher{imports: imports, logger: logger, settle: 500 * time.Millisecond}
}

func isImportable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Run watches dir until ctx is canceled, importing every importable file
// created or written there. Import failures are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching drop directory", "dir", dir)

	// Writers emit bursts of events per file; pending tracks the last
	// write time so each file is imported once, after it settles.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if isImportable(event.Name) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				results, err := w.imports.ImportFile(ctx, path)
				if err != nil {
					w.logger.Error("import failed", "path", path, "error", err)
					continue
				}
				for _, r := range results {
					w.logger.Info("imported dataset",
						"path", path, "dataset_id", r.DatasetID, "name", r.Name, "rows", r.RowCount)
				}
			}
		}
	}
}
