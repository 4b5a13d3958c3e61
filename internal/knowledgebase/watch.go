package knowledgebase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long record files must stay unchanged before a
// watched knowledge base is reloaded.
const DefaultDebounce = 500 * time.Millisecond

// Watch calls reload whenever record files in dir are created, written,
// removed or renamed. Bursts of events within debounce collapse into one
// call. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, debounce time.Duration, reload func(context.Context), logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("watching knowledge base", zap.String("dir", dir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isRecordFile(filepath.Base(ev.Name)) || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("record file changed", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("knowledge base watcher error", zap.Error(err))
		case <-timer.C:
			reload(ctx)
		}
	}
}
