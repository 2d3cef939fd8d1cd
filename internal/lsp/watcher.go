package lsp

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ch0mler/yara-language-server/internal/protocol"
)

// ruleWatcher republishes diagnostics when rule files change on disk, so
// findings stay current even for edits made outside the client.
type ruleWatcher struct {
	fw       *fsnotify.Watcher
	log      *slog.Logger
	onChange func(path string)
}

// newRuleWatcher watches root and all its subdirectories.
func newRuleWatcher(root string, log *slog.Logger, onChange func(path string)) (*ruleWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &ruleWatcher{fw: fw, log: log, onChange: onChange}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				log.Warn("cannot watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run consumes filesystem events until ctx is cancelled.
func (w *ruleWatcher) Run(ctx context.Context) {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *ruleWatcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}
	if event.Op.Has(fsnotify.Create) {
		// new subdirectories need their own watch
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fw.Add(event.Name); err != nil {
				w.log.Warn("cannot watch directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !isRuleFile(event.Name) {
		return
	}
	w.log.Debug("rule file changed on disk", "path", event.Name)
	w.onChange(event.Name)
}

// startWatcher begins workspace watching if configured. Changed files get
// their diagnostics republished unless an unsaved overlay shadows them.
func (s *Session) startWatcher(ctx context.Context) {
	if !s.cfg.WatchWorkspace || s.workspace == "" {
		return
	}
	w, err := newRuleWatcher(s.workspace, s.log, func(path string) {
		uri := protocol.FilePathToURI(path)
		if _, dirty := s.docs.Dirty()[uri]; dirty {
			return
		}
		s.publishDiagnosticsFor(uri)
	})
	if err != nil {
		s.log.Warn("workspace watcher unavailable", "error", err)
		return
	}
	s.log.Info("watching workspace rule files", "root", s.workspace)
	go w.Run(ctx)
}
