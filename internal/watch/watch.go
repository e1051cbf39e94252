// Package watch feeds bundle files from a directory into the ingestion
// coordinator: existing files on startup, then create/write events as
// exporters drop new files or rewrite old ones.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultStability is how long a file must stay quiet before it is
// submitted. Exporters write large bundles incrementally; submitting on the
// first write event would hand the parser a truncated document.
const DefaultStability = 2 * time.Second

// Submitter accepts a bundle file path for ingestion.
type Submitter interface {
	Submit(path string) bool
}

// Watcher debounces filesystem events on a directory of bundle files and
// submits stable paths for ingestion.
type Watcher struct {
	dir       string
	sub       Submitter
	log       zerolog.Logger
	stability time.Duration

	fw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(dir string, sub Submitter, stability time.Duration, log zerolog.Logger) (*Watcher, error) {
	if stability <= 0 {
		stability = DefaultStability
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		sub:       sub,
		log:       log,
		stability: stability,
		fw:        fw,
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Run submits the directory's existing bundle files, then processes events
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()

	if err := w.scanExisting(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) scanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isBundleFile(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		w.log.Info().Str("file", entry.Name()).Msg("existing file found")
		w.sub.Submit(path)
	}
	return nil
}

// handleEvent debounces create/write events: each event resets the file's
// stability timer, and only a file that stays quiet for the stability
// window is submitted.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	if !isBundleFile(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := ev.Name
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.stability)
		return
	}
	w.log.Info().Str("file", filepath.Base(path)).Msg("file change detected")
	w.pending[path] = time.AfterFunc(w.stability, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.sub.Submit(path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func isBundleFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json")
}
