// Package watch provides an optional fsnotify-based directory watch that
// hands newly-arrived files to an importer automatically. It is a thin
// convenience wrapper, not part of the storage model: nothing else in
// TagBox depends on it.
package watch

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Importer is the one operation watch needs: import the file at path and
// return the new file's id. It is narrower than internal/importer.Importer,
// whose Import also takes Options and returns a *Result; the CLI's watch
// command supplies an adapter.
type Importer interface {
	Import(ctx context.Context, path string) (string, error)
}

// Watcher watches one or more drop folders and imports files that appear
// in them, debouncing bursts of filesystem events the way editors and
// sync clients produce them (temp file, rename, write, close).
type Watcher struct {
	fsw          *fsnotify.Watcher
	importer     Importer
	debounce     time.Duration
	mu           sync.Mutex
	pending      map[string]*time.Timer
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a Watcher over dirs. Call Start to begin watching.
func New(dirs []string, importer Importer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return &Watcher{
		fsw:      fsw,
		importer: importer,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in the background. Cancel ctx or call Stop to end it.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.loop(ctx)
}

// Stop ends the watch and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: fsnotify error: %v", err)
		}
	}
}

// schedule debounces repeated events for the same path before importing it,
// so a multi-write copy only triggers one import.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.importOne(ctx, path)
	})
}

func (w *Watcher) importOne(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Printf("watch: resolve path %s: %v", path, err)
		return
	}
	id, err := w.importer.Import(ctx, abs)
	if err != nil {
		log.Printf("watch: import %s failed: %v", abs, err)
		return
	}
	log.Printf("watch: imported %s as %s", abs, id)
}
