package csvimport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a dropped file must stay quiet before it is
// imported, so a file still being copied is not read half-written.
const DefaultSettle = 750 * time.Millisecond

// DropHandler is called once per settled CSV file.
type DropHandler func(ctx context.Context, collection, path string)

// Watcher imports CSV files dropped into <root>/<collection>/.
type Watcher struct {
	root    string
	settle  time.Duration
	handle  DropHandler
	log     *zap.SugaredLogger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]func(func())
}

// NewWatcher watches root and each collection directory under it,
// creating root if needed.
func NewWatcher(root string, settle time.Duration, handle DropHandler, log *zap.SugaredLogger) (*Watcher, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create drop folder: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:    filepath.Clean(root),
		settle:  settle,
		handle:  handle,
		log:     log,
		watcher: fw,
		pending: make(map[string]func(func())),
	}

	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("read drop folder: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addCollectionDir(filepath.Join(w.root, e.Name()))
		}
	}
	return w, nil
}

// Root returns the watched drop folder.
func (w *Watcher) Root() string { return w.root }

func (w *Watcher) addCollectionDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.log.Warnw("[IMPORT] cannot watch collection folder", "dir", dir, "error", err)
		return
	}
	w.log.Debugw("[IMPORT] watching", "dir", dir)
}

// Run dispatches file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.dispatch(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("[IMPORT] watcher error", "error", err)
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	path := filepath.Clean(event.Name)
	parent := filepath.Dir(path)

	if parent == w.root {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addCollectionDir(path)
		}
		return
	}
	if filepath.Dir(parent) != w.root || !strings.EqualFold(filepath.Ext(path), ".csv") {
		return
	}

	collection := filepath.Base(parent)
	w.mu.Lock()
	debounced, ok := w.pending[path]
	if !ok {
		debounced = debounce.New(w.settle)
		w.pending[path] = debounced
	}
	w.mu.Unlock()

	debounced(func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.log.Infow("[IMPORT] file dropped", "collection", collection, "path", path)
		w.handle(ctx, collection, path)
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
