package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"docdesk/internal/service"
	"docdesk/internal/storage"
)

// EventHistoryChanged is emitted when a report or import run shows up in
// the database, including runs recorded by `docdesk mcp` or the CLI.
const EventHistoryChanged = "history:changed"

type countSource interface {
	Counts() (storage.Counts, error)
}

// historyWatcher polls the run tables, detecting runs written by other
// processes sharing the database, and tells the frontend to refresh.
type historyWatcher struct {
	ctx      context.Context
	source   countSource
	emitter  service.EventEmitter
	log      *zap.SugaredLogger
	interval time.Duration

	mu     sync.Mutex
	last   storage.Counts
	primed bool
	stopCh chan struct{}
	done   chan struct{}
}

func newHistoryWatcher(ctx context.Context, source countSource, emitter service.EventEmitter, log *zap.SugaredLogger) *historyWatcher {
	return &historyWatcher{
		ctx:      ctx,
		source:   source,
		emitter:  emitter,
		log:      log,
		interval: 2 * time.Second,
	}
}

// Start begins the polling loop. Should be called once on app startup.
func (w *historyWatcher) Start() {
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	go w.pollLoop()
}

// Stop terminates the polling loop and waits for it.
func (w *historyWatcher) Stop() {
	if w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.done
	w.stopCh = nil
}

func (w *historyWatcher) pollLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check()
	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *historyWatcher) check() {
	counts, err := w.source.Counts()
	if err != nil {
		w.log.Debugw("[APP] history poll failed", "error", err)
		return
	}

	w.mu.Lock()
	changed := w.primed && counts != w.last
	w.last = counts
	w.primed = true
	w.mu.Unlock()

	if changed {
		w.emitter.Emit(w.ctx, EventHistoryChanged, counts)
	}
}
