package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"docdesk/internal/csvimport"
	"docdesk/internal/domain"
)

// ErrImportRunning is returned when a collection already has an import in flight.
var ErrImportRunning = errors.New("an import into this collection is already running")

// Suffixes given to dropped files once processed, so the watcher
// does not pick them up again.
const (
	importedSuffix = ".imported"
	failedSuffix   = ".failed"
)

// CSVDownloader streams a collection export.
type CSVDownloader interface {
	DownloadCSV(ctx context.Context, name string, w io.Writer) (int64, error)
}

// ImportService runs CSV imports and exports, records import history and
// owns the drop-folder watcher.
type ImportService struct {
	importer   *csvimport.Importer
	downloader CSVDownloader
	runs       domain.ImportRunStore
	emitter    EventEmitter
	log        *zap.SugaredLogger
	guard      runningJobsGuard
	watcher    *csvimport.Watcher
}

// NewImportService creates an ImportService. runs may be nil, in which
// case no history is kept.
func NewImportService(importer *csvimport.Importer, downloader CSVDownloader, runs domain.ImportRunStore, emitter EventEmitter, log *zap.SugaredLogger) *ImportService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ImportService{importer: importer, downloader: downloader, runs: runs, emitter: emitter, log: log}
}

// ImportFile imports the CSV at path into collection.
func (s *ImportService) ImportFile(ctx context.Context, collection, path string) (*csvimport.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.Import(ctx, collection, filepath.Base(path), f)
}

// Import reads CSV rows from r into collection. Only one import per
// collection runs at a time. Row failures are reported in the summary,
// not as an error.
func (s *ImportService) Import(ctx context.Context, collection, source string, r io.Reader) (*csvimport.Summary, error) {
	if !s.guard.TryLock(collection) {
		return nil, ErrImportRunning
	}
	defer s.guard.Unlock(collection)

	s.emitter.Emit(ctx, EventImportStarted, map[string]string{"collection": collection, "source": source})
	start := time.Now()

	sum, err := s.importer.Import(ctx, collection, source, r)
	if err != nil {
		s.log.Errorw("[IMPORT] aborted", "collection", collection, "source", source, "error", err)
		toast(ctx, s.emitter, "Import Error", err.Error(), domain.ToastDestructive)
		return sum, err
	}

	if s.runs != nil {
		run := &domain.ImportRun{
			Collection: collection,
			Source:     source,
			Rows:       sum.Rows,
			Inserted:   sum.Inserted,
			Failed:     sum.Failed,
			Errors:     sum.Errors,
		}
		if err := s.runs.CreateRun(run); err != nil {
			s.log.Warnw("[IMPORT] history not recorded", "collection", collection, "error", err)
		}
	}

	s.emitter.Emit(ctx, EventImportDone, sum)
	desc := fmt.Sprintf("%s rows imported into %s in %s", humanize.Comma(int64(sum.Inserted)), collection,
		time.Since(start).Round(time.Millisecond))
	if sum.Failed > 0 {
		desc += fmt.Sprintf(", %s failed", humanize.Comma(int64(sum.Failed)))
		toast(ctx, s.emitter, "Import finished with errors", desc, domain.ToastDestructive)
	} else {
		toast(ctx, s.emitter, "Import complete", desc, domain.ToastDefault)
	}
	return sum, nil
}

// Running lists the collections with an import in flight.
func (s *ImportService) Running() []string { return s.guard.Running() }

// History lists recorded imports, newest first.
func (s *ImportService) History(collection string, limit int) ([]domain.ImportRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(collection, limit)
}

// ExportCSV downloads collection as CSV into path and returns its size.
func (s *ImportService) ExportCSV(ctx context.Context, collection, path string) (int64, error) {
	if s.downloader == nil {
		return 0, errors.New("export not available")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := s.downloader.DownloadCSV(ctx, collection, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		toast(ctx, s.emitter, "Export Error", err.Error(), domain.ToastDestructive)
		return 0, err
	}
	s.log.Infow("[EXPORT] done", "collection", collection, "path", path, "bytes", n)
	toast(ctx, s.emitter, "Export complete",
		fmt.Sprintf("%s written to %s", humanize.Bytes(uint64(n)), filepath.Base(path)), domain.ToastDefault)
	return n, nil
}

// ── Drop folder ────────────────────────────────────────────

// Watch starts importing CSV files dropped into <root>/<collection>/.
// Processed files are renamed with an .imported or .failed suffix.
func (s *ImportService) Watch(ctx context.Context, root string, settle time.Duration) error {
	w, err := csvimport.NewWatcher(root, settle, s.handleDrop, s.log)
	if err != nil {
		return err
	}
	s.watcher = w
	go w.Run(ctx)
	s.log.Infow("[IMPORT] drop folder ready", "root", w.Root())
	return nil
}

func (s *ImportService) handleDrop(ctx context.Context, collection, path string) {
	sum, err := s.ImportFile(ctx, collection, path)
	if errors.Is(err, ErrImportRunning) {
		s.log.Warnw("[IMPORT] dropped file skipped, collection busy", "path", path)
		return
	}
	suffix := importedSuffix
	if err != nil || (sum != nil && sum.Failed > 0) {
		suffix = failedSuffix
	}
	if rerr := os.Rename(path, path+suffix); rerr != nil {
		s.log.Warnw("[IMPORT] cannot mark dropped file", "path", path, "error", rerr)
	}
}

// Close stops the watcher and waits for running imports.
func (s *ImportService) Close(ctx context.Context) error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.guard.WaitAll(ctx)
	return err
}
