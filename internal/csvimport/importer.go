package csvimport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docdesk/internal/domain"
)

// Backend is what an import needs from the API client.
type Backend interface {
	GetSchema(ctx context.Context, name string) (*domain.Schema, error)
	CreateDocument(ctx context.Context, name string, doc domain.Document) (string, error)
}

// Summary reports the outcome of one import.
type Summary struct {
	Collection string   `json:"collection"`
	Source     string   `json:"source"`
	Rows       int      `json:"rows"`
	Inserted   int      `json:"inserted"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
	// Err combines every row error; nil when all rows went in.
	Err error `json:"-"`
}

// Importer posts CSV rows to a collection.
type Importer struct {
	backend     Backend
	log         *zap.SugaredLogger
	concurrency int
}

// NewImporter creates an Importer. concurrency bounds the number of
// in-flight inserts; values below 1 mean sequential.
func NewImporter(backend Backend, concurrency int, log *zap.SugaredLogger) *Importer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Importer{backend: backend, log: log, concurrency: max(concurrency, 1)}
}

// Import parses r and inserts every row into collection. A row that fails
// conversion or insertion is counted and reported without stopping the
// others. The returned error is only for failures that stop the whole
// import: an unreadable file or a cancelled context.
func (im *Importer) Import(ctx context.Context, collection, source string, r io.Reader) (*Summary, error) {
	table, err := Parse(r)
	if err != nil {
		return nil, err
	}

	schema, err := im.backend.GetSchema(ctx, collection)
	if err != nil {
		im.log.Warnw("[IMPORT] schema unavailable, typing columns dynamically", "collection", collection, "error", err)
		schema = nil
	}

	sum := &Summary{Collection: collection, Source: source, Rows: len(table.Records)}
	rowErrs := make([]error, len(table.Records))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)
	for i, rec := range table.Records {
		line := table.Lines[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := Convert(schema, table.Headers, rec)
			if err == nil {
				_, err = im.backend.CreateDocument(gctx, collection, doc)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rowErrs[i] = fmt.Errorf("line %d: %w", line, err)
				sum.Failed++
				return nil
			}
			sum.Inserted++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, fmt.Errorf("import %s: %w", collection, err)
	}

	sum.Err = multierr.Combine(rowErrs...)
	for _, e := range multierr.Errors(sum.Err) {
		sum.Errors = append(sum.Errors, e.Error())
	}
	im.log.Infow("[IMPORT] done", "collection", collection, "source", source,
		"inserted", sum.Inserted, "failed", sum.Failed)
	return sum, nil
}
