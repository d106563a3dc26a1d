// Package refs resolves reference fields: fields whose value is the id of
// a document in another collection. Lookup tables are fetched lazily, once
// per referenced collection, and cached for the session.
package refs

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"docdesk/internal/domain"
)

// DefaultLimit bounds how many documents are pulled per referenced collection.
const DefaultLimit = 1000

// labelCandidates are tried, in order, when no unique string field exists.
var labelCandidates = []string{"label", "name", "title", "username"}

// Fetcher is the part of the API client the resolver needs.
type Fetcher interface {
	GetSchema(ctx context.Context, name string) (*domain.Schema, error)
	ListDocuments(ctx context.Context, name string, view domain.View, q domain.ListQuery) (*domain.DocumentPage, error)
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Toast(ctx context.Context, t domain.Toast)
}

// Resolver caches id/label options per referenced collection.
type Resolver struct {
	fetcher  Fetcher
	notifier Notifier
	limit    int
	log      *zap.SugaredLogger

	mu    sync.RWMutex
	cache map[string][]domain.ReferenceOption
	epoch uint64

	group singleflight.Group
}

// New creates a Resolver. limit <= 0 uses DefaultLimit.
func New(fetcher Fetcher, notifier Notifier, limit int, log *zap.SugaredLogger) *Resolver {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		fetcher:  fetcher,
		notifier: notifier,
		limit:    limit,
		log:      log,
		cache:    make(map[string][]domain.ReferenceOption),
	}
}

// Resolve fills the cache for the named collection. It is a no-op when a
// non-empty cache exists and force is false. Concurrent calls for the same
// collection share one fetch. Failures leave an empty cache and a toast;
// nothing is returned to the caller.
func (r *Resolver) Resolve(ctx context.Context, name string, force bool) {
	r.mu.RLock()
	cached := len(r.cache[name]) > 0
	epoch := r.epoch
	r.mu.RUnlock()
	if cached && !force {
		return
	}

	key := strconv.FormatUint(epoch, 10) + ":" + name
	r.group.Do(key, func() (any, error) {
		opts, err := r.fetch(ctx, name)

		r.mu.Lock()
		stale := r.epoch != epoch
		if !stale {
			if err != nil {
				r.cache[name] = []domain.ReferenceOption{}
			} else {
				r.cache[name] = opts
			}
		}
		r.mu.Unlock()

		if stale {
			r.log.Debugw("[REFS] dropping options fetched before reset", "collection", name)
			return nil, nil
		}
		switch {
		case err != nil:
			r.log.Warnw("[REFS] resolve failed", "collection", name, "error", err)
			r.toast(ctx, domain.Toast{
				Title:       "Reference Error",
				Description: fmt.Sprintf("Failed to load options for %s: %v", name, err),
				Variant:     domain.ToastDestructive,
			})
		case len(opts) == 0:
			r.toast(ctx, domain.Toast{
				Title:       "No Reference Options",
				Description: fmt.Sprintf("No documents found in %s collection", name),
				Variant:     domain.ToastDefault,
			})
		default:
			r.log.Debugw("[REFS] resolved", "collection", name, "options", humanize.Comma(int64(len(opts))))
		}
		return nil, nil
	})
}

// Preload resolves every collection referenced by schema concurrently.
func (r *Resolver) Preload(ctx context.Context, schema *domain.Schema) {
	var g errgroup.Group
	for _, target := range schema.ReferencedCollections() {
		g.Go(func() error {
			r.Resolve(ctx, target, false)
			return nil
		})
	}
	g.Wait()
}

// Options returns a copy of the cached options for a collection.
func (r *Resolver) Options(name string) []domain.ReferenceOption {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opts := r.cache[name]
	if opts == nil {
		return nil
	}
	out := make([]domain.ReferenceOption, len(opts))
	copy(out, opts)
	return out
}

// Label maps a stored id to its display label. It never blocks on the
// network and never fails: unknown ids and non-reference fields come back
// unchanged.
func (r *Resolver) Label(schema *domain.Schema, field, id string) string {
	target, ok := schema.ReferenceTarget(field)
	if !ok {
		return id
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, opt := range r.cache[target] {
		if opt.ID == id {
			return opt.Label
		}
	}
	return id
}

// Reset drops every cached table. Fetches already in flight finish but
// their results are discarded.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string][]domain.ReferenceOption)
	r.epoch++
	r.mu.Unlock()
}

func (r *Resolver) fetch(ctx context.Context, name string) ([]domain.ReferenceOption, error) {
	schema, err := r.fetcher.GetSchema(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}
	labelField := LabelField(schema)

	page, err := r.fetcher.ListDocuments(ctx, name, domain.ViewAll, domain.ListQuery{Limit: r.limit})
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	opts := make([]domain.ReferenceOption, 0, len(page.Items))
	for _, doc := range page.Items {
		id := doc.ID()
		label := id
		if v, ok := doc[labelField]; ok && v != nil && labelField != domain.IdentityField {
			if s := fmt.Sprint(v); s != "" {
				label = s
			}
		}
		opts = append(opts, domain.ReferenceOption{ID: id, Label: label})
	}
	return opts, nil
}

func (r *Resolver) toast(ctx context.Context, t domain.Toast) {
	if r.notifier != nil {
		r.notifier.Toast(ctx, t)
	}
}

// LabelField picks the field used as a document's display label: the first
// unique string property, else the first string-typed candidate name, else
// the identity field.
func LabelField(schema *domain.Schema) string {
	for _, name := range schema.FieldNames() {
		spec, _ := schema.Field(name)
		if spec.BSONType == domain.FieldTypeString && spec.Unique {
			return name
		}
	}
	for _, name := range labelCandidates {
		if spec, ok := schema.Field(name); ok && spec.BSONType == domain.FieldTypeString {
			return name
		}
	}
	return domain.IdentityField
}
