// Package grid holds the data-grid controller: the state behind one
// collection's table (pagination, filter, selection, inline add/edit/delete
// and column layout) and the operations that move it against the API.
package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"docdesk/internal/api"
	"docdesk/internal/domain"
	"docdesk/internal/refs"
)

// Events published through the Emitter.
const (
	EventState = "grid:state"
	EventToast = "toast"
)

const DefaultPageSize = 20

// Emitter is satisfied by service.EventEmitter and the Wails runtime adapter.
type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Backend is the slice of the API client the controller drives.
type Backend interface {
	refs.Fetcher
	ListCollections(ctx context.Context) ([]string, error)
	UpdateUIMetadata(ctx context.Context, name string, ui domain.UIMetadata) error
	CreateDocument(ctx context.Context, name string, doc domain.Document) (string, error)
	UpdateDocument(ctx context.Context, name, id string, patch domain.Document) (*domain.UpdateResult, error)
	DeleteDocument(ctx context.Context, name, id string) error
	PinDocument(ctx context.Context, name, id string) (domain.Document, error)
	UnpinDocument(ctx context.Context, name, id string) (domain.Document, error)
	ArchiveDocument(ctx context.Context, name, id string) (domain.Document, error)
	RecoverDocument(ctx context.Context, name, id string) (domain.Document, error)
	BatchDelete(ctx context.Context, name string, ids []string) (int64, error)
	BatchArchive(ctx context.Context, name string, ids []string) (int64, error)
	BatchRecover(ctx context.Context, name string, ids []string) (int64, error)
}

// Options tunes a Controller.
type Options struct {
	PageSize       int
	ReferenceLimit int
	PersistDelay   time.Duration
	View           domain.View
	Layouts        domain.PreviewLayoutStore
	Logger         *zap.SugaredLogger
	Now            func() time.Time
}

// Controller owns the grid State. Every exported operation commits its
// changes under the mutex and then publishes a snapshot; the mutex is
// never held across a network call.
type Controller struct {
	backend Backend
	emitter Emitter
	refs    *refs.Resolver
	layouts domain.PreviewLayoutStore
	log     *zap.SugaredLogger
	now     func() time.Time
	persist func(func())

	mu    sync.Mutex
	st    State
	epoch uint64 // bumped whenever the loaded dataset is invalidated
}

// New creates a Controller.
func New(backend Backend, emitter Emitter, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PersistDelay <= 0 {
		opts.PersistDelay = 500 * time.Millisecond
	}
	if !opts.View.Valid() {
		opts.View = domain.DefaultView
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		backend: backend,
		emitter: emitter,
		layouts: opts.Layouts,
		log:     opts.Logger,
		now:     opts.Now,
		persist: debounce.New(opts.PersistDelay),
		st: State{
			View:     opts.View,
			Page:     1,
			PageSize: opts.PageSize,
			Selected: mapset.NewThreadUnsafeSet[string](),
		},
	}
	c.refs = refs.New(backend, c, opts.ReferenceLimit, opts.Logger)
	return c
}

// Resolver exposes the reference resolver for label lookups.
func (c *Controller) Resolver() *refs.Resolver { return c.refs }

// Toast publishes a user-facing notification.
func (c *Controller) Toast(ctx context.Context, t domain.Toast) {
	if t.Variant == "" {
		t.Variant = domain.ToastDefault
	}
	if c.emitter != nil {
		c.emitter.Emit(ctx, EventToast, t)
	}
}

func (c *Controller) publish(ctx context.Context) {
	if c.emitter == nil {
		return
	}
	c.emitter.Emit(ctx, EventState, c.Snapshot())
}

func (c *Controller) fail(ctx context.Context, title, msg string) {
	c.Toast(ctx, domain.Toast{Title: title, Description: msg, Variant: domain.ToastDestructive})
}

// ── Collections ────────────────────────────────────────────

// LoadCollections refreshes the list of collection names.
func (c *Controller) LoadCollections(ctx context.Context) error {
	names, err := c.backend.ListCollections(ctx)

	c.mu.Lock()
	if err != nil {
		c.st.ErrorMessage = fmt.Sprintf("Error fetching collections: %v", err)
	} else {
		c.st.Collections = names
	}
	c.mu.Unlock()

	c.publish(ctx)
	return err
}

// SetCollection switches the grid to another collection: all per-collection
// state is reset, then the schema is fetched, then the documents, then the
// reference tables are preloaded.
func (c *Controller) SetCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.st.resetCollection(name)
	preview := c.st.PreviewMode
	c.mu.Unlock()

	c.refs.Reset()
	c.publish(ctx)
	c.log.Infow("[GRID] collection selected", "collection", name)

	schema, schemaErr := c.backend.GetSchema(ctx, name)
	if schemaErr == nil && preview {
		c.applyPreviewLayout(name, schema)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	if schemaErr != nil {
		c.log.Warnw("[GRID] schema fetch failed", "collection", name, "error", schemaErr)
		schema = domain.NewSchema()
		c.st.ErrorMessage = fmt.Sprintf("Schema error: %v", schemaErr)
	}
	c.st.Schema = schema
	c.st.HiddenColumns = append([]string(nil), schema.UI.HiddenColumns...)
	c.mu.Unlock()
	c.publish(ctx)

	fetchErr := c.FetchDocuments(ctx)
	if schemaErr != nil {
		// the document fetch clears the banner; keep the schema failure visible
		c.mu.Lock()
		if c.epoch == epoch && c.st.ErrorMessage == "" {
			c.st.ErrorMessage = fmt.Sprintf("Schema error: %v", schemaErr)
		}
		c.mu.Unlock()
	}
	c.refs.Preload(ctx, schema)
	c.publish(ctx)

	return multierr.Append(schemaErr, fetchErr)
}

func (c *Controller) applyPreviewLayout(name string, schema *domain.Schema) {
	if c.layouts == nil {
		return
	}
	layout, err := c.layouts.GetLayout(name)
	if err != nil {
		c.log.Warnw("[GRID] preview layout unavailable", "collection", name, "error", err)
		return
	}
	if layout != nil {
		schema.UI = *layout
	}
}

// ── Fetching & pagination ──────────────────────────────────

type fetchRequest struct {
	epoch   uint64
	name    string
	view    domain.View
	query   domain.ListQuery
	replace bool
}

// beginFetchLocked snapshots the request parameters; c.mu must be held.
func (c *Controller) beginFetchLocked(replace bool) fetchRequest {
	c.st.IsLoading = true
	c.st.ErrorMessage = ""
	return fetchRequest{
		epoch:   c.epoch,
		name:    c.st.CollectionName,
		view:    c.st.View,
		replace: replace || c.st.Page == 1,
		query: domain.ListQuery{
			Filter: c.st.FilterQuery,
			Page:   c.st.Page,
			Limit:  c.st.PageSize,
		},
	}
}

// FetchDocuments loads the current page. Page 1 replaces the loaded
// documents, later pages are appended.
func (c *Controller) FetchDocuments(ctx context.Context) error {
	c.mu.Lock()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		return ErrNoCollection
	}
	req := c.beginFetchLocked(false)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

func (c *Controller) runFetch(ctx context.Context, req fetchRequest) error {
	c.publish(ctx)
	page, err := c.backend.ListDocuments(ctx, req.name, req.view, req.query)

	c.mu.Lock()
	if c.epoch != req.epoch {
		c.mu.Unlock()
		return nil
	}
	c.st.IsLoading = false
	if err != nil {
		var vErr *api.ValidationError
		if errors.As(err, &vErr) {
			c.st.ErrorMessage = vErr.Message
		} else {
			c.st.ErrorMessage = fmt.Sprintf("Error fetching documents: %v", err)
		}
		if c.st.Page > 1 {
			c.st.Page--
		}
		c.mu.Unlock()
		c.log.Warnw("[GRID] fetch failed", "collection", req.name, "page", req.query.Page, "error", err)
		c.publish(ctx)
		return err
	}

	if req.replace {
		c.st.Documents = page.Items
	} else {
		c.st.Documents = append(c.st.Documents, page.Items...)
	}
	c.st.Total = page.Total
	if c.st.Page > 1 && len(page.Items) == 0 {
		c.st.Page--
	}
	c.st.HasMore = c.st.Page*c.st.PageSize < c.st.Total
	c.mu.Unlock()

	c.publish(ctx)
	return nil
}

// LoadNextPage appends the next page when one exists and nothing is loading.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	c.mu.Lock()
	if !c.st.HasMore || c.st.IsLoading || c.st.CollectionName == "" {
		c.mu.Unlock()
		return nil
	}
	c.st.Page++
	req := c.beginFetchLocked(false)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// ChangeView switches the logical view and reloads from page 1.
func (c *Controller) ChangeView(ctx context.Context, view domain.View) error {
	if !view.Valid() {
		return &api.ValidationError{Field: "view", Message: fmt.Sprintf("unknown view %q", view)}
	}
	c.mu.Lock()
	if view == c.st.View {
		c.mu.Unlock()
		return nil
	}
	c.st.View = view
	c.restartLocked()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	req := c.beginFetchLocked(true)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// SetFilter replaces the filter query and reloads from page 1.
func (c *Controller) SetFilter(ctx context.Context, filter string) error {
	c.mu.Lock()
	c.st.FilterQuery = filter
	c.restartLocked()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	req := c.beginFetchLocked(true)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// SetPage jumps to page n, clamped to [1, totalPages], replacing the rows.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	c.mu.Lock()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		return ErrNoCollection
	}
	c.st.Page = min(max(n, 1), c.st.totalPages())
	c.epoch++
	req := c.beginFetchLocked(true)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// SetPageSize changes the page size and reloads from page 1.
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	if size < 1 {
		return &api.ValidationError{Field: "pageSize", Message: "page size must be positive"}
	}
	c.mu.Lock()
	c.st.PageSize = size
	c.restartLocked()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	req := c.beginFetchLocked(true)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// restartLocked drops the loaded rows and pagination; in-flight fetches
// for the old dataset are ignored when they land.
func (c *Controller) restartLocked() {
	c.epoch++
	c.st.Page = 1
	c.st.Documents = nil
	c.st.HasMore = false
	c.st.IsLoading = false
	c.st.Selected.Clear()
	c.st.Editing = nil
	c.st.EditValue = nil
}

// Refresh reloads page 1 of the current view.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		return ErrNoCollection
	}
	c.restartLocked()
	req := c.beginFetchLocked(true)
	c.mu.Unlock()
	return c.runFetch(ctx, req)
}

// ── References ─────────────────────────────────────────────

// Label maps a reference id to its display label; see refs.Resolver.Label.
func (c *Controller) Label(field, id string) string {
	c.mu.Lock()
	schema := c.st.Schema
	c.mu.Unlock()
	return c.refs.Label(schema, field, id)
}

// ReferenceOptions returns the cached options for a reference field.
func (c *Controller) ReferenceOptions(field string) []domain.ReferenceOption {
	c.mu.Lock()
	schema := c.st.Schema
	c.mu.Unlock()
	target, ok := schema.ReferenceTarget(field)
	if !ok {
		return nil
	}
	return c.refs.Options(target)
}

// RefreshReferences force-refetches the options of a reference field.
func (c *Controller) RefreshReferences(ctx context.Context, field string) {
	c.mu.Lock()
	schema := c.st.Schema
	c.mu.Unlock()
	if target, ok := schema.ReferenceTarget(field); ok {
		c.refs.Resolve(ctx, target, true)
	}
}
