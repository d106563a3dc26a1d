package grid_test

import (
	"context"
	"fmt"
	"sync"

	"docdesk/internal/domain"
	"docdesk/internal/grid"
)

// fakeBackend serves documents out of memory and records every write.
type fakeBackend struct {
	mu sync.Mutex

	schemas map[string]*domain.Schema
	docs    map[string][]domain.Document

	calls       []string
	listCalls   []domain.ListQuery
	listErr     error
	schemaErr   error
	createErr   error
	updateErr   error
	deleteErr   error
	updateDoc   bool
	updates     []domain.Document
	created     []domain.Document
	deleted     []string
	uiWrites    []domain.UIMetadata
	batchCalls  map[string][]string
	pinnedField string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		schemas:    map[string]*domain.Schema{},
		docs:       map[string][]domain.Document{},
		batchCalls: map[string][]string{},
	}
}

func (f *fakeBackend) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.schemas {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeBackend) GetSchema(_ context.Context, name string) (*domain.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "schema:"+name)
	if f.schemaErr != nil {
		return nil, f.schemaErr
	}
	s, ok := f.schemas[name]
	if !ok {
		return nil, fmt.Errorf("no schema for %s", name)
	}
	cp := *s
	cp.UI = s.UI.Clone()
	return &cp, nil
}

func (f *fakeBackend) ListDocuments(_ context.Context, name string, _ domain.View, q domain.ListQuery) (*domain.DocumentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list:"+name)
	f.listCalls = append(f.listCalls, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	all := f.docs[name]
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+q.Limit, len(all))
	items := make([]domain.Document, 0, end-start)
	for _, d := range all[start:end] {
		cp := domain.Document{}
		for k, v := range d {
			cp[k] = v
		}
		items = append(items, cp)
	}
	return &domain.DocumentPage{Items: items, Total: len(all)}, nil
}

func (f *fakeBackend) UpdateUIMetadata(_ context.Context, _ string, ui domain.UIMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uiWrites = append(f.uiWrites, ui)
	return nil
}

func (f *fakeBackend) CreateDocument(_ context.Context, _ string, doc domain.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, doc)
	return domain.NewObjectIDHex(), nil
}

// UpdateDocument answers with the stored document, patched and stamped with
// updatedAt, when updateDoc is set; otherwise only the modified count.
func (f *fakeBackend) UpdateDocument(_ context.Context, name string, id string, patch domain.Document) (*domain.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, patch)
	res := &domain.UpdateResult{Success: true, ModifiedCount: 1}
	if f.updateDoc {
		doc := domain.Document{"_id": id}
		for _, d := range f.docs[name] {
			if d["_id"] == id {
				for k, v := range d {
					doc[k] = v
				}
			}
		}
		for k, v := range patch {
			doc[k] = v
		}
		doc["updatedAt"] = "2024-01-02T00:00:00.000Z"
		res.Document = doc
	}
	return res, nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) flag(id string, v bool) domain.Document {
	return domain.Document{"_id": id, f.pinnedField: v}
}

func (f *fakeBackend) PinDocument(_ context.Context, _ string, id string) (domain.Document, error) {
	return f.flag(id, true), nil
}

func (f *fakeBackend) UnpinDocument(_ context.Context, _ string, id string) (domain.Document, error) {
	return f.flag(id, false), nil
}

func (f *fakeBackend) ArchiveDocument(_ context.Context, _ string, id string) (domain.Document, error) {
	return domain.Document{"_id": id}, nil
}

func (f *fakeBackend) RecoverDocument(_ context.Context, _ string, id string) (domain.Document, error) {
	return domain.Document{"_id": id}, nil
}

func (f *fakeBackend) batch(op string, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls[op] = append([]string(nil), ids...)
	return int64(len(ids)), nil
}

func (f *fakeBackend) BatchDelete(_ context.Context, _ string, ids []string) (int64, error) {
	return f.batch("delete", ids)
}

func (f *fakeBackend) BatchArchive(_ context.Context, _ string, ids []string) (int64, error) {
	return f.batch("archive", ids)
}

func (f *fakeBackend) BatchRecover(_ context.Context, _ string, ids []string) (int64, error) {
	return f.batch("recover", ids)
}

func (f *fakeBackend) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) uiWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uiWrites)
}

var _ grid.Backend = (*fakeBackend)(nil)

// recorder is a concurrency-safe emitter that keeps the toasts.
type recorder struct {
	mu     sync.Mutex
	toasts []domain.Toast
	states int
}

func (r *recorder) Emit(_ context.Context, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch event {
	case grid.EventToast:
		r.toasts = append(r.toasts, data.(domain.Toast))
	case grid.EventState:
		r.states++
	}
}

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.toasts))
	for _, t := range r.toasts {
		out = append(out, t.Title)
	}
	return out
}

// memLayouts is an in-memory PreviewLayoutStore.
type memLayouts struct {
	mu      sync.Mutex
	layouts map[string]domain.UIMetadata
}

func (m *memLayouts) SaveLayout(collection string, ui domain.UIMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.layouts == nil {
		m.layouts = map[string]domain.UIMetadata{}
	}
	m.layouts[collection] = ui.Clone()
	return nil
}

func (m *memLayouts) GetLayout(collection string) (*domain.UIMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ui, ok := m.layouts[collection]
	if !ok {
		return nil, nil
	}
	cp := ui.Clone()
	return &cp, nil
}

func (m *memLayouts) DeleteLayout(collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.layouts, collection)
	return nil
}

func (m *memLayouts) has(collection string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.layouts[collection]
	return ok
}
