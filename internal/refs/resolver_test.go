package refs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/domain"
	"docdesk/internal/refs"
)

type fakeFetcher struct {
	schemas   map[string]*domain.Schema
	docs      map[string][]domain.Document
	fail      error
	gate      chan struct{}
	listCalls atomic.Int32
}

func (f *fakeFetcher) GetSchema(_ context.Context, name string) (*domain.Schema, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if s, ok := f.schemas[name]; ok {
		return s, nil
	}
	return domain.NewSchema(), nil
}

func (f *fakeFetcher) ListDocuments(_ context.Context, name string, _ domain.View, _ domain.ListQuery) (*domain.DocumentPage, error) {
	f.listCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return &domain.DocumentPage{Items: f.docs[name], Total: len(f.docs[name])}, nil
}

type toastRecorder struct {
	mu     sync.Mutex
	toasts []domain.Toast
}

func (r *toastRecorder) Toast(_ context.Context, t domain.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *toastRecorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, t := range r.toasts {
		out = append(out, t.Title)
	}
	return out
}

func (r *toastRecorder) variants() []domain.ToastVariant {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ToastVariant
	for _, t := range r.toasts {
		out = append(out, t.Variant)
	}
	return out
}

func oid(hex string) map[string]any { return domain.ObjectIDRef(hex) }

func studentSchema() *domain.Schema {
	return domain.NewSchema().
		AddField("course", domain.FieldSpec{BSONType: domain.FieldTypeString, Description: "REF:courses"}).
		AddField("name", domain.FieldSpec{BSONType: domain.FieldTypeString})
}

func TestLabelField_Precedence(t *testing.T) {
	unique := domain.NewSchema().
		AddField("name", domain.FieldSpec{BSONType: domain.FieldTypeString}).
		AddField("code", domain.FieldSpec{BSONType: domain.FieldTypeString, Unique: true})
	assert.Equal(t, "code", refs.LabelField(unique))

	candidates := domain.NewSchema().
		AddField("label", domain.FieldSpec{BSONType: domain.FieldTypeInt}).
		AddField("title", domain.FieldSpec{BSONType: domain.FieldTypeString}).
		AddField("name", domain.FieldSpec{BSONType: domain.FieldTypeString})
	assert.Equal(t, "name", refs.LabelField(candidates), "name precedes title in the candidate list")

	none := domain.NewSchema().AddField("count", domain.FieldSpec{BSONType: domain.FieldTypeInt})
	assert.Equal(t, "_id", refs.LabelField(none))
}

func TestResolve_CachesOptionsAndLabels(t *testing.T) {
	f := &fakeFetcher{
		schemas: map[string]*domain.Schema{
			"courses": domain.NewSchema().AddField("code", domain.FieldSpec{BSONType: domain.FieldTypeString, Unique: true}),
		},
		docs: map[string][]domain.Document{
			"courses": {
				{"_id": oid("c1"), "code": "BSIT"},
				{"_id": oid("c2")},
			},
		},
	}
	r := refs.New(f, &toastRecorder{}, 0, nil)
	r.Resolve(context.Background(), "courses", false)

	assert.Equal(t, []domain.ReferenceOption{{ID: "c1", Label: "BSIT"}, {ID: "c2", Label: "c2"}}, r.Options("courses"))

	schema := studentSchema()
	assert.Equal(t, "BSIT", r.Label(schema, "course", "c1"))
	assert.Equal(t, "missing", r.Label(schema, "course", "missing"))
	assert.Equal(t, "c1", r.Label(schema, "name", "c1"), "non-reference fields pass through")

	r.Resolve(context.Background(), "courses", false)
	assert.EqualValues(t, 1, f.listCalls.Load(), "non-empty cache is reused")

	r.Resolve(context.Background(), "courses", true)
	assert.EqualValues(t, 2, f.listCalls.Load(), "force refetches")
}

func TestResolve_FailureCachesEmptyAndToasts(t *testing.T) {
	toasts := &toastRecorder{}
	r := refs.New(&fakeFetcher{fail: errors.New("offline")}, toasts, 0, nil)

	r.Resolve(context.Background(), "courses", false)

	opts := r.Options("courses")
	require.NotNil(t, opts)
	assert.Empty(t, opts)
	assert.Equal(t, []string{"Reference Error"}, toasts.titles())
	assert.Equal(t, []domain.ToastVariant{domain.ToastDestructive}, toasts.variants())
}

func TestResolve_EmptyCollectionToasts(t *testing.T) {
	toasts := &toastRecorder{}
	r := refs.New(&fakeFetcher{}, toasts, 0, nil)
	r.Resolve(context.Background(), "courses", false)
	assert.Equal(t, []string{"No Reference Options"}, toasts.titles())
	assert.Equal(t, []domain.ToastVariant{domain.ToastDefault}, toasts.variants(), "an empty collection is not an error")
}

func TestResolve_SingleFlightPerCollection(t *testing.T) {
	f := &fakeFetcher{
		gate: make(chan struct{}),
		docs: map[string][]domain.Document{"courses": {{"_id": oid("c1"), "name": "IT"}}},
	}
	r := refs.New(f, &toastRecorder{}, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Resolve(context.Background(), "courses", false)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.EqualValues(t, 1, f.listCalls.Load())
	assert.Len(t, r.Options("courses"), 1)
}

func TestLabel_NeverBlocksWhileFetchInFlight(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	r := refs.New(f, &toastRecorder{}, 0, nil)
	go r.Resolve(context.Background(), "courses", false)
	defer close(f.gate)

	done := make(chan string, 1)
	go func() { done <- r.Label(studentSchema(), "course", "c9") }()
	select {
	case label := <-done:
		assert.Equal(t, "c9", label)
	case <-time.After(time.Second):
		t.Fatal("Label blocked on an in-flight fetch")
	}
}

func TestReset_DropsStaleResults(t *testing.T) {
	f := &fakeFetcher{
		gate: make(chan struct{}),
		docs: map[string][]domain.Document{"courses": {{"_id": oid("c1"), "name": "IT"}}},
	}
	r := refs.New(f, &toastRecorder{}, 0, nil)

	done := make(chan struct{})
	go func() {
		r.Resolve(context.Background(), "courses", false)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	r.Reset()
	close(f.gate)
	<-done

	assert.Nil(t, r.Options("courses"))
}

func TestPreload_ResolvesEveryReferencedCollection(t *testing.T) {
	f := &fakeFetcher{docs: map[string][]domain.Document{
		"courses":  {{"_id": oid("c1"), "name": "IT"}},
		"purposes": {{"_id": oid("p1"), "name": "Study"}},
	}}
	schema := studentSchema().
		AddField("purpose", domain.FieldSpec{BSONType: domain.FieldTypeString, Description: "REF:purposes"}).
		AddField("alt_course", domain.FieldSpec{BSONType: domain.FieldTypeString, Description: "REF:courses"})

	r := refs.New(f, &toastRecorder{}, 0, nil)
	r.Preload(context.Background(), schema)

	assert.Len(t, r.Options("courses"), 1)
	assert.Len(t, r.Options("purposes"), 1)
	assert.EqualValues(t, 2, f.listCalls.Load())
}
