package service

import (
	"context"
	"sync"

	"docdesk/internal/domain"
)

// Events emitted by services.
const (
	EventToast            = "toast"
	EventSessionChanged   = "session:changed"
	EventConnectionStatus = "connection:status"
	EventImportStarted    = "import:started"
	EventImportDone       = "import:done"
	EventReportGenerated  = "report:generated"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from wailsRuntime
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting events to the frontend.
// The App struct implements this by delegating to wailsRuntime.EventsEmit;
// the CLI and MCP server use a logging emitter instead.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

func toast(ctx context.Context, e EventEmitter, title, desc string, variant domain.ToastVariant) {
	e.Emit(ctx, EventToast, domain.Toast{Title: title, Description: desc, Variant: variant})
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
// It is safe for use from the goroutines services start.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the payloads recorded for event, in order.
func (m *MockEmitter) Named(event string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e.Data)
		}
	}
	return out
}

// Toasts returns every toast recorded so far.
func (m *MockEmitter) Toasts() []domain.Toast {
	var out []domain.Toast
	for _, d := range m.Named(EventToast) {
		if t, ok := d.(domain.Toast); ok {
			out = append(out, t)
		}
	}
	return out
}
