package app

import (
	"docdesk/internal/domain"
	"docdesk/internal/grid"
)

// Grid bindings return the snapshot after the operation. Failures are
// already in the snapshot's errorMessage or shown as a toast, so they
// never reject the frontend promise.

func (a *App) state(err error) grid.Snapshot {
	if err != nil {
		a.log.Debugw("[GRID] operation failed", "error", err)
	}
	return a.grid.Snapshot()
}

// GridState returns the current grid snapshot.
func (a *App) GridState() grid.Snapshot {
	return a.grid.Snapshot()
}

// ── Collections and paging ─────────────────────────────────

func (a *App) LoadCollections() grid.Snapshot {
	return a.state(a.grid.LoadCollections(a.ctx))
}

func (a *App) OpenCollection(name string) grid.Snapshot {
	return a.state(a.grid.SetCollection(a.ctx, name))
}

func (a *App) ChangeView(view string) grid.Snapshot {
	return a.state(a.grid.ChangeView(a.ctx, domain.View(view)))
}

func (a *App) SetFilter(filter string) grid.Snapshot {
	return a.state(a.grid.SetFilter(a.ctx, filter))
}

func (a *App) SetPage(page int) grid.Snapshot {
	return a.state(a.grid.SetPage(a.ctx, page))
}

func (a *App) SetPageSize(size int) grid.Snapshot {
	return a.state(a.grid.SetPageSize(a.ctx, size))
}

// LoadNextPage appends the next page (infinite scroll).
func (a *App) LoadNextPage() grid.Snapshot {
	return a.state(a.grid.LoadNextPage(a.ctx))
}

func (a *App) Refresh() grid.Snapshot {
	return a.state(a.grid.Refresh(a.ctx))
}

// ── Cell editing ───────────────────────────────────────────

func (a *App) StartEditingCell(row int, field string) grid.Snapshot {
	return a.state(a.grid.StartEditingCell(a.ctx, row, field))
}

func (a *App) SetEditValue(value any) grid.Snapshot {
	a.grid.SetEditValue(a.ctx, value)
	return a.grid.Snapshot()
}

func (a *App) CancelEdit() grid.Snapshot {
	a.grid.CancelEdit(a.ctx)
	return a.grid.Snapshot()
}

func (a *App) SaveEdit() grid.Snapshot {
	return a.state(a.grid.SaveEdit(a.ctx))
}

// ── New document row ───────────────────────────────────────

func (a *App) StartAdding() grid.Snapshot {
	a.grid.StartAdding(a.ctx)
	return a.grid.Snapshot()
}

func (a *App) CancelAdding() grid.Snapshot {
	a.grid.CancelAdding(a.ctx)
	return a.grid.Snapshot()
}

func (a *App) UpdateDraftField(field string, value any) grid.Snapshot {
	return a.state(a.grid.UpdateDraftField(a.ctx, field, value))
}

func (a *App) SaveNewDocument() grid.Snapshot {
	return a.state(a.grid.SaveNewDocument(a.ctx))
}

// ── Row actions ────────────────────────────────────────────

func (a *App) DeleteDocument(id string) grid.Snapshot {
	return a.state(a.grid.DeleteDocument(a.ctx, id))
}

func (a *App) PinDocument(id string) grid.Snapshot {
	return a.state(a.grid.PinDocument(a.ctx, id))
}

func (a *App) UnpinDocument(id string) grid.Snapshot {
	return a.state(a.grid.UnpinDocument(a.ctx, id))
}

func (a *App) ArchiveDocument(id string) grid.Snapshot {
	return a.state(a.grid.ArchiveDocument(a.ctx, id))
}

func (a *App) RecoverDocument(id string) grid.Snapshot {
	return a.state(a.grid.RecoverDocument(a.ctx, id))
}

// ── Selection ──────────────────────────────────────────────

func (a *App) ToggleRow(id string) grid.Snapshot {
	a.grid.ToggleRow(a.ctx, id)
	return a.grid.Snapshot()
}

func (a *App) SetAllSelected(on bool) grid.Snapshot {
	a.grid.SetAllSelected(a.ctx, on)
	return a.grid.Snapshot()
}

func (a *App) ResetSelection() grid.Snapshot {
	a.grid.ResetSelection(a.ctx)
	return a.grid.Snapshot()
}

func (a *App) BatchDeleteSelected() grid.Snapshot {
	return a.state(a.grid.BatchDeleteSelected(a.ctx))
}

func (a *App) BatchArchiveSelected() grid.Snapshot {
	return a.state(a.grid.BatchArchiveSelected(a.ctx))
}

func (a *App) BatchRecoverSelected() grid.Snapshot {
	return a.state(a.grid.BatchRecoverSelected(a.ctx))
}

// ── Column layout ──────────────────────────────────────────

func (a *App) ToggleColumnVisibility(field string) grid.Snapshot {
	a.grid.ToggleColumnVisibility(a.ctx, field)
	return a.grid.Snapshot()
}

func (a *App) UpdateColumnWidth(field string, px int) grid.Snapshot {
	a.grid.UpdateColumnWidth(a.ctx, field, px)
	return a.grid.Snapshot()
}

func (a *App) ResetColumnWidth(field string) grid.Snapshot {
	a.grid.ResetColumnWidth(a.ctx, field)
	return a.grid.Snapshot()
}

// SetPreviewMode keeps layout edits local instead of saving them to the server.
func (a *App) SetPreviewMode(on bool) grid.Snapshot {
	return a.state(a.grid.SetPreviewMode(a.ctx, on))
}

// ── References ─────────────────────────────────────────────

// ReferenceOptions lists the dropdown choices for a reference field.
func (a *App) ReferenceOptions(field string) []domain.ReferenceOption {
	return a.grid.ReferenceOptions(field)
}

// ReferenceLabel resolves a referenced id to its display label.
func (a *App) ReferenceLabel(field, id string) string {
	return a.grid.Label(field, id)
}

func (a *App) RefreshReferences(field string) []domain.ReferenceOption {
	a.grid.RefreshReferences(a.ctx, field)
	return a.grid.ReferenceOptions(field)
}
