package grid

import (
	"context"
	"fmt"

	"docdesk/internal/api"
	"docdesk/internal/domain"
)

// StartEditingCell opens the cell editor on (row, field), abandoning any
// edit already open. It is refused while a save is in flight and for
// server-owned fields.
func (c *Controller) StartEditingCell(ctx context.Context, row int, field string) error {
	c.mu.Lock()
	if c.st.IsSaving {
		c.mu.Unlock()
		return ErrSaving
	}
	if !Editable(field) {
		c.mu.Unlock()
		return &api.ValidationError{Field: field, Message: fmt.Sprintf("field %q is not editable", field)}
	}
	if row < 0 || row >= len(c.st.Documents) {
		c.mu.Unlock()
		return &api.ValidationError{Field: field, Message: fmt.Sprintf("row %d out of range", row)}
	}

	spec, _ := c.st.Schema.Field(field)
	target, isRef := c.st.Schema.ReferenceTarget(field)
	c.st.Editing = &CellRef{Row: row, Field: field}
	c.st.EditValue = StageValue(spec, isRef, c.st.Documents[row][field])
	c.st.EditError = ""
	c.mu.Unlock()

	if isRef {
		go c.refs.Resolve(context.WithoutCancel(ctx), target, false)
	}
	c.publish(ctx)
	return nil
}

// SetEditValue replaces the edit buffer.
func (c *Controller) SetEditValue(ctx context.Context, v any) {
	c.mu.Lock()
	if c.st.Editing == nil {
		c.mu.Unlock()
		return
	}
	c.st.EditValue = v
	c.mu.Unlock()
	c.publish(ctx)
}

// CancelEdit closes the editor without saving.
func (c *Controller) CancelEdit(ctx context.Context) {
	c.mu.Lock()
	c.st.Editing = nil
	c.st.EditValue = nil
	c.st.EditError = ""
	c.mu.Unlock()
	c.publish(ctx)
}

// SaveEdit coerces the buffer to the field type and writes it. An unchanged
// value closes the editor without a network call. On failure the editor
// stays open.
func (c *Controller) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	cell := c.st.Editing
	if cell == nil || c.st.IsSaving {
		c.mu.Unlock()
		return nil
	}
	if cell.Row >= len(c.st.Documents) {
		c.st.Editing = nil
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}

	doc := c.st.Documents[cell.Row]
	id := doc.ID()
	original := doc[cell.Field]
	spec, _ := c.st.Schema.Field(cell.Field)
	_, isRef := c.st.Schema.ReferenceTarget(cell.Field)

	value, err := Coerce(cell.Field, spec, isRef, c.st.EditValue)
	if err != nil {
		c.st.EditError = err.Error()
		c.st.ErrorMessage = err.Error()
		c.mu.Unlock()
		c.publish(ctx)
		return err
	}
	if JSONEqual(value, original) {
		c.st.Editing = nil
		c.st.EditValue = nil
		c.st.EditError = ""
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}

	name, epoch := c.st.CollectionName, c.epoch
	c.st.IsSaving = true
	c.mu.Unlock()
	c.publish(ctx)

	res, err := c.backend.UpdateDocument(ctx, name, id, domain.Document{cell.Field: value})

	c.mu.Lock()
	c.st.IsSaving = false
	if c.epoch != epoch {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	if err != nil {
		msg := fmt.Sprintf("Error updating field '%s': %v", cell.Field, err)
		c.st.ErrorMessage = msg
		c.st.EditError = msg
		c.mu.Unlock()
		c.log.Warnw("[GRID] update failed", "collection", name, "id", id, "field", cell.Field, "error", err)
		c.fail(ctx, "Update Error", msg)
		c.publish(ctx)
		return err
	}

	if idx := c.st.indexOf(id); idx >= 0 {
		switch {
		case res.Document != nil:
			c.st.Documents[idx] = res.Document
		case res.ModifiedCount > 0:
			patched := cloneDocument(c.st.Documents[idx])
			patched[cell.Field] = value
			c.st.Documents[idx] = patched
		}
	}
	c.st.Editing = nil
	c.st.EditValue = nil
	c.st.EditError = ""
	c.st.ErrorMessage = ""
	c.mu.Unlock()

	c.publish(ctx)
	return nil
}
