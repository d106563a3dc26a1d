package grid

import (
	"context"
	"fmt"
	"time"

	"docdesk/internal/domain"
)

// DraftDefaults builds a new document pre-populated with a default for
// every required field except the server-owned ones. objectId fields are
// left absent.
func DraftDefaults(schema *domain.Schema, now time.Time) domain.Document {
	draft := domain.Document{}
	for _, name := range schema.FieldNames() {
		if !schema.IsRequired(name) || !Editable(name) {
			continue
		}
		spec, _ := schema.Field(name)
		switch spec.BSONType {
		case domain.FieldTypeString:
			draft[name] = ""
		case domain.FieldTypeInt, domain.FieldTypeLong, domain.FieldTypeDouble, domain.FieldTypeDecimal:
			draft[name] = 0
		case domain.FieldTypeBool:
			draft[name] = false
		case domain.FieldTypeDate:
			draft[name] = now.UTC().Format(ISOLayout)
		case domain.FieldTypeObjectID:
		case domain.FieldTypeObject:
			draft[name] = map[string]any{}
		case domain.FieldTypeArray:
			draft[name] = []any{}
		default:
			draft[name] = nil
		}
	}
	return draft
}

// StartAdding opens the add-row with a fresh draft.
func (c *Controller) StartAdding(ctx context.Context) {
	c.mu.Lock()
	c.st.IsAdding = true
	c.st.Draft = DraftDefaults(c.st.Schema, c.now())
	c.st.AddingRowError = false
	c.st.ErrorColumn = ""
	c.mu.Unlock()
	c.publish(ctx)
}

// CancelAdding discards the draft.
func (c *Controller) CancelAdding(ctx context.Context) {
	c.mu.Lock()
	c.st.IsAdding = false
	c.st.Draft = nil
	c.st.AddingRowError = false
	c.st.ErrorColumn = ""
	c.mu.Unlock()
	c.publish(ctx)
}

// UpdateDraftField sets one draft field. String input for typed fields is
// coerced the same way a cell edit is.
func (c *Controller) UpdateDraftField(ctx context.Context, field string, value any) error {
	c.mu.Lock()
	if !c.st.IsAdding || c.st.Draft == nil {
		c.mu.Unlock()
		return nil
	}
	if s, ok := value.(string); ok {
		spec, known := c.st.Schema.Field(field)
		_, isRef := c.st.Schema.ReferenceTarget(field)
		if known && spec.BSONType != domain.FieldTypeString {
			coerced, err := Coerce(field, spec, isRef, s)
			if err != nil {
				c.st.ErrorColumn = field
				c.st.AddingRowError = true
				c.st.ErrorMessage = err.Error()
				c.mu.Unlock()
				c.publish(ctx)
				return err
			}
			value = coerced
		}
	}
	c.st.Draft[field] = value
	if c.st.ErrorColumn == field {
		c.st.ErrorColumn = ""
		c.st.AddingRowError = false
	}
	c.mu.Unlock()
	c.publish(ctx)
	return nil
}

// SaveNewDocument posts the draft. On success the add-row closes and the
// list reloads from page 1; on a duplicate-key failure the offending column
// is flagged.
func (c *Controller) SaveNewDocument(ctx context.Context) error {
	c.mu.Lock()
	if !c.st.IsAdding || c.st.Draft == nil {
		c.mu.Unlock()
		return nil
	}
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		return ErrNoCollection
	}
	name, epoch := c.st.CollectionName, c.epoch
	draft := cloneDocument(c.st.Draft)
	c.st.IsSaving = true
	c.st.AddingRowError = false
	c.st.ErrorColumn = ""
	c.mu.Unlock()
	c.publish(ctx)

	_, err := c.backend.CreateDocument(ctx, name, draft)

	c.mu.Lock()
	c.st.IsSaving = false
	if c.epoch != epoch {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	if err != nil {
		c.st.AddingRowError = true
		if dup, ok := AsDuplicateKey(err); ok {
			c.st.ErrorColumn = dup.Field
			c.st.ErrorMessage = dup.Error()
			err = dup
		} else {
			c.st.ErrorMessage = fmt.Sprintf("Error creating document: %v", err)
		}
		msg := c.st.ErrorMessage
		c.mu.Unlock()
		c.log.Warnw("[GRID] create failed", "collection", name, "error", err)
		c.fail(ctx, "Create Error", msg)
		c.publish(ctx)
		return err
	}

	c.st.IsAdding = false
	c.st.Draft = nil
	c.restartLocked()
	req := c.beginFetchLocked(true)
	c.mu.Unlock()

	c.Toast(ctx, domain.Toast{Title: "Success", Description: "Document created successfully."})
	return c.runFetch(ctx, req)
}
