package grid

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"docdesk/internal/domain"
)

// ToggleColumnVisibility flips a column between shown and hidden and
// schedules a layout save.
func (c *Controller) ToggleColumnVisibility(ctx context.Context, field string) {
	c.mu.Lock()
	if lo.Contains(c.st.HiddenColumns, field) {
		c.st.HiddenColumns = lo.Without(c.st.HiddenColumns, field)
	} else {
		c.st.HiddenColumns = append(c.st.HiddenColumns, field)
	}
	if c.st.Schema != nil {
		c.st.Schema.UI.HiddenColumns = append([]string(nil), c.st.HiddenColumns...)
	}
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.publish(ctx)
}

// UpdateColumnWidth records a resized column, never narrower than
// MinColumnWidth, and schedules a layout save. Bursts of resize events
// collapse into one write.
func (c *Controller) UpdateColumnWidth(ctx context.Context, field string, px int) {
	c.mu.Lock()
	if c.st.Schema == nil {
		c.mu.Unlock()
		return
	}
	if c.st.Schema.UI.ColumnWidths == nil {
		c.st.Schema.UI.ColumnWidths = make(map[string]int)
	}
	c.st.Schema.UI.ColumnWidths[field] = max(px, MinColumnWidth)
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.publish(ctx)
}

// ResetColumnWidth drops a stored width so the column falls back to auto.
func (c *Controller) ResetColumnWidth(ctx context.Context, field string) {
	c.mu.Lock()
	if c.st.Schema == nil {
		c.mu.Unlock()
		return
	}
	delete(c.st.Schema.UI.ColumnWidths, field)
	c.schedulePersistLocked()
	c.mu.Unlock()
	c.publish(ctx)
}

// schedulePersistLocked debounces a layout save of the current UI metadata.
// The collection and layout are captured now, so a later collection switch
// cannot redirect the write.
func (c *Controller) schedulePersistLocked() {
	if c.st.CollectionName == "" || c.st.Schema == nil {
		return
	}
	name := c.st.CollectionName
	ui := c.st.Schema.UI.Clone()
	preview := c.st.PreviewMode
	c.persist(func() { c.persistLayout(name, ui, preview) })
}

func (c *Controller) persistLayout(name string, ui domain.UIMetadata, preview bool) {
	ctx := context.Background()
	var err error
	if preview && c.layouts != nil {
		err = c.layouts.SaveLayout(name, ui)
	} else {
		err = c.backend.UpdateUIMetadata(ctx, name, ui)
	}
	if err != nil {
		c.log.Warnw("[GRID] layout save failed", "collection", name, "preview", preview, "error", err)
		c.fail(ctx, "Layout Error", fmt.Sprintf("Could not save column layout: %v", err))
		return
	}
	c.log.Debugw("[GRID] layout saved", "collection", name, "preview", preview)
}

// SetPreviewMode switches where layout changes go. In preview mode they
// stay in the local store; leaving it discards the local layout and
// reloads the server's.
func (c *Controller) SetPreviewMode(ctx context.Context, on bool) error {
	c.mu.Lock()
	if c.st.PreviewMode == on {
		c.mu.Unlock()
		return nil
	}
	c.st.PreviewMode = on
	name := c.st.CollectionName
	c.mu.Unlock()

	if name == "" {
		c.publish(ctx)
		return nil
	}

	if on {
		if c.layouts != nil {
			c.mu.Lock()
			if c.st.Schema != nil {
				if layout, err := c.layouts.GetLayout(name); err == nil && layout != nil {
					c.st.Schema.UI = *layout
					c.st.HiddenColumns = append([]string(nil), layout.HiddenColumns...)
				}
			}
			c.mu.Unlock()
		}
		c.publish(ctx)
		return nil
	}

	if c.layouts != nil {
		if err := c.layouts.DeleteLayout(name); err != nil {
			c.log.Warnw("[GRID] drop preview layout", "collection", name, "error", err)
		}
	}
	schema, err := c.backend.GetSchema(ctx, name)
	if err != nil {
		c.fail(ctx, "Schema Error", fmt.Sprintf("Schema error: %v", err))
		return err
	}
	c.mu.Lock()
	if c.st.CollectionName == name && c.st.Schema != nil {
		c.st.Schema.UI = schema.UI
		c.st.HiddenColumns = append([]string(nil), schema.UI.HiddenColumns...)
	}
	c.mu.Unlock()
	c.publish(ctx)
	return nil
}
