package grid

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"docdesk/internal/domain"
)

// ── Single-row actions ─────────────────────────────────────

// DeleteDocument removes a row once the server has confirmed the delete.
// On failure the row is left untouched.
func (c *Controller) DeleteDocument(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.st.CollectionName == "" {
		c.mu.Unlock()
		return ErrNoCollection
	}
	name, epoch := c.st.CollectionName, c.epoch
	c.st.PendingDeleteID = id
	c.mu.Unlock()
	c.publish(ctx)

	err := c.backend.DeleteDocument(ctx, name, id)

	c.mu.Lock()
	c.st.PendingDeleteID = ""
	if c.epoch != epoch {
		c.mu.Unlock()
		c.publish(ctx)
		return nil
	}
	if err != nil {
		c.st.ErrorMessage = fmt.Sprintf("Error deleting document: %v", err)
		msg := c.st.ErrorMessage
		c.mu.Unlock()
		c.fail(ctx, "Delete Error", msg)
		c.publish(ctx)
		return err
	}
	c.removeLocked(id)
	c.mu.Unlock()

	c.Toast(ctx, domain.Toast{Title: "Deleted", Description: "Document deleted successfully."})
	c.publish(ctx)
	return nil
}

func (c *Controller) removeLocked(id string) {
	if idx := c.st.indexOf(id); idx >= 0 {
		c.st.Documents = append(c.st.Documents[:idx:idx], c.st.Documents[idx+1:]...)
		if c.st.Editing != nil {
			switch {
			case c.st.Editing.Row == idx:
				c.st.Editing = nil
				c.st.EditValue = nil
			case c.st.Editing.Row > idx:
				c.st.Editing.Row--
			}
		}
	}
	c.st.Selected.Remove(id)
	if c.st.Total > 0 {
		c.st.Total--
	}
	c.st.HasMore = c.st.Page*c.st.PageSize < c.st.Total
}

// PinDocument pins a row and swaps in the server's copy.
func (c *Controller) PinDocument(ctx context.Context, id string) error {
	return c.replaceFromServer(ctx, id, "Pin", c.backend.PinDocument)
}

// UnpinDocument unpins a row and swaps in the server's copy.
func (c *Controller) UnpinDocument(ctx context.Context, id string) error {
	return c.replaceFromServer(ctx, id, "Unpin", c.backend.UnpinDocument)
}

func (c *Controller) replaceFromServer(ctx context.Context, id, action string,
	call func(context.Context, string, string) (domain.Document, error)) error {
	c.mu.Lock()
	name, epoch := c.st.CollectionName, c.epoch
	c.mu.Unlock()
	if name == "" {
		return ErrNoCollection
	}

	doc, err := call(ctx, name, id)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.st.ErrorMessage = fmt.Sprintf("Error %sning document: %v", strings.ToLower(action), err)
		msg := c.st.ErrorMessage
		c.mu.Unlock()
		c.fail(ctx, action+" Error", msg)
		c.publish(ctx)
		return err
	}
	if idx := c.st.indexOf(id); idx >= 0 && doc != nil {
		c.st.Documents[idx] = doc
	}
	c.mu.Unlock()

	c.Toast(ctx, domain.Toast{Title: action + "ned", Description: fmt.Sprintf("Document %sned successfully", strings.ToLower(action))})
	c.publish(ctx)
	return nil
}

// ArchiveDocument archives a row and reloads the view, since the row may
// no longer belong to it.
func (c *Controller) ArchiveDocument(ctx context.Context, id string) error {
	return c.moveAndReload(ctx, "Archive", func(name string) (int64, error) {
		_, err := c.backend.ArchiveDocument(ctx, name, id)
		return 1, err
	})
}

// RecoverDocument recovers an archived row and reloads the view.
func (c *Controller) RecoverDocument(ctx context.Context, id string) error {
	return c.moveAndReload(ctx, "Recover", func(name string) (int64, error) {
		_, err := c.backend.RecoverDocument(ctx, name, id)
		return 1, err
	})
}

// ── Batch actions over the selection ───────────────────────

// BatchDeleteSelected deletes every selected row.
func (c *Controller) BatchDeleteSelected(ctx context.Context) error {
	ids := c.SelectedIDs()
	if len(ids) == 0 {
		return nil
	}
	return c.moveAndReload(ctx, "Delete", func(name string) (int64, error) {
		return c.backend.BatchDelete(ctx, name, ids)
	})
}

// BatchArchiveSelected archives every selected row.
func (c *Controller) BatchArchiveSelected(ctx context.Context) error {
	ids := c.SelectedIDs()
	if len(ids) == 0 {
		return nil
	}
	return c.moveAndReload(ctx, "Archive", func(name string) (int64, error) {
		return c.backend.BatchArchive(ctx, name, ids)
	})
}

// BatchRecoverSelected recovers every selected row.
func (c *Controller) BatchRecoverSelected(ctx context.Context) error {
	ids := c.SelectedIDs()
	if len(ids) == 0 {
		return nil
	}
	return c.moveAndReload(ctx, "Recover", func(name string) (int64, error) {
		return c.backend.BatchRecover(ctx, name, ids)
	})
}

func (c *Controller) moveAndReload(ctx context.Context, action string, call func(name string) (int64, error)) error {
	c.mu.Lock()
	name := c.st.CollectionName
	c.mu.Unlock()
	if name == "" {
		return ErrNoCollection
	}

	n, err := call(name)
	if err != nil {
		c.mu.Lock()
		c.st.ErrorMessage = fmt.Sprintf("%s failed: %v", action, err)
		msg := c.st.ErrorMessage
		c.mu.Unlock()
		c.fail(ctx, action+" Error", msg)
		c.publish(ctx)
		return err
	}

	c.Toast(ctx, domain.Toast{
		Title:       action + " complete",
		Description: fmt.Sprintf("%s document(s) affected", humanize.Comma(n)),
	})
	return c.Refresh(ctx)
}

// ── Selection ──────────────────────────────────────────────

// ToggleRow flips the selection of one row.
func (c *Controller) ToggleRow(ctx context.Context, id string) {
	c.mu.Lock()
	if c.st.Selected.Contains(id) {
		c.st.Selected.Remove(id)
	} else {
		c.st.Selected.Add(id)
	}
	c.mu.Unlock()
	c.publish(ctx)
}

// SetAllSelected selects every loaded row, or clears the selection.
func (c *Controller) SetAllSelected(ctx context.Context, on bool) {
	c.mu.Lock()
	c.st.Selected.Clear()
	if on {
		for _, doc := range c.st.Documents {
			if id := doc.ID(); id != "" {
				c.st.Selected.Add(id)
			}
		}
	}
	c.mu.Unlock()
	c.publish(ctx)
}

// ResetSelection clears the selection.
func (c *Controller) ResetSelection(ctx context.Context) {
	c.SetAllSelected(ctx, false)
}

// AllSelected is true iff the selection covers the server-reported total.
func (c *Controller) AllSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.allSelected()
}

// SelectedIDs returns the selected ids in sorted order.
func (c *Controller) SelectedIDs() []string {
	c.mu.Lock()
	ids := c.st.Selected.ToSlice()
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}
