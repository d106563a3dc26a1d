package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"docdesk/internal/domain"
)

// ── Collections & schema ───────────────────────────────────

func collectionPath(name string, parts ...string) string {
	p := "/collections/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func documentPath(name, id string, parts ...string) string {
	return collectionPath(name, append([]string{"documents", url.PathEscape(id)}, parts...)...)
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Call(ctx, http.MethodGet, "/collections", nil, nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// GetSchema fetches the schema descriptor of a collection.
func (c *Client) GetSchema(ctx context.Context, name string) (*domain.Schema, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, http.MethodGet, collectionPath(name, "schema"), nil, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return domain.NewSchema(), nil
	}
	return domain.ParseSchema(raw)
}

// UpdateUIMetadata persists the collection's UI metadata.
func (c *Client) UpdateUIMetadata(ctx context.Context, name string, ui domain.UIMetadata) error {
	return c.Call(ctx, http.MethodPut, collectionPath(name, "ui-metadata"), nil, ui, nil)
}

// ── Documents ──────────────────────────────────────────────

// ListDocuments fetches one page of a collection in the given view.
// A non-empty filter must be valid (extended) JSON.
func (c *Client) ListDocuments(ctx context.Context, name string, view domain.View, q domain.ListQuery) (*domain.DocumentPage, error) {
	params := url.Values{}
	if q.Filter != "" {
		if err := ValidateFilter(q.Filter); err != nil {
			return nil, err
		}
		params.Set("filter", q.Filter)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	page := &domain.DocumentPage{}
	if err := c.Call(ctx, http.MethodGet, collectionPath(name, view.Endpoint()), params, nil, page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []domain.Document{}
	}
	return page, nil
}

// EmptyArchiveHistory lists documents whose archive history is empty.
func (c *Client) EmptyArchiveHistory(ctx context.Context, name string, q domain.ListQuery) (*domain.DocumentPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	page := &domain.DocumentPage{}
	if err := c.Call(ctx, http.MethodGet, collectionPath(name, "empty-archive-history"), params, nil, page); err != nil {
		return nil, err
	}
	return page, nil
}

// CreateDocument inserts doc and returns the new id.
func (c *Client) CreateDocument(ctx context.Context, name string, doc domain.Document) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	if err := c.Call(ctx, http.MethodPost, collectionPath(name, "documents"), nil, doc, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// UpdateDocument applies a partial update to a document.
func (c *Client) UpdateDocument(ctx context.Context, name, id string, patch domain.Document) (*domain.UpdateResult, error) {
	res := &domain.UpdateResult{}
	if err := c.Call(ctx, http.MethodPut, documentPath(name, id), nil, patch, res); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteDocument removes a single document.
func (c *Client) DeleteDocument(ctx context.Context, name, id string) error {
	var res domain.DeleteResult
	return c.Call(ctx, http.MethodDelete, documentPath(name, id), nil, nil, &res)
}

// PinDocument marks a document pinned and returns the updated document.
func (c *Client) PinDocument(ctx context.Context, name, id string) (domain.Document, error) {
	return c.documentAction(ctx, name, id, "pin")
}

// UnpinDocument clears the pin and returns the updated document.
func (c *Client) UnpinDocument(ctx context.Context, name, id string) (domain.Document, error) {
	return c.documentAction(ctx, name, id, "unpin")
}

// ArchiveDocument moves a document to the archive.
func (c *Client) ArchiveDocument(ctx context.Context, name, id string) (domain.Document, error) {
	return c.documentAction(ctx, name, id, "archive")
}

// RecoverDocument restores an archived document.
func (c *Client) RecoverDocument(ctx context.Context, name, id string) (domain.Document, error) {
	return c.documentAction(ctx, name, id, "recover")
}

func (c *Client) documentAction(ctx context.Context, name, id, action string) (domain.Document, error) {
	var doc domain.Document
	if err := c.Call(ctx, http.MethodPut, documentPath(name, id, action), nil, nil, &doc); err != nil {
		return nil, fmt.Errorf("%s document %s: %w", action, id, err)
	}
	return doc, nil
}

// ── Batch operations ───────────────────────────────────────

type idsPayload struct {
	IDs []string `json:"ids"`
}

// BatchDelete deletes every listed document.
func (c *Client) BatchDelete(ctx context.Context, name string, ids []string) (int64, error) {
	var res domain.DeleteResult
	if err := c.Call(ctx, http.MethodPost, collectionPath(name, "documents", "batch-delete"), nil, idsPayload{IDs: ids}, &res); err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BatchArchive archives every listed document.
func (c *Client) BatchArchive(ctx context.Context, name string, ids []string) (int64, error) {
	res, err := c.batch(ctx, name, "batch-archive", ids)
	if err != nil {
		return 0, err
	}
	return res.ArchivedCount, nil
}

// BatchRecover recovers every listed document.
func (c *Client) BatchRecover(ctx context.Context, name string, ids []string) (int64, error) {
	res, err := c.batch(ctx, name, "batch-recover", ids)
	if err != nil {
		return 0, err
	}
	return res.RecoveredCount, nil
}

func (c *Client) batch(ctx context.Context, name, op string, ids []string) (*domain.BatchResult, error) {
	var res domain.BatchResult
	if err := c.Call(ctx, http.MethodPost, collectionPath(name, "documents", op), nil, idsPayload{IDs: ids}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DownloadCSV streams the collection export into w.
func (c *Client) DownloadCSV(ctx context.Context, name string, w io.Writer) (int64, error) {
	return c.Download(ctx, collectionPath(name, "download-csv"), w)
}
