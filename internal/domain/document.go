package domain

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document is an open-ended record keyed by field name. The identity field
// holds an {"$oid": "<hex>"} wrapper.
type Document map[string]any

// ID returns the hex id of the document, unwrapping {"$oid": ...} when present.
func (d Document) ID() string {
	return IDOf(d[IdentityField])
}

// IDOf extracts a document id from either a bare string or an $oid wrapper.
func IDOf(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case map[string]any:
		if oid, ok := id["$oid"].(string); ok {
			return oid
		}
	case Document:
		return IDOf(map[string]any(id))
	case bson.ObjectID:
		return id.Hex()
	case fmt.Stringer:
		return id.String()
	}
	return ""
}

// ObjectIDRef wraps a hex id the way the document store expects it on the wire.
func ObjectIDRef(hex string) map[string]any {
	return map[string]any{"$oid": hex}
}

// ValidObjectID reports whether s parses as a 24-char hex ObjectID.
func ValidObjectID(s string) bool {
	_, err := bson.ObjectIDFromHex(s)
	return err == nil
}

// NewObjectIDHex generates a fresh ObjectID hex string.
func NewObjectIDHex() string {
	return bson.NewObjectID().Hex()
}

// View is a named predefined document-selection mode.
type View string

const (
	ViewAll              View = "all"
	ViewArchives         View = "archives"
	ViewRecoveries       View = "recoveries"
	ViewEmptyOrRecovered View = "empty-or-recovered"
	ViewPins             View = "pins"
)

// DefaultView is the view a freshly opened collection starts on.
const DefaultView = ViewEmptyOrRecovered

// Endpoint returns the collection sub-path serving the view.
func (v View) Endpoint() string {
	switch v {
	case ViewArchives:
		return "archives"
	case ViewRecoveries:
		return "recoveries"
	case ViewEmptyOrRecovered:
		return "empty-or-recovered"
	case ViewPins:
		return "pins"
	default:
		return "documents"
	}
}

// Valid reports whether v is one of the known views.
func (v View) Valid() bool {
	switch v {
	case ViewAll, ViewArchives, ViewRecoveries, ViewEmptyOrRecovered, ViewPins:
		return true
	}
	return false
}

// ListQuery carries the query parameters of a document listing.
type ListQuery struct {
	Filter string `json:"filter,omitempty"` // JSON-encoded filter, sent verbatim
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Items []Document `json:"items"`
	Total int        `json:"total"`
}

// UpdateResult is returned by a field-level PUT.
type UpdateResult struct {
	Success       bool     `json:"success"`
	ModifiedCount int64    `json:"modified_count"`
	Document      Document `json:"document,omitempty"`
}

// DeleteResult is returned by single and batch deletes.
type DeleteResult struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deleted_count"`
}

// BatchResult is returned by batch archive/recover. The server names the
// count after the operation.
type BatchResult struct {
	Message        string `json:"message,omitempty"`
	ArchivedCount  int64  `json:"archived_count"`
	RecoveredCount int64  `json:"recovered_count"`
}

// ReferenceOption is an id/label pair offered for a reference field.
type ReferenceOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
