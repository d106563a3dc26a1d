package grid

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tiendc/go-deepcopy"

	"docdesk/internal/domain"
)

// CellRef identifies the cell being edited.
type CellRef struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
}

// State is everything the grid shows. It is only touched with
// Controller.mu held; readers get a Snapshot.
type State struct {
	Collections    []string
	CollectionName string
	Schema         *domain.Schema
	Documents      []domain.Document

	View        domain.View
	FilterQuery string
	Page        int
	PageSize    int
	Total       int
	HasMore     bool

	IsLoading    bool
	IsSaving     bool
	ErrorMessage string

	Editing   *CellRef
	EditValue any
	EditError string

	IsAdding       bool
	Draft          domain.Document
	AddingRowError bool
	ErrorColumn    string

	PendingDeleteID string
	Selected        mapset.Set[string]
	HiddenColumns   []string
	PreviewMode     bool
}

func (s *State) resetCollection(name string) {
	s.CollectionName = name
	s.Schema = nil
	s.Documents = nil
	s.Page = 1
	s.Total = 0
	s.HasMore = false
	s.IsLoading = false
	s.ErrorMessage = ""
	s.Editing = nil
	s.EditValue = nil
	s.EditError = ""
	s.IsAdding = false
	s.Draft = nil
	s.AddingRowError = false
	s.ErrorColumn = ""
	s.PendingDeleteID = ""
	s.Selected.Clear()
	s.HiddenColumns = nil
}

func (s *State) totalPages() int {
	if s.PageSize <= 0 || s.Total == 0 {
		return 1
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

func (s *State) allSelected() bool {
	return s.Total > 0 && s.Selected.Cardinality() == s.Total
}

func (s *State) indexOf(id string) int {
	for i, doc := range s.Documents {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}

// Snapshot is a detached copy of State, safe to hand to other goroutines
// and to serialize for the frontend.
type Snapshot struct {
	Collections    []string          `json:"collections"`
	CollectionName string            `json:"collectionName"`
	Fields         []FieldView       `json:"fields"`
	VisibleColumns []string          `json:"visibleColumns"`
	UI             domain.UIMetadata `json:"ui"`
	Documents      []domain.Document `json:"documents"`

	View        domain.View `json:"view"`
	FilterQuery string      `json:"filterQuery"`
	Page        int         `json:"page"`
	PageSize    int         `json:"pageSize"`
	Total       int         `json:"total"`
	TotalPages  int         `json:"totalPages"`
	HasMore     bool        `json:"hasMore"`

	IsLoading    bool   `json:"isLoading"`
	IsSaving     bool   `json:"isSaving"`
	ErrorMessage string `json:"errorMessage"`

	Editing   *CellRef `json:"editing,omitempty"`
	EditValue any      `json:"editValue,omitempty"`
	EditError string   `json:"editError,omitempty"`

	IsAdding       bool            `json:"isAdding"`
	Draft          domain.Document `json:"draft,omitempty"`
	AddingRowError bool            `json:"addingRowError"`
	ErrorColumn    string          `json:"errorColumn,omitempty"`

	PendingDeleteID string   `json:"pendingDeleteId,omitempty"`
	SelectedIDs     []string `json:"selectedIds"`
	AllSelected     bool     `json:"allSelected"`
	HiddenColumns   []string `json:"hiddenColumns"`
	PreviewMode     bool     `json:"previewMode"`
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.st
	snap := Snapshot{
		Collections:     append([]string(nil), s.Collections...),
		CollectionName:  s.CollectionName,
		Fields:          fieldViews(s.Schema, s.HiddenColumns),
		VisibleColumns:  VisibleColumns(s.Schema, s.HiddenColumns),
		View:            s.View,
		FilterQuery:     s.FilterQuery,
		Page:            s.Page,
		PageSize:        s.PageSize,
		Total:           s.Total,
		TotalPages:      s.totalPages(),
		HasMore:         s.HasMore,
		IsLoading:       s.IsLoading,
		IsSaving:        s.IsSaving,
		ErrorMessage:    s.ErrorMessage,
		EditValue:       s.EditValue,
		EditError:       s.EditError,
		IsAdding:        s.IsAdding,
		AddingRowError:  s.AddingRowError,
		ErrorColumn:     s.ErrorColumn,
		PendingDeleteID: s.PendingDeleteID,
		AllSelected:     s.allSelected(),
		HiddenColumns:   append([]string(nil), s.HiddenColumns...),
		PreviewMode:     s.PreviewMode,
	}
	if s.Schema != nil {
		snap.UI = s.Schema.UI.Clone()
	}
	if s.Editing != nil {
		ref := *s.Editing
		snap.Editing = &ref
	}
	if err := deepcopy.Copy(&snap.Documents, s.Documents); err != nil {
		snap.Documents = append([]domain.Document(nil), s.Documents...)
	}
	if s.Draft != nil {
		if err := deepcopy.Copy(&snap.Draft, s.Draft); err != nil {
			snap.Draft = cloneDocument(s.Draft)
		}
	}
	snap.SelectedIDs = s.Selected.ToSlice()
	sort.Strings(snap.SelectedIDs)
	return snap
}

// cloneDocument is a shallow copy, enough for replacing top-level fields.
func cloneDocument(d domain.Document) domain.Document {
	out := make(domain.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
