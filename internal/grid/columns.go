package grid

import (
	"slices"
	"sort"

	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"docdesk/internal/domain"
)

// MinColumnWidth is the narrowest a column may be resized to, in pixels.
const MinColumnWidth = 50

// OrderColumns returns the header order for a schema. An explicit
// ui.columnOrder wins (restricted to fields that still exist) and any
// remaining fields follow in natural order. Without one, required fields
// come first, the identity field is pinned ahead of its group and the
// rest is sorted alphabetically.
func OrderColumns(schema *domain.Schema) []string {
	names := schema.FieldNames()
	if schema == nil {
		return names
	}

	if len(schema.UI.ColumnOrder) > 0 {
		ordered := lo.Uniq(lo.Filter(schema.UI.ColumnOrder, func(f string, _ int) bool {
			return lo.Contains(names, f)
		}))
		rest := lo.Filter(names, func(f string, _ int) bool {
			return !lo.Contains(ordered, f)
		})
		return append(ordered, rest...)
	}

	sorted := slices.Clone(names)
	col := collate.New(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ra, rb := schema.IsRequired(a), schema.IsRequired(b)
		if ra != rb {
			return ra
		}
		if a == domain.IdentityField || b == domain.IdentityField {
			return a == domain.IdentityField && b != domain.IdentityField
		}
		return col.CompareString(a, b) < 0
	})
	return sorted
}

// VisibleColumns is OrderColumns minus the hidden ones.
func VisibleColumns(schema *domain.Schema, hidden []string) []string {
	return lo.Filter(OrderColumns(schema), func(f string, _ int) bool {
		return !lo.Contains(hidden, f)
	})
}

// FieldView is the per-column description handed to the frontend.
type FieldView struct {
	Name      string           `json:"name"`
	Type      domain.FieldType `json:"type"`
	Required  bool             `json:"required"`
	Unique    bool             `json:"unique"`
	Reference string           `json:"reference,omitempty"`
	ShortName string           `json:"shortName,omitempty"`
	Width     int              `json:"width,omitempty"`
	Hidden    bool             `json:"hidden"`
}

func fieldViews(schema *domain.Schema, hidden []string) []FieldView {
	if schema == nil {
		return nil
	}
	order := OrderColumns(schema)
	views := make([]FieldView, 0, len(order))
	for _, name := range order {
		spec, _ := schema.Field(name)
		ref, _ := spec.ReferencedCollection()
		views = append(views, FieldView{
			Name:      name,
			Type:      spec.BSONType,
			Required:  schema.IsRequired(name),
			Unique:    spec.Unique,
			Reference: ref,
			ShortName: schema.UI.ShortNames[name],
			Width:     schema.UI.ColumnWidths[name],
			Hidden:    lo.Contains(hidden, name),
		})
	}
	return views
}
