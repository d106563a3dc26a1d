package domain

import (
	"encoding/json"
	"fmt"
	"regexp"

	mapset "github.com/deckarep/golang-set/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FieldType is the primitive type tag carried by a schema property (bsonType).
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeInt      FieldType = "int"
	FieldTypeLong     FieldType = "long"
	FieldTypeDouble   FieldType = "double"
	FieldTypeDecimal  FieldType = "decimal"
	FieldTypeBool     FieldType = "bool"
	FieldTypeDate     FieldType = "date"
	FieldTypeObjectID FieldType = "objectId"
	FieldTypeObject   FieldType = "object"
	FieldTypeArray    FieldType = "array"
)

// IdentityField is the document key holding the opaque id wrapper.
const IdentityField = "_id"

var refMarker = regexp.MustCompile(`REF:(\w+)`)

// FieldSpec describes a single property of a collection schema.
type FieldSpec struct {
	BSONType    FieldType `json:"bsonType"`
	Description string    `json:"description,omitempty"`
	Unique      bool      `json:"unique,omitempty"`
}

// UnmarshalJSON accepts bsonType either as a string or as an array of
// strings, in which case the first entry wins.
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		BSONType    json.RawMessage `json:"bsonType"`
		Description string          `json:"description"`
		Unique      bool            `json:"unique"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Description = raw.Description
	f.Unique = raw.Unique
	f.BSONType = ""
	if len(raw.BSONType) == 0 || string(raw.BSONType) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw.BSONType, &single); err == nil {
		f.BSONType = FieldType(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw.BSONType, &many); err != nil {
		return fmt.Errorf("bsonType: %w", err)
	}
	if len(many) > 0 {
		f.BSONType = FieldType(many[0])
	}
	return nil
}

// ReferencedCollection returns the collection named by a REF:<name> marker
// in the description, if any.
func (f FieldSpec) ReferencedCollection() (string, bool) {
	m := refMarker.FindStringSubmatch(f.Description)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// UIMetadata holds the per-collection display preferences persisted by the server.
type UIMetadata struct {
	ColumnOrder   []string          `json:"columnOrder,omitempty"`
	HiddenColumns []string          `json:"hiddenColumns,omitempty"`
	ColumnWidths  map[string]int    `json:"columnWidths,omitempty"`
	ShortNames    map[string]string `json:"short_names,omitempty"`
}

// Clone returns a copy that shares no slices or maps with u.
func (u UIMetadata) Clone() UIMetadata {
	out := UIMetadata{
		ColumnOrder:   append([]string(nil), u.ColumnOrder...),
		HiddenColumns: append([]string(nil), u.HiddenColumns...),
	}
	if u.ColumnWidths != nil {
		out.ColumnWidths = make(map[string]int, len(u.ColumnWidths))
		for k, v := range u.ColumnWidths {
			out.ColumnWidths[k] = v
		}
	}
	if u.ShortNames != nil {
		out.ShortNames = make(map[string]string, len(u.ShortNames))
		for k, v := range u.ShortNames {
			out.ShortNames[k] = v
		}
	}
	return out
}

// Schema is the JSON-schema-like descriptor of a collection. Properties
// keep the key order the server sent them in.
type Schema struct {
	Properties *orderedmap.OrderedMap[string, FieldSpec] `json:"properties"`
	Required   []string                                  `json:"required,omitempty"`
	UI         UIMetadata                                `json:"ui"`
}

// NewSchema returns an empty schema with an initialized property map.
func NewSchema() *Schema {
	return &Schema{Properties: orderedmap.New[string, FieldSpec]()}
}

// ParseSchema decodes a schema document, tolerating a missing properties map.
func ParseSchema(data []byte) (*Schema, error) {
	s := NewSchema()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, FieldSpec]()
	}
	return s, nil
}

// AddField appends a property; used to build schemas in code.
func (s *Schema) AddField(name string, spec FieldSpec) *Schema {
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, FieldSpec]()
	}
	s.Properties.Set(name, spec)
	return s
}

// Field looks up a property by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	if s == nil || s.Properties == nil {
		return FieldSpec{}, false
	}
	return s.Properties.Get(name)
}

// FieldNames returns property names in natural order.
func (s *Schema) FieldNames() []string {
	if s == nil || s.Properties == nil {
		return nil
	}
	names := make([]string, 0, s.Properties.Len())
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// IsEmpty reports whether the schema has no properties.
func (s *Schema) IsEmpty() bool {
	return s == nil || s.Properties == nil || s.Properties.Len() == 0
}

// RequiredSet returns the required field names as a set.
func (s *Schema) RequiredSet() mapset.Set[string] {
	if s == nil {
		return mapset.NewThreadUnsafeSet[string]()
	}
	return mapset.NewThreadUnsafeSet(s.Required...)
}

// IsRequired reports whether field is listed in required.
func (s *Schema) IsRequired(field string) bool {
	return s.RequiredSet().Contains(field)
}

// ReferenceTarget returns the collection a reference field points at.
func (s *Schema) ReferenceTarget(field string) (string, bool) {
	spec, ok := s.Field(field)
	if !ok {
		return "", false
	}
	return spec.ReferencedCollection()
}

// ReferencedCollections lists every distinct collection referenced by the
// schema, in natural field order.
func (s *Schema) ReferencedCollections() []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	for _, name := range s.FieldNames() {
		target, ok := s.ReferenceTarget(name)
		if !ok || !seen.Add(target) {
			continue
		}
		out = append(out, target)
	}
	return out
}
