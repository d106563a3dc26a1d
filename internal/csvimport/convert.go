package csvimport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"docdesk/internal/domain"
)

// isoLayout matches the form the grid writes dates in.
const isoLayout = "2006-01-02T15:04:05.000Z"

// FieldError is a conversion failure on one cell.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("Field %s: %s", e.Field, e.Message)
}

// Convert builds a document from one record. Columns the schema declares
// are converted to their bsonType; other columns are typed dynamically.
// Every failing cell is reported, combined into one error.
func Convert(schema *domain.Schema, headers, record []string) (domain.Document, error) {
	doc := domain.Document{}
	var errs error
	for i, h := range headers {
		if h == "" || i >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[i])

		spec, declared := schema.Field(h)
		if !declared {
			if h == domain.IdentityField {
				spec = domain.FieldSpec{BSONType: domain.FieldTypeObjectID}
			} else {
				doc[h] = InferValue(raw)
				continue
			}
		}

		v, err := ConvertValue(raw, spec.BSONType)
		if err != nil {
			errs = multierr.Append(errs, &FieldError{Field: h, Message: err.Error()})
			continue
		}
		doc[h] = v
	}
	return doc, errs
}

// ConvertValue converts one trimmed cell to the given type. Empty cells
// are nil whatever the type; unknown types keep the text.
func ConvertValue(raw string, typ domain.FieldType) (any, error) {
	if raw == "" {
		return nil, nil
	}
	switch typ {
	case domain.FieldTypeObjectID:
		if !domain.ValidObjectID(raw) {
			return nil, fmt.Errorf("Invalid ObjectId: %q", raw)
		}
		return domain.ObjectIDRef(raw), nil

	case domain.FieldTypeDate:
		t, err := parseImportDate(raw)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(isoLayout), nil

	case domain.FieldTypeInt, "int32":
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("Invalid integer: %q", raw)
		}
		return n, nil

	case domain.FieldTypeLong, "int64":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("Invalid long integer: %q", raw)
		}
		return n, nil

	case domain.FieldTypeDouble, "number":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("Invalid double: %q", raw)
		}
		return f, nil

	case domain.FieldTypeDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("Invalid decimal: %q", raw)
		}
		return json.Number(d.String()), nil

	case domain.FieldTypeBool, "boolean":
		switch strings.ToLower(raw) {
		case "true", "yes", "1", "t", "y":
			return true, nil
		case "false", "no", "0", "f", "n":
			return false, nil
		}
		return nil, fmt.Errorf("Invalid boolean value: %s", raw)

	case domain.FieldTypeArray:
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil, fmt.Errorf("Invalid array: %v", err)
		}
		return arr, nil

	case domain.FieldTypeObject, "document":
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("Invalid object: %v", err)
		}
		return obj, nil
	}
	return raw, nil
}

// parseImportDate accepts RFC 3339, then "YYYY-MM-DD hh:mm:ss", then a
// bare date; zoneless forms are taken as UTC.
func parseImportDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateTime, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("Invalid date format: %q", raw)
	}
	return t, nil
}
