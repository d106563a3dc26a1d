package grid

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"docdesk/internal/api"
	"docdesk/internal/domain"
)

const (
	// DateInputLayout is the minute-precision form dates are edited in.
	DateInputLayout = "2006-01-02T15:04"
	// ISOLayout is the millisecond UTC form dates are stored in.
	ISOLayout = "2006-01-02T15:04:05.000Z"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	DateInputLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// nonEditable fields are owned by the server.
var nonEditable = map[string]struct{}{
	domain.IdentityField: {},
	"created_at":         {},
	"updated_at":         {},
	"createdAt":          {},
	"updatedAt":          {},
}

// Editable reports whether a field may be edited inline or pre-populated in a draft.
func Editable(field string) bool {
	_, blocked := nonEditable[field]
	return !blocked
}

// StageValue turns a stored value into what the cell editor works with:
// a bool for booleans, a minute-precision string for dates, the id for
// reference fields, indented JSON for objects and arrays and a plain
// string for everything else.
func StageValue(spec domain.FieldSpec, isRef bool, v any) any {
	if isRef {
		return domain.IDOf(v)
	}
	switch spec.BSONType {
	case domain.FieldTypeBool:
		return truthy(v)
	case domain.FieldTypeDate:
		t, ok := parseDate(v)
		if !ok {
			return ""
		}
		return t.UTC().Format(DateInputLayout)
	case domain.FieldTypeObjectID:
		return domain.IDOf(v)
	case domain.FieldTypeObject, domain.FieldTypeArray:
		if v == nil {
			return ""
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return cast.ToString(v)
		}
		return string(out)
	}

	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		out, _ := json.Marshal(t)
		return string(out)
	}
	return cast.ToString(v)
}

// Coerce converts an edit buffer back to the field's declared type.
// Failures come back as *api.ValidationError and never reach the server.
func Coerce(field string, spec domain.FieldSpec, isRef bool, buf any) (any, error) {
	invalid := func(msg string) error {
		return &api.ValidationError{Field: field, Message: msg}
	}
	if isRef {
		return cast.ToString(buf), nil
	}

	text := strings.TrimSpace(cast.ToString(buf))
	switch spec.BSONType {
	case domain.FieldTypeBool:
		if text == "" {
			return false, nil
		}
		b, err := cast.ToBoolE(buf)
		if err != nil {
			return nil, invalid("Invalid boolean value")
		}
		return b, nil

	case domain.FieldTypeDate:
		if text == "" {
			return nil, nil
		}
		t, ok := parseDate(text)
		if !ok {
			return nil, invalid("Invalid date value")
		}
		return t.UTC().Format(ISOLayout), nil

	case domain.FieldTypeInt, domain.FieldTypeLong:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, invalid("Invalid integer value")
		}
		return n, nil

	case domain.FieldTypeDouble:
		f, err := cast.ToFloat64E(text)
		if err != nil || text == "" || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid("Invalid number value")
		}
		return f, nil

	case domain.FieldTypeDecimal:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return nil, invalid("Invalid number value")
		}
		return json.Number(d.String()), nil

	case domain.FieldTypeObject, domain.FieldTypeArray:
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, invalid("Invalid JSON format")
		}
		if spec.BSONType == domain.FieldTypeObject {
			if _, ok := v.(map[string]any); !ok {
				return nil, invalid("Invalid JSON format: expected an object")
			}
		} else if _, ok := v.([]any); !ok {
			return nil, invalid("Invalid JSON format: expected an array")
		}
		return v, nil

	case domain.FieldTypeObjectID:
		if text == "" {
			return nil, nil
		}
		if !domain.ValidObjectID(text) {
			return nil, invalid("Invalid ObjectId value")
		}
		return domain.ObjectIDRef(text), nil

	case domain.FieldTypeString:
		return cast.ToString(buf), nil
	}
	return buf, nil
}

// JSONEqual compares two values by their JSON form, so 12, int64(12)
// and float64(12) are equal and map key order does not matter.
func JSONEqual(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int, int32, int64:
		return cast.ToInt64(t) != 0
	}
	return true
}

// parseDate accepts strings in the common layouts, time.Time values and
// Extended JSON {"$date": ...} wrappers.
func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	case float64:
		return time.UnixMilli(int64(t)), true
	case map[string]any:
		switch d := t["$date"].(type) {
		case string, float64:
			return parseDate(d)
		case map[string]any:
			if ms, ok := d["$numberLong"].(string); ok {
				if n, err := strconv.ParseInt(ms, 10, 64); err == nil {
					return time.UnixMilli(n), true
				}
			}
		}
	}
	return time.Time{}, false
}
