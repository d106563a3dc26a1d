package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"docdesk/internal/csvimport"
	"docdesk/internal/domain"
)

// DecodeEntries converts loosely typed records (API documents, tool
// arguments, CSV rows) into entries. Keys match case-insensitively and
// scalar values are stringified.
func DecodeEntries(records []map[string]any) ([]Entry, error) {
	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		var e Entry
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &e,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(rec); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadEntries loads entries from a JSON array or, when name ends in .csv,
// from a CSV file with date, time, name, course and purpose columns.
func ReadEntries(name string, r io.Reader) ([]Entry, error) {
	var records []map[string]any
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		table, err := csvimport.Parse(r)
		if err != nil {
			return nil, err
		}
		records = lo.Map(table.Documents(), func(d domain.Document, _ int) map[string]any {
			return d
		})
	} else if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return DecodeEntries(records)
}

// CategoriesOf returns the distinct courses in entries, sorted. It stands
// in when no category list is configured.
func CategoriesOf(entries []Entry) []string {
	courses := lo.Uniq(lo.FilterMap(entries, func(e Entry, _ int) (string, bool) {
		return e.Course, e.Course != ""
	}))
	sort.Strings(courses)
	return courses
}
