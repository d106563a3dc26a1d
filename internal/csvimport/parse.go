// Package csvimport loads CSV files into a collection: it parses the
// file, converts each row to the collection's declared field types, posts
// the rows one by one and watches a drop folder for new files.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"docdesk/internal/domain"
)

// ErrEmpty is returned for a file with no header row.
var ErrEmpty = errors.New("empty csv file")

// Table is a parsed CSV file. Lines holds the 1-based source line of each
// record, for error messages.
type Table struct {
	Headers []string
	Records [][]string
	Lines   []int
}

// Parse reads a CSV file whose first row names the columns. Blank lines
// are skipped; short rows leave the missing columns out.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	t := &Table{Headers: make([]string, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.EqualFold(h, domain.IdentityField) {
			h = domain.IdentityField
		}
		t.Headers[i] = h
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := reader.FieldPos(0)
		t.Records = append(t.Records, rec)
		t.Lines = append(t.Lines, line)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Documents converts every record with dynamic typing only; see InferValue.
func (t *Table) Documents() []domain.Document {
	docs := make([]domain.Document, 0, len(t.Records))
	for _, rec := range t.Records {
		doc := domain.Document{}
		for i, h := range t.Headers {
			if h == "" || i >= len(rec) {
				continue
			}
			if h == domain.IdentityField {
				doc[h] = domain.ObjectIDRef(strings.TrimSpace(rec[i]))
				continue
			}
			doc[h] = InferValue(rec[i])
		}
		docs = append(docs, doc)
	}
	return docs
}

// InferValue types a raw cell: empty is nil, numbers become float64,
// true/false become bools and anything else stays a string.
func InferValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
