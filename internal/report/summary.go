// Package report renders the daily library attendance report: a
// letterheaded landscape PDF with one row per visit, per-category
// check columns, a totals row and a summary of attendance by category
// and purpose.
package report

import (
	"sort"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CategoriesPerRow is how many categories share one row of the summary block.
const CategoriesPerRow = 5

// Entry is one attendance record.
type Entry struct {
	Date    string `json:"date" mapstructure:"date"`
	Time    string `json:"time" mapstructure:"time"`
	Name    string `json:"name" mapstructure:"name"`
	Course  string `json:"course" mapstructure:"course"`
	Purpose string `json:"purpose" mapstructure:"purpose"`
}

// CategoryCount is the number of entries for one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// PurposeCount is the number of entries for one purpose of visit. Label
// is the purpose as printed in the report.
type PurposeCount struct {
	Purpose string `json:"purpose"`
	Label   string `json:"label"`
	Count   int    `json:"count"`
}

// Summary holds every aggregate the report prints.
type Summary struct {
	Categories []CategoryCount   `json:"categories"`
	Rows       [][]CategoryCount `json:"rows"`
	Purposes   []PurposeCount    `json:"purposes"`
	GrandTotal int               `json:"grandTotal"`
}

// Summarize tallies entries per category, in the order categories are
// given, and per purpose, sorted and de-duplicated. Entries whose course
// is not a known category still count toward the grand total.
func Summarize(entries []Entry, categories []string) Summary {
	byCourse := lo.CountValuesBy(entries, func(e Entry) string { return e.Course })
	byPurpose := lo.CountValuesBy(entries, func(e Entry) string { return e.Purpose })

	counts := lo.Map(categories, func(c string, _ int) CategoryCount {
		return CategoryCount{Category: c, Count: byCourse[c]}
	})

	purposes := lo.Uniq(lo.Map(entries, func(e Entry, _ int) string { return e.Purpose }))
	sort.Strings(purposes)
	upper := cases.Upper(language.Und)

	return Summary{
		Categories: counts,
		Rows:       lo.Chunk(counts, CategoriesPerRow),
		Purposes: lo.Map(purposes, func(p string, _ int) PurposeCount {
			return PurposeCount{Purpose: p, Label: upper.String(p), Count: byPurpose[p]}
		}),
		GrandTotal: len(entries),
	}
}

// Count returns the tally for one category.
func (s Summary) Count(category string) int {
	for _, c := range s.Categories {
		if c.Category == category {
			return c.Count
		}
	}
	return 0
}
