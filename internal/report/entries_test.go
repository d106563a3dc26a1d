package report_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/report"
)

func TestReadEntries_JSON(t *testing.T) {
	in := `[{"date":"2024-05-01","time":"08:30","name":"Ana Cruz","course":"BSIT","purpose":"Study"},
	        {"Date":"2024-05-01","Name":"Ben","Course":"BSCS","Purpose":"Borrow","extra":1}]`

	got, err := report.ReadEntries("entries.json", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, report.Entry{Date: "2024-05-01", Time: "08:30", Name: "Ana Cruz", Course: "BSIT", Purpose: "Study"}, got[0])
	assert.Equal(t, "BSCS", got[1].Course)
}

func TestReadEntries_CSV(t *testing.T) {
	in := "Date,Time,Name,Course,Purpose\n2024-05-01,08:30,Ana,BSIT,Study\n\n2024,09:00,Ben,BSCS,Research\n"

	got, err := report.ReadEntries("log.CSV", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "2024", got[1].Date)
	assert.Equal(t, "Research", got[1].Purpose)
}

func TestReadEntries_BadJSON(t *testing.T) {
	_, err := report.ReadEntries("x.json", strings.NewReader(`{"date":1}`))
	assert.ErrorContains(t, err, "decode entries")
}

func TestCategoriesOf(t *testing.T) {
	entries := []report.Entry{{Course: "BSIT"}, {Course: "BSCS"}, {Course: ""}, {Course: "BSIT"}}
	assert.Equal(t, []string{"BSCS", "BSIT"}, report.CategoriesOf(entries))
}
