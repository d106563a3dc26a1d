package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/domain"
	"docdesk/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "docdesk.db"), filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNew_MigratesTwice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docdesk.db")

	db, err := storage.New(path, dir)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = storage.New(path, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, db.DataDir())
	require.NoError(t, db.Close())
}

func TestSettingsStore(t *testing.T) {
	s := storage.NewSettingsStore(openDB(t))

	v, err := s.Get("theme")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.Set("theme", "light"))
	v, err = s.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)
}

func TestLayoutStore_RoundTrip(t *testing.T) {
	s := storage.NewLayoutStore(openDB(t))

	got, err := s.GetLayout("people")
	require.NoError(t, err)
	assert.Nil(t, got)

	ui := domain.UIMetadata{
		ColumnOrder:   []string{"name", "age"},
		HiddenColumns: []string{"age"},
		ColumnWidths:  map[string]int{"name": 180},
		ShortNames:    map[string]string{"name": "N"},
	}
	require.NoError(t, s.SaveLayout("people", ui))
	ui.ColumnWidths["name"] = 220
	require.NoError(t, s.SaveLayout("people", ui))

	got, err = s.GetLayout("people")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ui, *got)

	require.NoError(t, s.DeleteLayout("people"))
	got, err = s.GetLayout("people")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryStore_ImportRuns(t *testing.T) {
	runs := storage.NewHistoryStore(openDB(t)).Imports()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, runs.CreateRun(&domain.ImportRun{
		Collection: "people", Source: "a.csv", Rows: 3, Inserted: 3, CreatedAt: base,
	}))
	require.NoError(t, runs.CreateRun(&domain.ImportRun{
		Collection: "people", Source: "b.csv", Rows: 2, Inserted: 1, Failed: 1,
		Errors: []string{"line 2: Field age: Invalid integer"}, CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, runs.CreateRun(&domain.ImportRun{Collection: "books", Source: "c.csv", CreatedAt: base}))

	people, err := runs.ListRuns("people", 10)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "b.csv", people[0].Source)
	assert.Equal(t, []string{"line 2: Field age: Invalid integer"}, people[0].Errors)
	assert.Equal(t, 2, people[0].Rows)
	assert.Empty(t, people[1].Errors)
	assert.NotEmpty(t, people[0].ID)

	all, err := runs.ListRuns("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryStore_ReportRuns(t *testing.T) {
	runs := storage.NewHistoryStore(openDB(t)).Reports()

	run := &domain.ReportRun{Title: "Daily", SchoolYear: "2023-2024", Entries: 12, Pages: 2, OutputPath: "/tmp/r.pdf"}
	require.NoError(t, runs.CreateRun(run))
	assert.NotEmpty(t, run.ID)

	list, err := runs.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, run.ID, list[0].ID)
	assert.Equal(t, 2, list[0].Pages)
	assert.Equal(t, "2023-2024", list[0].SchoolYear)
}

func TestHistoryStore_Counts(t *testing.T) {
	h := storage.NewHistoryStore(openDB(t))

	c, err := h.Counts()
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{}, c)

	require.NoError(t, h.Imports().CreateRun(&domain.ImportRun{Collection: "people"}))
	require.NoError(t, h.Reports().CreateRun(&domain.ReportRun{Title: "May"}))
	require.NoError(t, h.Reports().CreateRun(&domain.ReportRun{Title: "June"}))

	c, err = h.Counts()
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Reports: 2, Imports: 1}, c)
}
