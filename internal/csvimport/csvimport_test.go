package csvimport_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/csvimport"
	"docdesk/internal/domain"
)

const oid = "507f1f77bcf86cd799439011"

func TestParse_SkipsBlankLinesAndNormalizesID(t *testing.T) {
	in := "\ufeffID,name,age\n" + oid + ",Ada,36\n\n,,\n" + oid + ",\"Lovelace, A\",\n"

	table, err := csvimport.Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"_id", "name", "age"}, table.Headers)
	require.Len(t, table.Records, 2)
	assert.Equal(t, []int{2, 5}, table.Lines)

	docs := table.Documents()
	assert.Equal(t, domain.Document{
		"_id":  map[string]any{"$oid": oid},
		"name": "Ada",
		"age":  36.0,
	}, docs[0])
	assert.Equal(t, "Lovelace, A", docs[1]["name"])
	assert.Nil(t, docs[1]["age"])
}

func TestParse_Empty(t *testing.T) {
	_, err := csvimport.Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, csvimport.ErrEmpty)
}

func TestInferValue(t *testing.T) {
	assert.Nil(t, csvimport.InferValue("  "))
	assert.Equal(t, 3.5, csvimport.InferValue("3.5"))
	assert.Equal(t, true, csvimport.InferValue("TRUE"))
	assert.Equal(t, false, csvimport.InferValue("false"))
	assert.Equal(t, "NaN", csvimport.InferValue("NaN"))
	assert.Equal(t, "yes", csvimport.InferValue("yes"))
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		raw  string
		typ  domain.FieldType
		want any
		err  bool
	}{
		{"", domain.FieldTypeInt, nil, false},
		{oid, domain.FieldTypeObjectID, map[string]any{"$oid": oid}, false},
		{"xyz", domain.FieldTypeObjectID, nil, true},
		{"2024-03-05T10:00:00+08:00", domain.FieldTypeDate, "2024-03-05T02:00:00.000Z", false},
		{"2024-03-05 10:00:00", domain.FieldTypeDate, "2024-03-05T10:00:00.000Z", false},
		{"2024-03-05", domain.FieldTypeDate, "2024-03-05T00:00:00.000Z", false},
		{"05/03/2024", domain.FieldTypeDate, nil, true},
		{"42", domain.FieldTypeInt, int64(42), false},
		{"3000000000", domain.FieldTypeInt, nil, true},
		{"3000000000", domain.FieldTypeLong, int64(3000000000), false},
		{"1.5", domain.FieldTypeDouble, 1.5, false},
		{"2.50", domain.FieldTypeDecimal, json.Number("2.5"), false},
		{"Y", domain.FieldTypeBool, true, false},
		{"0", domain.FieldTypeBool, false, false},
		{"maybe", domain.FieldTypeBool, nil, true},
		{`[1,2]`, domain.FieldTypeArray, []any{1.0, 2.0}, false},
		{`{"a":"b"}`, domain.FieldTypeObject, map[string]any{"a": "b"}, false},
		{`{`, domain.FieldTypeObject, nil, true},
		{"007", domain.FieldTypeString, "007", false},
		{"x", domain.FieldType("regex"), "x", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.raw, func(t *testing.T) {
			got, err := csvimport.ConvertValue(tt.raw, tt.typ)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvert_ReportsEveryBadCell(t *testing.T) {
	schema := domain.NewSchema().
		AddField("age", domain.FieldSpec{BSONType: domain.FieldTypeInt}).
		AddField("active", domain.FieldSpec{BSONType: domain.FieldTypeBool})

	doc, err := csvimport.Convert(schema, []string{"age", "active", "note"}, []string{"old", "perhaps", "12"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field age")
	assert.Contains(t, err.Error(), "Field active")
	assert.Equal(t, 12.0, doc["note"])
}

// ─────────────────────────────────────────────────────────────
// Importer
// ─────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu      sync.Mutex
	schema  *domain.Schema
	docs    []domain.Document
	failOn  string
	noSchema bool
}

func (f *fakeBackend) GetSchema(context.Context, string) (*domain.Schema, error) {
	if f.noSchema {
		return nil, errors.New("offline")
	}
	return f.schema, nil
}

func (f *fakeBackend) CreateDocument(_ context.Context, _ string, doc domain.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, _ := doc["name"].(string); name == f.failOn && f.failOn != "" {
		return "", errors.New("E11000 duplicate key error")
	}
	f.docs = append(f.docs, doc)
	return domain.NewObjectIDHex(), nil
}

func TestImporter_CountsAndCollectsRowErrors(t *testing.T) {
	backend := &fakeBackend{
		schema: domain.NewSchema().
			AddField("name", domain.FieldSpec{BSONType: domain.FieldTypeString}).
			AddField("age", domain.FieldSpec{BSONType: domain.FieldTypeInt}),
		failOn: "Dup",
	}
	in := "name,age\nAda,36\nBob,old\nDup,1\nCy,\n"

	sum, err := csvimport.NewImporter(backend, 2, nil).Import(context.Background(), "people", "upload.csv", strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Rows)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 2, sum.Failed)
	require.Len(t, sum.Errors, 2)
	assert.Contains(t, sum.Errors[0], "line 3")
	assert.Contains(t, sum.Errors[1], "line 4")
	assert.Error(t, sum.Err)
	assert.Len(t, backend.docs, 2)
}

func TestImporter_FallsBackToDynamicTyping(t *testing.T) {
	backend := &fakeBackend{noSchema: true}

	sum, err := csvimport.NewImporter(backend, 1, nil).Import(context.Background(), "people", "x.csv", strings.NewReader("name,age\nAda,36\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Nil(t, sum.Err)
	assert.Equal(t, 36.0, backend.docs[0]["age"])
}

func TestImporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := csvimport.NewImporter(&fakeBackend{}, 1, nil).Import(ctx, "people", "x.csv", strings.NewReader("name\nAda\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

// ─────────────────────────────────────────────────────────────
// Watcher
// ─────────────────────────────────────────────────────────────

func TestWatcher_ImportsDroppedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "people"), 0o755))

	type drop struct{ collection, path string }
	got := make(chan drop, 4)
	w, err := csvimport.NewWatcher(root, 30*time.Millisecond, func(_ context.Context, collection, path string) {
		got <- drop{collection, path}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(root, "people", "batch.csv")
	require.NoError(t, os.WriteFile(path, []byte("name\nAda\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "people", "notes.txt"), []byte("x"), 0o644))

	select {
	case d := <-got:
		assert.Equal(t, "people", d.collection)
		assert.Equal(t, path, d.path)
	case <-time.After(3 * time.Second):
		t.Fatal("drop was not handled")
	}

	select {
	case d := <-got:
		t.Fatalf("unexpected second drop: %+v", d)
	case <-time.After(150 * time.Millisecond):
	}
}
