package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/domain"
	"docdesk/internal/service"
)

type fakeBackend struct {
	schema    *domain.Schema
	created   []domain.Document
	patches   []domain.Document
	deleted   []string
	batch     []string
	createErr error
	healthErr error
}

func (f *fakeBackend) ListCollections(context.Context) ([]string, error) {
	return []string{"people", "users"}, nil
}

func (f *fakeBackend) GetSchema(context.Context, string) (*domain.Schema, error) {
	return f.schema, nil
}

func (f *fakeBackend) ListDocuments(_ context.Context, _ string, view domain.View, q domain.ListQuery) (*domain.DocumentPage, error) {
	return &domain.DocumentPage{
		Items: []domain.Document{{"_id": domain.ObjectIDRef("aaaaaaaaaaaaaaaaaaaaaaaa"), "view": string(view)}},
		Total: 45,
	}, nil
}

func (f *fakeBackend) CreateDocument(_ context.Context, _ string, doc domain.Document) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, doc)
	return "bbbbbbbbbbbbbbbbbbbbbbbb", nil
}

func (f *fakeBackend) UpdateDocument(_ context.Context, _, id string, patch domain.Document) (*domain.UpdateResult, error) {
	f.patches = append(f.patches, patch)
	return &domain.UpdateResult{Success: true, ModifiedCount: 1}, nil
}

func (f *fakeBackend) DeleteDocument(_ context.Context, _, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) PinDocument(_ context.Context, _, id string) (domain.Document, error) {
	return domain.Document{"_id": id, "pinned": true}, nil
}

func (f *fakeBackend) UnpinDocument(_ context.Context, _, id string) (domain.Document, error) {
	return nil, nil
}

func (f *fakeBackend) ArchiveDocument(_ context.Context, _, id string) (domain.Document, error) {
	return nil, nil
}

func (f *fakeBackend) RecoverDocument(_ context.Context, _, id string) (domain.Document, error) {
	return nil, nil
}

func (f *fakeBackend) BatchDelete(_ context.Context, _ string, ids []string) (int64, error) {
	f.batch = append(f.batch, ids...)
	return int64(len(ids)), nil
}

func (f *fakeBackend) BatchArchive(_ context.Context, _ string, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

func (f *fakeBackend) BatchRecover(_ context.Context, _ string, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

func (f *fakeBackend) Health(context.Context) error { return f.healthErr }

func peopleSchema() *domain.Schema {
	s := domain.NewSchema().
		AddField("_id", domain.FieldSpec{BSONType: domain.FieldTypeObjectID}).
		AddField("email", domain.FieldSpec{BSONType: domain.FieldTypeString, Unique: true}).
		AddField("age", domain.FieldSpec{BSONType: domain.FieldTypeInt}).
		AddField("owner", domain.FieldSpec{BSONType: domain.FieldTypeObjectID, Description: "REF:users"})
	s.Required = []string{"_id", "email"}
	return s
}

func newTestServer(t *testing.T, deps Deps) (*Server, *fakeBackend, *service.MockEmitter) {
	t.Helper()
	fb := &fakeBackend{schema: peopleSchema()}
	em := &service.MockEmitter{}
	deps.Backend = fb
	deps.Emitter = em
	return New(context.Background(), deps), fb, em
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestGetSchema_DescribesFieldsInDisplayOrder(t *testing.T) {
	s, _, _ := newTestServer(t, Deps{})

	res, err := s.handleGetSchema(context.Background(), call(map[string]any{"collection": "people"}))
	require.NoError(t, err)

	var out struct {
		Fields     []fieldInfo `json:"fields"`
		LabelField string      `json:"labelField"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	require.Len(t, out.Fields, 4)
	assert.Equal(t, "_id", out.Fields[0].Name)
	assert.Equal(t, "email", out.Fields[1].Name)
	assert.True(t, out.Fields[1].Unique)
	assert.Equal(t, "users", out.Fields[3].References)
	assert.Equal(t, "email", out.LabelField)
}

func TestGetSchema_MissingCollectionArgument(t *testing.T) {
	s, _, _ := newTestServer(t, Deps{})
	res, err := s.handleGetSchema(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListDocuments_Paging(t *testing.T) {
	s, _, _ := newTestServer(t, Deps{PageSize: 20})

	res, err := s.handleListDocuments(context.Background(), call(map[string]any{
		"collection": "people", "view": "archives", "page": float64(2),
	}))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.EqualValues(t, 45, out["total"])
	assert.Equal(t, true, out["hasMore"])
	assert.Equal(t, "archives", out["items"].([]any)[0].(map[string]any)["view"])

	res, err = s.handleListDocuments(context.Background(), call(map[string]any{"collection": "people", "view": "trash"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestUpdateField_CoercesBeforeSending(t *testing.T) {
	s, fb, em := newTestServer(t, Deps{})

	res, err := s.handleUpdateField(context.Background(), call(map[string]any{
		"collection": "people", "id": "x", "field": "age", "value": "33",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, fb.patches, 1)
	assert.Equal(t, domain.Document{"age": int64(33)}, fb.patches[0])
	assert.Len(t, em.Named("mcp:collection-changed"), 1)

	res, err = s.handleUpdateField(context.Background(), call(map[string]any{
		"collection": "people", "id": "x", "field": "age", "value": "12.5",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Invalid integer value")
	assert.Len(t, fb.patches, 1)

	res, err = s.handleUpdateField(context.Background(), call(map[string]any{
		"collection": "people", "id": "x", "field": "_id", "value": "y",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestCreateDocument(t *testing.T) {
	s, fb, _ := newTestServer(t, Deps{})

	res, err := s.handleCreateDocument(context.Background(), call(map[string]any{
		"collection": "people",
		"document":   map[string]any{"email": "a@b.c", "age": float64(41), "note": "free text"},
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, fb.created, 1)
	assert.Equal(t, domain.Document{"email": "a@b.c", "age": int64(41), "note": "free text"}, fb.created[0])

	fb.createErr = errors.New(`E11000 duplicate key error collection: db.people index: email_1 dup key: { email: "a@b.c" }`)
	res, err = s.handleCreateDocument(context.Background(), call(map[string]any{
		"collection": "people", "document": map[string]any{"email": "a@b.c"},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), `"email"`)
}

func TestDeleteDocument_RefusedWithoutApproval(t *testing.T) {
	s, fb, _ := newTestServer(t, Deps{})

	res, err := s.handleDeleteDocument(context.Background(), call(map[string]any{"collection": "people", "id": "x"}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "needs approval")
	assert.Empty(t, fb.deleted)
}

func TestDeleteDocument_AutoApproved(t *testing.T) {
	s, fb, _ := newTestServer(t, Deps{AutoApprove: true})

	_, err := s.handleDeleteDocument(context.Background(), call(map[string]any{"collection": "people", "id": "x"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, fb.deleted)
}

func TestBatchDelete_WaitsForApproval(t *testing.T) {
	s, fb, em := newTestServer(t, Deps{Interactive: true})

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, _ := s.handleBatchAction(context.Background(), call(map[string]any{
			"collection": "people", "ids": []any{"a", "b"}, "action": "delete",
		}))
		done <- res
	}()

	var pending PendingAction
	require.Eventually(t, func() bool {
		evs := em.Named("mcp:approval-required")
		if len(evs) == 0 {
			return false
		}
		pending = evs[0].(PendingAction)
		return true
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "batch_action", pending.Tool)

	s.Approve(pending.ID)
	res := <-done
	assert.Contains(t, text(t, res), `"affected": 2`)
	assert.Equal(t, []string{"a", "b"}, fb.batch)
}

func TestBatchArchive_NoApprovalNeeded(t *testing.T) {
	s, _, _ := newTestServer(t, Deps{})
	res, err := s.handleBatchAction(context.Background(), call(map[string]any{
		"collection": "people", "ids": []any{"a"}, "action": "archive",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleBatchAction(context.Background(), call(map[string]any{
		"collection": "people", "ids": []any{}, "action": "archive",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDocumentAction(t *testing.T) {
	s, _, _ := newTestServer(t, Deps{})

	res, err := s.handleDocumentAction(context.Background(), call(map[string]any{
		"collection": "people", "id": "x", "action": "pin",
	}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"pinned": true`)

	res, err = s.handleDocumentAction(context.Background(), call(map[string]any{
		"collection": "people", "id": "x", "action": "shred",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestGenerateReport_FromInlineEntries(t *testing.T) {
	dir := t.TempDir()
	reports := service.NewReportService(service.ReportDefaults{OutputDir: dir}, nil, nil, nil)
	s, _, _ := newTestServer(t, Deps{Reports: reports})

	out := filepath.Join(dir, "r.pdf")
	res, err := s.handleGenerateReport(context.Background(), call(map[string]any{
		"entries": []any{
			map[string]any{"date": "2024-05-01", "time": "08:30", "name": "Ana", "course": "BSIT", "purpose": "Study"},
		},
		"schoolYear": "2023-2024",
		"outputPath": out,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))

	var run domain.ReportRun
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &run))
	assert.Equal(t, out, run.OutputPath)
	assert.Equal(t, 1, run.Entries)
	_, err = os.Stat(out)
	require.NoError(t, err)
}

func TestSummarize(t *testing.T) {
	reports := service.NewReportService(service.ReportDefaults{}, nil, nil, nil)
	s, _, _ := newTestServer(t, Deps{Reports: reports})

	res, err := s.handleSummarize(context.Background(), call(map[string]any{
		"entries": []any{
			map[string]any{"course": "BSIT", "purpose": "Study"},
			map[string]any{"course": "BSIT", "purpose": "Borrow"},
		},
	}))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"grandTotal": 2`)
}

func TestCollectionFromURI(t *testing.T) {
	assert.Equal(t, "people", collectionFromURI("docdesk://collection/people/schema"))
	assert.Empty(t, collectionFromURI("docdesk://collection//schema"))
	assert.Empty(t, collectionFromURI("docdesk://collection/a/b/schema"))
	assert.Empty(t, collectionFromURI("files://collection/x/schema"))
}

func TestCheckConnection(t *testing.T) {
	s, fb, _ := newTestServer(t, Deps{})
	res, _ := s.handleCheckConnection(context.Background(), call(nil))
	assert.Equal(t, "online", text(t, res))

	fb.healthErr = errors.New("refused")
	res, _ = s.handleCheckConnection(context.Background(), call(nil))
	assert.Equal(t, "offline: refused", text(t, res))
}
