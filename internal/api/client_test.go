package api_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdesk/internal/api"
	"docdesk/internal/domain"
)

const baseURL = "http://console.test"

func newClient(token string) *api.Client {
	return api.New(api.Options{BaseURL: baseURL, Tokens: api.StaticToken(token)})
}

func TestCall_UnwrapsEnvelope(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections").
		Reply(200).
		JSON(map[string]any{"success": true, "data": []string{"books", "students"}})

	names, err := newClient("").ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "students"}, names)
	assert.True(t, gock.IsDone())
}

func TestCall_APIErrorOnSuccessFalse(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections").
		Reply(200).
		JSON(map[string]any{"success": false, "error": "database offline"})

	_, err := newClient("").ListCollections(context.Background())
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "database offline", apiErr.Message)
}

func TestCall_APIErrorFallbackMessage(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections").
		Reply(200).
		JSON(map[string]any{"success": false})

	_, err := newClient("").ListCollections(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Unknown API error", err.Error())
}

func TestCall_NetworkErrorOnNon2xx(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections/books/schema").
		Reply(500).
		JSON(map[string]any{"success": false, "error": "boom"})

	_, err := newClient("").GetSchema(context.Background(), "books")
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 500, netErr.Status)
	assert.Equal(t, "boom", netErr.Message)
	assert.Contains(t, err.Error(), "HTTP error! status: 500")
}

func TestCall_NetworkErrorOnTransportFailure(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections").ReplyError(errors.New("connection refused"))

	_, err := newClient("").ListCollections(context.Background())
	var netErr *api.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 0, netErr.Status)
}

func TestCall_AttachesBearerToken(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/api/auth/me").
		MatchHeader("Authorization", "^Bearer secret-token$").
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{"id": "u1", "username": "admin", "email": "a@b.c"}})

	u, err := newClient("secret-token").Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
}

func TestGetSchema_PreservesPropertyOrder(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections/books/schema").
		Reply(200).
		BodyString(`{"success":true,"data":{
			"properties":{
				"title":{"bsonType":"string","unique":true},
				"author":{"bsonType":["string","null"],"description":"REF:authors"},
				"copies":{"bsonType":"int"}
			},
			"required":["title"],
			"ui":{"columnOrder":["copies"],"columnWidths":{"title":240},"short_names":{"copies":"#"}}
		}}`)

	s, err := newClient("").GetSchema(context.Background(), "books")
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "author", "copies"}, s.FieldNames())

	author, ok := s.Field("author")
	require.True(t, ok)
	assert.Equal(t, domain.FieldTypeString, author.BSONType)
	target, ok := s.ReferenceTarget("author")
	require.True(t, ok)
	assert.Equal(t, "authors", target)

	assert.True(t, s.IsRequired("title"))
	assert.Equal(t, 240, s.UI.ColumnWidths["title"])
	assert.Equal(t, "#", s.UI.ShortNames["copies"])
}

func TestListDocuments_SendsQueryAndView(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections/books/archives").
		MatchParam("page", "2").
		MatchParam("limit", "20").
		MatchParam("filter", regexp.QuoteMeta(`{"title":"Dune"}`)).
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{
			"items": []map[string]any{{"_id": map[string]any{"$oid": "65a000000000000000000001"}, "title": "Dune"}},
			"total": 21,
		}})

	page, err := newClient("").ListDocuments(context.Background(), "books", domain.ViewArchives,
		domain.ListQuery{Filter: `{"title":"Dune"}`, Page: 2, Limit: 20})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "65a000000000000000000001", page.Items[0].ID())
	assert.Equal(t, 21, page.Total)
}

func TestListDocuments_InvalidFilterNeverSent(t *testing.T) {
	defer gock.Off()

	_, err := newClient("").ListDocuments(context.Background(), "books", domain.ViewAll,
		domain.ListQuery{Filter: `{"title":`, Page: 1, Limit: 20})
	var vErr *api.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "filter", vErr.Field)
	assert.Contains(t, vErr.Message, "Invalid filter JSON")
	assert.False(t, gock.HasUnmatchedRequest())
}

func TestUpdateDocument_ReturnsServerDocument(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Put("/collections/books/documents/abc").
		JSON(map[string]any{"copies": 3}).
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{
			"success": true, "modified_count": 1,
			"document": map[string]any{"_id": map[string]any{"$oid": "abc"}, "copies": 3},
		}})

	res, err := newClient("").UpdateDocument(context.Background(), "books", "abc", domain.Document{"copies": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.ModifiedCount)
	assert.EqualValues(t, 3, res.Document["copies"])
}

func TestBatchArchive_PostsIDs(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Post("/collections/books/documents/batch-archive").
		JSON(map[string]any{"ids": []string{"a", "b"}}).
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{"message": "2 documents archived", "archived_count": 2}})

	n, err := newClient("").BatchArchive(context.Background(), "books", []string{"a", "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestBatchRecover_ReadsRecoveredCount(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Post("/collections/books/documents/batch-recover").
		JSON(map[string]any{"ids": []string{"a", "b", "c"}}).
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{"message": "3 documents recovered", "recovered_count": 3}})

	n, err := newClient("").BatchRecover(context.Background(), "books", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestDownloadCSV_StreamsRawBody(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Get("/collections/books/download-csv").
		Reply(200).
		BodyString("title,copies\nDune,3\n")

	var buf bytes.Buffer
	n, err := newClient("").DownloadCSV(context.Background(), "books", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, buf.Len(), n)
	assert.Equal(t, "title,copies\nDune,3\n", buf.String())
}

func TestLogin_ReturnsToken(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Post("/api/auth/login").
		JSON(map[string]string{"identifier": "admin", "password": "pw"}).
		Reply(200).
		JSON(map[string]any{"success": true, "data": map[string]any{"token": "tok-1"}})

	tok, err := newClient("").Login(context.Background(), "admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestHealth(t *testing.T) {
	defer gock.Off()
	gock.New(baseURL).Head("/api/health").Reply(200)
	require.NoError(t, newClient("").Health(context.Background()))

	gock.New(baseURL).Head("/api/health").Reply(503)
	var netErr *api.NetworkError
	require.ErrorAs(t, newClient("").Health(context.Background()), &netErr)
	assert.Equal(t, 503, netErr.Status)
}

func TestInspectToken_OpaqueTokenGetsDefaultLifetime(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := api.InspectToken("not-a-jwt", issued)
	assert.Equal(t, issued.Add(api.SessionLifetime), s.ExpiresAt)
	assert.Empty(t, s.Subject)
}
