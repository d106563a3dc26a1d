package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	collectionsURI    = "docdesk://collections"
	schemaURIPrefix   = "docdesk://collection/"
	schemaURISuffix   = "/schema"
	schemaURITemplate = schemaURIPrefix + "{name}" + schemaURISuffix
)

func (s *Server) registerResources() {
	// ── docdesk://collections ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		collectionsURI,
		"All Collections",
		mcp.WithMIMEType("application/json"),
	), s.handleCollectionsResource)

	// ── docdesk://collection/{name}/schema ─────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			schemaURITemplate,
			"Collection Schema",
		),
		s.handleSchemaResource,
	)
}

func (s *Server) handleCollectionsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	names, err := s.backend.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(collectionsURI, names)
}

func (s *Server) handleSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := collectionFromURI(uri)
	if name == "" {
		return nil, fmt.Errorf("could not extract collection from URI: %s", uri)
	}
	schema, err := s.backend.GetSchema(ctx, name)
	if err != nil {
		return nil, err
	}
	return jsonContents(uri, describeSchema(schema))
}

// collectionFromURI extracts the name from "docdesk://collection/{name}/schema".
func collectionFromURI(uri string) string {
	if !strings.HasPrefix(uri, schemaURIPrefix) || !strings.HasSuffix(uri, schemaURISuffix) {
		return ""
	}
	name := strings.TrimSuffix(strings.TrimPrefix(uri, schemaURIPrefix), schemaURISuffix)
	if name == "" || strings.Contains(name, "/") {
		return ""
	}
	return name
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
