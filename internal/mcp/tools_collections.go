package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"docdesk/internal/domain"
	"docdesk/internal/grid"
	"docdesk/internal/refs"
)

func (s *Server) registerCollectionTools() {
	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List the collections of the document store"),
	), s.handleListCollections)

	s.mcp.AddTool(mcp.NewTool("get_schema",
		mcp.WithDescription("Get a collection's fields in display order with their types, reference targets and uniqueness"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
	), s.handleGetSchema)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List one page of documents in a collection view"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("view", mcp.Description("View to list"),
			mcp.Enum("all", "archives", "recoveries", "empty-or-recovered", "pins")),
		mcp.WithString("filter", mcp.Description(`Extended-JSON filter, e.g. {"age": {"$gt": 30}}`)),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("pageSize", mcp.Description("Documents per page")),
	), s.handleListDocuments)

	s.mcp.AddTool(mcp.NewTool("check_connection",
		mcp.WithDescription("Check whether the document-store API is reachable"),
	), s.handleCheckConnection)
}

func (s *Server) handleListCollections(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.backend.ListCollections(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("list collections: %w", err)), nil
	}
	return jsonResult(names)
}

// fieldInfo is the agent-facing view of one schema property.
type fieldInfo struct {
	Name       string           `json:"name"`
	Type       domain.FieldType `json:"type"`
	Required   bool             `json:"required,omitempty"`
	Unique     bool             `json:"unique,omitempty"`
	References string           `json:"references,omitempty"`
	Hidden     bool             `json:"hidden,omitempty"`
}

type collectionArgs struct {
	Collection string `mapstructure:"collection" validate:"required"`
}

func (s *Server) handleGetSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args collectionArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	schema, err := s.backend.GetSchema(ctx, args.Collection)
	if err != nil {
		return errorResult(fmt.Errorf("get schema: %w", err)), nil
	}
	return jsonResult(describeSchema(schema))
}

func describeSchema(schema *domain.Schema) map[string]any {
	hidden := map[string]bool{}
	for _, f := range schema.UI.HiddenColumns {
		hidden[f] = true
	}

	var fields []fieldInfo
	for _, name := range grid.OrderColumns(schema) {
		spec, _ := schema.Field(name)
		ref, _ := spec.ReferencedCollection()
		fields = append(fields, fieldInfo{
			Name:       name,
			Type:       spec.BSONType,
			Required:   schema.IsRequired(name),
			Unique:     spec.Unique,
			References: ref,
			Hidden:     hidden[name],
		})
	}
	return map[string]any{
		"fields":     fields,
		"labelField": refs.LabelField(schema),
	}
}

type listArgs struct {
	Collection string `mapstructure:"collection" validate:"required"`
	View       string `mapstructure:"view"`
	Filter     string `mapstructure:"filter"`
	Page       int    `mapstructure:"page" validate:"gte=0"`
	PageSize   int    `mapstructure:"pageSize" validate:"gte=0,lte=500"`
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args listArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	view := domain.View(args.View)
	if args.View == "" {
		view = domain.ViewAll
	}
	if !view.Valid() {
		return errorResult(fmt.Errorf("unknown view %q", args.View)), nil
	}
	q := domain.ListQuery{Filter: args.Filter, Page: max(args.Page, 1), Limit: args.PageSize}
	if q.Limit == 0 {
		q.Limit = s.pageSize
	}

	page, err := s.backend.ListDocuments(ctx, args.Collection, view, q)
	if err != nil {
		return errorResult(fmt.Errorf("list documents: %w", err)), nil
	}
	return jsonResult(map[string]any{
		"items":   page.Items,
		"total":   page.Total,
		"page":    q.Page,
		"hasMore": q.Page*q.Limit < page.Total,
	})
}

func (s *Server) handleCheckConnection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.backend.Health(ctx); err != nil {
		return textResult(fmt.Sprintf("offline: %v", err)), nil
	}
	return textResult("online"), nil
}
