package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"docdesk/internal/domain"
	"docdesk/internal/grid"
)

func (s *Server) registerDocumentTools() {
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Insert a document. Field values are converted to the schema types; unknown fields are sent as given"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithObject("document", mcp.Description("Field values keyed by field name"), mcp.Required()),
	), s.handleCreateDocument)

	s.mcp.AddTool(mcp.NewTool("update_field",
		mcp.WithDescription("Set one field of a document. The value is converted to the field's schema type first"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("id", mcp.Description("Document id (24-char hex)"), mcp.Required()),
		mcp.WithString("field", mcp.Description("Field name"), mcp.Required()),
		mcp.WithString("value", mcp.Description("New value as text; objects and arrays as JSON"), mcp.Required()),
	), s.handleUpdateField)

	s.mcp.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("Permanently delete a document. 🛑 Requires user approval."),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("id", mcp.Description("Document id"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDocument)

	s.mcp.AddTool(mcp.NewTool("document_action",
		mcp.WithDescription("Pin, unpin, archive or recover a document"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("id", mcp.Description("Document id"), mcp.Required()),
		mcp.WithString("action", mcp.Description("Action to apply"), mcp.Required(),
			mcp.Enum("pin", "unpin", "archive", "recover")),
	), s.handleDocumentAction)

	s.mcp.AddTool(mcp.NewTool("batch_action",
		mcp.WithDescription("Delete, archive or recover several documents at once. 🛑 Deletes require user approval."),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithArray("ids", mcp.Description("Document ids"), mcp.Required(),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("action", mcp.Description("Action to apply"), mcp.Required(),
			mcp.Enum("delete", "archive", "recover")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleBatchAction)
}

type createArgs struct {
	Collection string         `mapstructure:"collection" validate:"required"`
	Document   map[string]any `mapstructure:"document" validate:"required"`
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	schema, err := s.backend.GetSchema(ctx, args.Collection)
	if err != nil {
		return errorResult(fmt.Errorf("get schema: %w", err)), nil
	}

	doc := domain.Document{}
	var problems []string
	for field, raw := range args.Document {
		if field == domain.IdentityField {
			continue
		}
		spec, known := schema.Field(field)
		if !known {
			doc[field] = raw
			continue
		}
		_, isRef := spec.ReferencedCollection()
		v, err := grid.Coerce(field, spec, isRef, stageInput(spec, isRef, raw))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", field, err))
			continue
		}
		doc[field] = v
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errorResult(fmt.Errorf("invalid fields: %s", strings.Join(problems, "; "))), nil
	}

	id, err := s.backend.CreateDocument(ctx, args.Collection, doc)
	if err != nil {
		if dup, ok := grid.AsDuplicateKey(err); ok {
			return errorResult(fmt.Errorf("duplicate value for unique field %q", dup.Field)), nil
		}
		return errorResult(fmt.Errorf("create document: %w", err)), nil
	}
	s.log.Infow("[MCP] document created", "collection", args.Collection, "id", id)
	s.emitCollectionChanged(ctx, args.Collection)
	return jsonResult(map[string]string{"id": id})
}

type updateArgs struct {
	Collection string `mapstructure:"collection" validate:"required"`
	ID         string `mapstructure:"id" validate:"required"`
	Field      string `mapstructure:"field" validate:"required"`
	Value      any    `mapstructure:"value"`
}

func (s *Server) handleUpdateField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args updateArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if !grid.Editable(args.Field) {
		return errorResult(fmt.Errorf("field %q cannot be edited", args.Field)), nil
	}
	schema, err := s.backend.GetSchema(ctx, args.Collection)
	if err != nil {
		return errorResult(fmt.Errorf("get schema: %w", err)), nil
	}
	spec, known := schema.Field(args.Field)
	if !known {
		return errorResult(fmt.Errorf("collection %s has no field %q", args.Collection, args.Field)), nil
	}

	_, isRef := spec.ReferencedCollection()
	value, err := grid.Coerce(args.Field, spec, isRef, stageInput(spec, isRef, args.Value))
	if err != nil {
		return errorResult(err), nil
	}

	res, err := s.backend.UpdateDocument(ctx, args.Collection, args.ID, domain.Document{args.Field: value})
	if err != nil {
		return errorResult(fmt.Errorf("update field %q: %w", args.Field, err)), nil
	}
	s.emitCollectionChanged(ctx, args.Collection)
	if res != nil && res.Document != nil {
		return jsonResult(res.Document)
	}
	return jsonResult(map[string]any{"id": args.ID, args.Field: value})
}

type idArgs struct {
	Collection string `mapstructure:"collection" validate:"required"`
	ID         string `mapstructure:"id" validate:"required"`
	Action     string `mapstructure:"action"`
}

func (s *Server) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args idArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if _, err := s.approval.Request("delete_document",
		fmt.Sprintf("Delete document %s from %s", args.ID, args.Collection)); err != nil {
		return textResult(err.Error()), nil
	}
	if err := s.backend.DeleteDocument(ctx, args.Collection, args.ID); err != nil {
		return errorResult(fmt.Errorf("delete document: %w", err)), nil
	}
	s.log.Infow("[MCP] document deleted", "collection", args.Collection, "id", args.ID)
	s.emitCollectionChanged(ctx, args.Collection)
	return textResult(fmt.Sprintf("Deleted %s", args.ID)), nil
}

func (s *Server) handleDocumentAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args idArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	actions := map[string]func(context.Context, string, string) (domain.Document, error){
		"pin":     s.backend.PinDocument,
		"unpin":   s.backend.UnpinDocument,
		"archive": s.backend.ArchiveDocument,
		"recover": s.backend.RecoverDocument,
	}
	do, ok := actions[args.Action]
	if !ok {
		return errorResult(fmt.Errorf("unknown action %q", args.Action)), nil
	}
	doc, err := do(ctx, args.Collection, args.ID)
	if err != nil {
		return errorResult(fmt.Errorf("%s document: %w", args.Action, err)), nil
	}
	s.emitCollectionChanged(ctx, args.Collection)
	if doc == nil {
		return textResult(fmt.Sprintf("%s applied to %s", args.Action, args.ID)), nil
	}
	return jsonResult(doc)
}

type batchArgs struct {
	Collection string   `mapstructure:"collection" validate:"required"`
	IDs        []string `mapstructure:"ids" validate:"required,min=1,dive,required"`
	Action     string   `mapstructure:"action" validate:"oneof=delete archive recover"`
}

func (s *Server) handleBatchAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args batchArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}

	var (
		n   int64
		err error
	)
	switch args.Action {
	case "delete":
		if _, aerr := s.approval.Request("batch_action",
			fmt.Sprintf("Delete %d documents from %s: %s", len(args.IDs), args.Collection,
				truncate(strings.Join(args.IDs, ", "), 100))); aerr != nil {
			return textResult(aerr.Error()), nil
		}
		n, err = s.backend.BatchDelete(ctx, args.Collection, args.IDs)
	case "archive":
		n, err = s.backend.BatchArchive(ctx, args.Collection, args.IDs)
	case "recover":
		n, err = s.backend.BatchRecover(ctx, args.Collection, args.IDs)
	}
	if err != nil {
		return errorResult(fmt.Errorf("batch %s: %w", args.Action, err)), nil
	}
	s.emitCollectionChanged(ctx, args.Collection)
	return jsonResult(map[string]any{"action": args.Action, "affected": n})
}

// stageInput prepares an agent-supplied value for grid.Coerce. Structured
// values are re-encoded as JSON text and references reduced to their id;
// scalars pass through so an unparsable date is rejected, not cleared.
func stageInput(spec domain.FieldSpec, isRef bool, v any) any {
	switch v.(type) {
	case map[string]any, []any:
		return grid.StageValue(spec, isRef, v)
	}
	return v
}
