package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTransferTools() {
	s.mcp.AddTool(mcp.NewTool("import_csv",
		mcp.WithDescription("Import a CSV file into a collection. The header row names the fields; cells are converted to the schema types and each row is inserted separately"),
		mcp.WithString("collection", mcp.Description("Target collection"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Absolute path of the CSV file"), mcp.Required()),
	), s.handleImportCSV)

	s.mcp.AddTool(mcp.NewTool("export_csv",
		mcp.WithDescription("Download a collection as CSV to a file"),
		mcp.WithString("collection", mcp.Description("Collection name"), mcp.Required()),
		mcp.WithString("path", mcp.Description("Absolute path of the file to write"), mcp.Required()),
	), s.handleExportCSV)

	s.mcp.AddTool(mcp.NewTool("import_history",
		mcp.WithDescription("List recent CSV imports, newest first"),
		mcp.WithString("collection", mcp.Description("Only imports into this collection (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.handleImportHistory)
}

type pathArgs struct {
	Collection string `mapstructure:"collection" validate:"required"`
	Path       string `mapstructure:"path" validate:"required,filepath"`
}

func (s *Server) handleImportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.imports == nil {
		return errorResult(errors.New("import is not available")), nil
	}
	var args pathArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	sum, err := s.imports.ImportFile(ctx, args.Collection, args.Path)
	if err != nil {
		return errorResult(fmt.Errorf("import: %w", err)), nil
	}
	s.emitCollectionChanged(ctx, args.Collection)
	return jsonResult(sum)
}

func (s *Server) handleExportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.imports == nil {
		return errorResult(errors.New("export is not available")), nil
	}
	var args pathArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	n, err := s.imports.ExportCSV(ctx, args.Collection, args.Path)
	if err != nil {
		return errorResult(fmt.Errorf("export: %w", err)), nil
	}
	return jsonResult(map[string]any{"path": args.Path, "bytes": n})
}

type historyArgs struct {
	Collection string `mapstructure:"collection"`
	Limit      int    `mapstructure:"limit" validate:"gte=0"`
}

func (s *Server) handleImportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.imports == nil {
		return errorResult(errors.New("import is not available")), nil
	}
	var args historyArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Limit == 0 {
		args.Limit = 20
	}
	runs, err := s.imports.History(args.Collection, args.Limit)
	if err != nil {
		return errorResult(fmt.Errorf("import history: %w", err)), nil
	}
	return jsonResult(runs)
}
