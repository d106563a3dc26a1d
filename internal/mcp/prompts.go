package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("monthly_attendance_report",
		mcp.WithPromptDescription("Build the library attendance report from a collection of visit logs"),
		mcp.WithArgument("collection",
			mcp.ArgumentDescription("Collection holding the visit logs"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("schoolYear",
			mcp.ArgumentDescription("School year printed in the title, e.g. 2023-2024"),
			mcp.RequiredArgument(),
		),
	), s.handleAttendancePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("clean_import",
		mcp.WithPromptDescription("Import a CSV file and fix the rows the server rejected"),
		mcp.WithArgument("collection",
			mcp.ArgumentDescription("Target collection"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("CSV file to import"),
			mcp.RequiredArgument(),
		),
	), s.handleCleanImportPrompt)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			},
		},
	}
}

func (s *Server) handleAttendancePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	collection := req.Params.Arguments["collection"]
	year := req.Params.Arguments["schoolYear"]
	return userPrompt(
		fmt.Sprintf("Attendance report from %s", collection),
		fmt.Sprintf(`Produce the attendance report for school year %s from the "%s" collection. Follow these steps:

1. Use get_schema to find the fields holding the visit date, time, student name, course and purpose
2. Page through the collection with list_documents (view "all") until hasMore is false
3. Map every document to {date, time, name, course, purpose}
4. Call summarize_attendance and show the per-course and per-purpose totals for review
5. Call generate_attendance_report with schoolYear "%s" and report the output path and page count`,
			year, collection, year),
	), nil
}

func (s *Server) handleCleanImportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	collection := req.Params.Arguments["collection"]
	path := req.Params.Arguments["path"]
	return userPrompt(
		fmt.Sprintf("Import %s into %s", path, collection),
		fmt.Sprintf(`Import %s into the "%s" collection. Follow these steps:

1. Use get_schema to check the field types and which fields are unique
2. Run import_csv and read the summary
3. For each error line, explain which cell was rejected and why (type conversion or duplicate value)
4. Propose corrected values; insert them with create_document only after the user agrees`,
			path, collection),
	), nil
}
