package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"docdesk/internal/report"
	"docdesk/internal/service"
)

func (s *Server) registerReportTools() {
	s.mcp.AddTool(mcp.NewTool("generate_attendance_report",
		mcp.WithDescription("Render the daily library attendance report as a PDF. Pass the visits inline or as a JSON/CSV file with date, time, name, course and purpose"),
		mcp.WithArray("entries", mcp.Description("Visits: objects with date, time, name, course, purpose"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithString("entriesPath", mcp.Description("JSON or CSV file holding the visits (used when entries is empty)")),
		mcp.WithArray("categories", mcp.Description("Course columns in order (defaults to the configured list)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("schoolYear", mcp.Description("School year printed in the title, e.g. 2023-2024")),
		mcp.WithString("titleDate", mcp.Description("Date printed in the title")),
		mcp.WithString("outputPath", mcp.Description("Where to write the PDF (optional)")),
	), s.handleGenerateReport)

	s.mcp.AddTool(mcp.NewTool("summarize_attendance",
		mcp.WithDescription("Count visits per course and per purpose without rendering a PDF"),
		mcp.WithArray("entries", mcp.Description("Visits: objects with date, time, name, course, purpose"),
			mcp.Required(), mcp.Items(map[string]any{"type": "object"})),
		mcp.WithArray("categories", mcp.Description("Course columns in order"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.handleSummarize)

	s.mcp.AddTool(mcp.NewTool("report_history",
		mcp.WithDescription("List generated reports, newest first"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of reports (default 20)")),
	), s.handleReportHistory)
}

type reportArgs struct {
	Entries     []map[string]any `mapstructure:"entries"`
	EntriesPath string           `mapstructure:"entriesPath"`
	Categories  []string         `mapstructure:"categories"`
	SchoolYear  string           `mapstructure:"schoolYear"`
	TitleDate   string           `mapstructure:"titleDate"`
	OutputPath  string           `mapstructure:"outputPath"`
}

func (a reportArgs) load() ([]report.Entry, error) {
	if len(a.Entries) > 0 || a.EntriesPath == "" {
		return report.DecodeEntries(a.Entries)
	}
	f, err := os.Open(a.EntriesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return report.ReadEntries(a.EntriesPath, f)
}

func (s *Server) handleGenerateReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reports == nil {
		return errorResult(errors.New("reports are not available")), nil
	}
	var args reportArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	entries, err := args.load()
	if err != nil {
		return errorResult(fmt.Errorf("read entries: %w", err)), nil
	}

	run, err := s.reports.Generate(ctx, service.ReportRequest{
		Entries:    entries,
		Categories: args.Categories,
		SchoolYear: args.SchoolYear,
		TitleDate:  args.TitleDate,
		OutputPath: args.OutputPath,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(run)
}

func (s *Server) handleSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reports == nil {
		return errorResult(errors.New("reports are not available")), nil
	}
	var args reportArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	entries, err := report.DecodeEntries(args.Entries)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(s.reports.Preview(entries, args.Categories))
}

func (s *Server) handleReportHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reports == nil {
		return errorResult(errors.New("reports are not available")), nil
	}
	var args historyArgs
	if err := bindArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if args.Limit == 0 {
		args.Limit = 20
	}
	runs, err := s.reports.History(args.Limit)
	if err != nil {
		return errorResult(fmt.Errorf("report history: %w", err)), nil
	}
	return jsonResult(runs)
}
