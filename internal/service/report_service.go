package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"docdesk/internal/domain"
	"docdesk/internal/report"
)

// ReportDefaults are the report settings taken from configuration.
type ReportDefaults struct {
	OutputDir  string
	SchoolYear string
	LogoPath   string
	Categories []string
	Letterhead report.Letterhead
}

// ReportRequest describes one report. Empty fields fall back to the
// service defaults.
type ReportRequest struct {
	Entries    []report.Entry `json:"entries"`
	Categories []string       `json:"categories"`
	SchoolYear string         `json:"schoolYear"`
	TitleDate  string         `json:"titleDate"`
	OutputPath string         `json:"outputPath"`
}

// ReportService renders attendance reports to disk and records them.
type ReportService struct {
	defaults ReportDefaults
	runs     domain.ReportRunStore
	emitter  EventEmitter
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewReportService creates a ReportService. runs may be nil.
func NewReportService(defaults ReportDefaults, runs domain.ReportRunStore, emitter EventEmitter, log *zap.SugaredLogger) *ReportService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ReportService{defaults: defaults, runs: runs, emitter: emitter, log: log, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *ReportService) SetClock(now func() time.Time) { s.now = now }

// Generate renders the report, writes the PDF and records the run.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (*domain.ReportRun, error) {
	now := s.now()

	categories := req.Categories
	if len(categories) == 0 {
		categories = s.defaults.Categories
	}
	if len(categories) == 0 {
		categories = report.CategoriesOf(req.Entries)
	}

	opts := report.Options{
		SchoolYear:  firstNonEmpty(req.SchoolYear, s.defaults.SchoolYear),
		TitleDate:   firstNonEmpty(req.TitleDate, now.Format("January 2, 2006")),
		Letterhead:  s.defaults.Letterhead,
		GeneratedAt: now,
	}
	if s.defaults.LogoPath != "" {
		logo, err := os.ReadFile(s.defaults.LogoPath)
		if err != nil {
			s.log.Warnw("[REPORT] logo unreadable, rendering without it", "path", s.defaults.LogoPath, "error", err)
		} else {
			opts.Logo = logo
		}
	}

	doc, err := report.Generate(req.Entries, categories, opts)
	if err != nil {
		toast(ctx, s.emitter, "Report Error", err.Error(), domain.ToastDestructive)
		return nil, fmt.Errorf("generate report: %w", err)
	}

	path := req.OutputPath
	if path == "" {
		path = filepath.Join(s.defaults.OutputDir, fmt.Sprintf("attendance-%s.pdf", now.Format("20060102-150405")))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, doc.Bytes(), 0o644); err != nil {
		toast(ctx, s.emitter, "Report Error", err.Error(), domain.ToastDestructive)
		return nil, fmt.Errorf("write report: %w", err)
	}

	run := &domain.ReportRun{
		Title:      opts.Title(),
		SchoolYear: opts.SchoolYear,
		Entries:    len(req.Entries),
		Pages:      doc.PageCount(),
		OutputPath: path,
		CreatedAt:  now,
	}
	if s.runs != nil {
		if err := s.runs.CreateRun(run); err != nil {
			s.log.Warnw("[REPORT] history not recorded", "error", err)
		}
	}

	s.log.Infow("[REPORT] generated", "path", path, "entries", run.Entries, "pages", run.Pages)
	s.emitter.Emit(ctx, EventReportGenerated, run)
	toast(ctx, s.emitter, "Report ready",
		fmt.Sprintf("%d pages, %s", run.Pages, humanize.Bytes(uint64(len(doc.Bytes())))), domain.ToastDefault)
	return run, nil
}

// Preview returns the summary tables without rendering a PDF.
func (s *ReportService) Preview(entries []report.Entry, categories []string) report.Summary {
	if len(categories) == 0 {
		categories = s.defaults.Categories
	}
	if len(categories) == 0 {
		categories = report.CategoriesOf(entries)
	}
	return report.Summarize(entries, categories)
}

// History lists generated reports, newest first.
func (s *ReportService) History(limit int) ([]domain.ReportRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(limit)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
