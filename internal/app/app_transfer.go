package app

import (
	"fmt"
	"os"
	"path/filepath"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"docdesk/internal/csvimport"
	"docdesk/internal/domain"
	"docdesk/internal/report"
	"docdesk/internal/service"
)

var (
	csvFilter  = wailsRuntime.FileFilter{DisplayName: "CSV files (*.csv)", Pattern: "*.csv"}
	dataFilter = wailsRuntime.FileFilter{DisplayName: "Visit logs (*.json, *.csv)", Pattern: "*.json;*.csv"}
)

// ============================================================
// CSV import / export
// ============================================================

// ImportCSV asks for a file and imports it into collection. A cancelled
// dialog returns nil, nil.
func (a *App) ImportCSV(collection string) (*csvimport.Summary, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:   fmt.Sprintf("Import CSV into %s", collection),
		Filters: []wailsRuntime.FileFilter{csvFilter},
	})
	if err != nil || path == "" {
		return nil, err
	}
	return a.ImportCSVFile(collection, path)
}

// ImportCSVFile imports the CSV at path and refreshes the grid when it
// shows the same collection.
func (a *App) ImportCSVFile(collection, path string) (*csvimport.Summary, error) {
	sum, err := a.core.Imports.ImportFile(a.ctx, collection, path)
	if err != nil {
		return sum, err
	}
	if a.grid.Snapshot().CollectionName == collection {
		if rerr := a.grid.Refresh(a.ctx); rerr != nil {
			a.log.Debugw("[IMPORT] grid refresh failed", "error", rerr)
		}
	}
	return sum, nil
}

// ExportCSV asks where to save collection as CSV and downloads it there.
// It returns the written path, or "" when the dialog was cancelled.
func (a *App) ExportCSV(collection string) (string, error) {
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           fmt.Sprintf("Export %s", collection),
		DefaultFilename: collection + ".csv",
		Filters:         []wailsRuntime.FileFilter{csvFilter},
	})
	if err != nil || path == "" {
		return "", err
	}
	if _, err := a.core.Imports.ExportCSV(a.ctx, collection, path); err != nil {
		return "", err
	}
	return path, nil
}

// ImportHistory lists recent imports; an empty collection lists all.
func (a *App) ImportHistory(collection string, limit int) ([]domain.ImportRun, error) {
	return a.core.Imports.History(collection, limit)
}

// RunningImports lists collections with an import in progress.
func (a *App) RunningImports() []string {
	return a.core.Imports.Running()
}

// ============================================================
// Attendance reports
// ============================================================

func (a *App) GenerateReport(req service.ReportRequest) (*domain.ReportRun, error) {
	return a.core.Reports.Generate(a.ctx, req)
}

// GenerateReportFromFile reads the visits from a JSON or CSV file, asking
// for one when path is empty. Other request fields apply as in
// GenerateReport.
func (a *App) GenerateReportFromFile(path string, req service.ReportRequest) (*domain.ReportRun, error) {
	if path == "" {
		var err error
		path, err = wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
			Title:   "Choose visit log",
			Filters: []wailsRuntime.FileFilter{dataFilter},
		})
		if err != nil || path == "" {
			return nil, err
		}
	}
	entries, err := readEntriesFile(path)
	if err != nil {
		return nil, err
	}
	req.Entries = entries
	return a.core.Reports.Generate(a.ctx, req)
}

// PreviewReport returns the totals the report would print.
func (a *App) PreviewReport(entries []report.Entry, categories []string) report.Summary {
	return a.core.Reports.Preview(entries, categories)
}

func (a *App) ReportHistory(limit int) ([]domain.ReportRun, error) {
	return a.core.Reports.History(limit)
}

// OpenReport opens a generated PDF with the system viewer.
func (a *App) OpenReport(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	wailsRuntime.BrowserOpenURL(a.ctx, "file://"+filepath.ToSlash(abs))
	return nil
}

func readEntriesFile(path string) ([]report.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer f.Close()
	entries, err := report.ReadEntries(path, f)
	if err != nil {
		return nil, fmt.Errorf("read entries %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}
