package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"docdesk/internal/domain"
)

// HistoryStore records report and import runs.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Reports returns the report-run view of the store.
func (s *HistoryStore) Reports() domain.ReportRunStore { return reportRuns{s} }

// Imports returns the import-run view of the store.
func (s *HistoryStore) Imports() domain.ImportRunStore { return importRuns{s} }

// ── Report runs ────────────────────────────────────────────

type reportRuns struct{ s *HistoryStore }

func (r reportRuns) CreateRun(run *domain.ReportRun) error {
	run.ID = uuid.New().String()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err := r.s.db.conn.Exec(
		`INSERT INTO report_runs (id, title, school_year, entries, pages, output_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Title, run.SchoolYear, run.Entries, run.Pages, run.OutputPath, run.CreatedAt,
	)
	return err
}

func (r reportRuns) ListRuns(limit int) ([]domain.ReportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.s.db.conn.Query(
		`SELECT id, title, school_year, entries, pages, output_path, created_at
		 FROM report_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ReportRun
	for rows.Next() {
		var run domain.ReportRun
		if err := rows.Scan(&run.ID, &run.Title, &run.SchoolYear, &run.Entries,
			&run.Pages, &run.OutputPath, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ── Import runs ────────────────────────────────────────────

type importRuns struct{ s *HistoryStore }

func (r importRuns) CreateRun(run *domain.ImportRun) error {
	run.ID = uuid.New().String()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Errors == nil {
		run.Errors = []string{}
	}
	errs, _ := json.Marshal(run.Errors)
	_, err := r.s.db.conn.Exec(
		`INSERT INTO import_runs (id, collection, source, row_count, inserted, failed, errors_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Collection, run.Source, run.Rows, run.Inserted, run.Failed, string(errs), run.CreatedAt,
	)
	return err
}

// ListRuns lists the newest runs first; an empty collection lists all.
func (r importRuns) ListRuns(collection string, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.s.db.conn.Query(
		`SELECT id, collection, source, row_count, inserted, failed, errors_json, created_at
		 FROM import_runs WHERE ? = '' OR collection = ?
		 ORDER BY created_at DESC LIMIT ?`, collection, collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ImportRun
	for rows.Next() {
		var run domain.ImportRun
		var errs string
		if err := rows.Scan(&run.ID, &run.Collection, &run.Source, &run.Rows, &run.Inserted,
			&run.Failed, &errs, &run.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(errs), &run.Errors)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ── Change detection ───────────────────────────────────────

// Counts is the number of recorded runs per kind. Runs are never deleted,
// so a change in Counts means another process recorded a run.
type Counts struct {
	Reports int `json:"reports"`
	Imports int `json:"imports"`
}

func (s *HistoryStore) Counts() (Counts, error) {
	var c Counts
	err := s.db.conn.QueryRow(
		`SELECT (SELECT COUNT(*) FROM report_runs), (SELECT COUNT(*) FROM import_runs)`,
	).Scan(&c.Reports, &c.Imports)
	return c, err
}
