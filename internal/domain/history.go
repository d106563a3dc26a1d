package domain

import "time"

// ReportRun records one generated attendance report.
type ReportRun struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SchoolYear string    `json:"schoolYear"`
	Entries    int       `json:"entries"`
	Pages      int       `json:"pages"`
	OutputPath string    `json:"outputPath"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ReportRunStore persists report history.
type ReportRunStore interface {
	CreateRun(r *ReportRun) error
	ListRuns(limit int) ([]ReportRun, error)
}

// ImportRun records one CSV import into a collection.
type ImportRun struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Inserted   int       `json:"inserted"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ImportRunStore persists import history.
type ImportRunStore interface {
	CreateRun(r *ImportRun) error
	ListRuns(collection string, limit int) ([]ImportRun, error)
}

// PreviewLayoutStore keeps UI metadata edited in preview mode locally
// instead of on the server.
type PreviewLayoutStore interface {
	SaveLayout(collection string, ui UIMetadata) error
	GetLayout(collection string) (*UIMetadata, error)
	DeleteLayout(collection string) error
}

// SettingsStore is a small key/value store for console preferences.
type SettingsStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}
