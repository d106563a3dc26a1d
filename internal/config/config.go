// Package config loads console settings from a YAML file, a .env file and
// DOCDESK_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"docdesk/internal/report"
)

// FileName is the config file looked up when no path is given.
const FileName = "docdesk.yaml"

// DefaultAPIPort is the port DOCDESK_API_HOST is combined with.
const DefaultAPIPort = 3000

type Config struct {
	API     APIConfig     `yaml:"api"`
	Grid    GridConfig    `yaml:"grid"`
	Import  ImportConfig  `yaml:"import"`
	Report  ReportConfig  `yaml:"report"`
	Health  HealthConfig  `yaml:"health"`
	Storage StorageConfig `yaml:"storage"`
	MCP     MCPConfig     `yaml:"mcp"`
	Log     LogConfig     `yaml:"log"`
}

type APIConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`
	HealthTimeout time.Duration `yaml:"health_timeout" validate:"gt=0"`
}

type GridConfig struct {
	PageSize       int           `yaml:"page_size" validate:"min=1,max=500"`
	ReferenceLimit int           `yaml:"reference_limit" validate:"min=1"`
	PersistDelay   time.Duration `yaml:"persist_delay" validate:"gte=0"`
	DefaultView    string        `yaml:"default_view" validate:"oneof=all archives recoveries empty-or-recovered pins"`
}

type ImportConfig struct {
	// WatchDir is the drop folder; empty disables the watcher.
	WatchDir    string        `yaml:"watch_dir"`
	Settle      time.Duration `yaml:"settle" validate:"gte=0"`
	Concurrency int           `yaml:"concurrency" validate:"min=1,max=32"`
}

type ReportConfig struct {
	OutputDir  string            `yaml:"output_dir" validate:"required"`
	SchoolYear string            `yaml:"school_year"`
	LogoPath   string            `yaml:"logo_path"`
	Categories []string          `yaml:"categories"`
	Letterhead report.Letterhead `yaml:"letterhead"`
}

type HealthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule" validate:"required_if=Enabled true"`
}

type StorageConfig struct {
	DBPath  string `yaml:"db_path" validate:"required"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

type MCPConfig struct {
	// Listen serves MCP over streamable HTTP from the desktop app, with
	// destructive tools confirmed in the window. Empty disables it.
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// Defaults returns the configuration used when nothing overrides it.
// Local state goes under the user config directory.
func Defaults() *Config {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	root := filepath.Join(base, "docdesk")
	return &Config{
		API: APIConfig{
			BaseURL:       fmt.Sprintf("http://localhost:%d", DefaultAPIPort),
			Timeout:       30 * time.Second,
			HealthTimeout: 5 * time.Second,
		},
		Grid: GridConfig{
			PageSize:       20,
			ReferenceLimit: 1000,
			PersistDelay:   500 * time.Millisecond,
			DefaultView:    "empty-or-recovered",
		},
		Import: ImportConfig{
			Settle:      750 * time.Millisecond,
			Concurrency: 4,
		},
		Report: ReportConfig{
			OutputDir:  filepath.Join(root, "reports"),
			Letterhead: report.DefaultLetterhead,
		},
		Health: HealthConfig{Enabled: true, Schedule: "@every 30s"},
		Storage: StorageConfig{
			DBPath:  filepath.Join(root, "docdesk.db"),
			DataDir: root,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case
// docdesk.yaml is looked up in the working directory and then in the
// user config directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	candidates := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "docdesk", FileName))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func (c *Config) readFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays DOCDESK_* variables. DOCDESK_API_URL wins over
// DOCDESK_API_HOST, which only names the host of the default port.
func (c *Config) applyEnv() error {
	if host := os.Getenv("DOCDESK_API_HOST"); host != "" {
		c.API.BaseURL = fmt.Sprintf("http://%s:%d", host, DefaultAPIPort)
	}
	str := map[string]*string{
		"DOCDESK_API_URL":         &c.API.BaseURL,
		"DOCDESK_LOG_LEVEL":       &c.Log.Level,
		"DOCDESK_WATCH_DIR":       &c.Import.WatchDir,
		"DOCDESK_DB_PATH":         &c.Storage.DBPath,
		"DOCDESK_DATA_DIR":        &c.Storage.DataDir,
		"DOCDESK_REPORT_DIR":      &c.Report.OutputDir,
		"DOCDESK_SCHOOL_YEAR":     &c.Report.SchoolYear,
		"DOCDESK_LOGO":            &c.Report.LogoPath,
		"DOCDESK_HEALTH_SCHEDULE": &c.Health.Schedule,
		"DOCDESK_DEFAULT_VIEW":    &c.Grid.DefaultView,
		"DOCDESK_MCP_LISTEN":      &c.MCP.Listen,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("DOCDESK_PAGE_SIZE"); ok {
		n, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DOCDESK_PAGE_SIZE: %w", err)
		}
		c.Grid.PageSize = n
	}
	if v, ok := os.LookupEnv("DOCDESK_HEALTH_ENABLED"); ok {
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DOCDESK_HEALTH_ENABLED: %w", err)
		}
		c.Health.Enabled = b
	}
	if v, ok := os.LookupEnv("DOCDESK_LOG_DEV"); ok {
		c.Log.Development = cast.ToBool(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv("DOCDESK_CATEGORIES"); ok {
		c.Report.Categories = splitList(v)
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
