package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"docdesk/internal/api"
	"docdesk/internal/config"
	"docdesk/internal/csvimport"
	"docdesk/internal/secret"
	"docdesk/internal/service"
	"docdesk/internal/storage"
)

// Core is the wiring shared by the desktop app, the MCP server and the
// CLI: local storage, the API client and the services on top of it.
type Core struct {
	Config *config.Config
	Log    *zap.SugaredLogger

	DB       *storage.DB
	Settings *storage.SettingsStore
	Layouts  *storage.LayoutStore
	History  *storage.HistoryStore

	Client  *api.Client
	Session *service.SessionService
	Imports *service.ImportService
	Reports *service.ReportService
}

// Open builds a Core. Events from the services go to emitter.
func Open(cfg *config.Config, log *zap.SugaredLogger, emitter service.EventEmitter) (*Core, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if emitter == nil {
		emitter = service.NopEmitter{}
	}

	db, err := storage.New(cfg.Storage.DBPath, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	c := &Core{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Settings: storage.NewSettingsStore(db),
		Layouts:  storage.NewLayoutStore(db),
		History:  storage.NewHistoryStore(db),
	}

	c.Client = api.New(api.Options{
		BaseURL:       cfg.API.BaseURL,
		HTTPClient:    &http.Client{Timeout: cfg.API.Timeout},
		HealthTimeout: cfg.API.HealthTimeout,
		Logger:        log,
	})
	c.Session = service.NewSessionService(c.Client, secret.Default(cfg.API.BaseURL), emitter, log)
	c.Client.SetTokenSource(c.Session)

	importer := csvimport.NewImporter(c.Client, cfg.Import.Concurrency, log)
	c.Imports = service.NewImportService(importer, c.Client, c.History.Imports(), emitter, log)
	c.Reports = service.NewReportService(service.ReportDefaults{
		OutputDir:  cfg.Report.OutputDir,
		SchoolYear: cfg.Report.SchoolYear,
		LogoPath:   cfg.Report.LogoPath,
		Categories: cfg.Report.Categories,
		Letterhead: cfg.Report.Letterhead,
	}, c.History.Reports(), emitter, log)

	return c, nil
}

// RestoreSession loads the stored token. A failure is logged and the
// console continues signed out.
func (c *Core) RestoreSession(ctx context.Context) bool {
	ok, err := c.Session.Restore(ctx)
	if err != nil {
		c.Log.Warnw("[AUTH] cannot restore session", "error", err)
		return false
	}
	return ok
}

// Close stops background work and closes the database.
func (c *Core) Close(ctx context.Context) error {
	c.Session.StopHealthProbe()
	return multierr.Combine(
		c.Imports.Close(ctx),
		c.DB.Close(),
	)
}
