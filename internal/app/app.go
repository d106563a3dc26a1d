package app

import (
	"context"
	"sync"
	"time"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"docdesk/internal/config"
	"docdesk/internal/domain"
	"docdesk/internal/grid"
	mcpserver "docdesk/internal/mcp"
	"docdesk/internal/service"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	core    *Core
	emitter *wailsEmitter
	log     *zap.SugaredLogger
	grid    *grid.Controller
	window  *service.WindowSettingsService
	mcp     *mcpserver.Server
	watcher *historyWatcher
}

// wailsEmitter forwards service events to the webview. Events raised
// before Startup are dropped.
type wailsEmitter struct {
	mu  sync.RWMutex
	ctx context.Context
}

func (e *wailsEmitter) bind(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()
}

func (e *wailsEmitter) Emit(_ context.Context, event string, data any) {
	e.mu.RLock()
	ctx := e.ctx
	e.mu.RUnlock()
	if ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(ctx, event, data)
}

// New opens local storage and wires the services. The window is not
// touched until Startup.
func New(cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	emitter := &wailsEmitter{}
	core, err := Open(cfg, log, emitter)
	if err != nil {
		return nil, err
	}
	a := &App{
		core:    core,
		emitter: emitter,
		log:     core.Log,
		window:  service.NewWindowSettingsService(core.Settings),
	}
	a.grid = grid.New(core.Client, emitter, grid.Options{
		PageSize:       cfg.Grid.PageSize,
		ReferenceLimit: cfg.Grid.ReferenceLimit,
		PersistDelay:   cfg.Grid.PersistDelay,
		View:           domain.View(cfg.Grid.DefaultView),
		Layouts:        core.Layouts,
		Logger:         core.Log,
	})
	return a, nil
}

// WindowSize is the size saved by the previous session.
func (a *App) WindowSize() service.WindowSize {
	return a.window.LoadWindowSize()
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.emitter.bind(ctx)
	a.ctx, a.cancel = context.WithCancel(ctx)
	cfg := a.core.Config

	if a.core.RestoreSession(a.ctx) {
		go func() {
			if _, err := a.core.Session.Me(a.ctx); err != nil {
				a.log.Warnw("[AUTH] restored session rejected", "error", err)
			}
		}()
	}

	if cfg.Health.Enabled {
		go a.core.Session.ProbeHealth(a.ctx)
		if err := a.core.Session.StartHealthProbe(a.ctx, cfg.Health.Schedule); err != nil {
			a.log.Errorw("[HEALTH] probe not started", "error", err)
		}
	}

	if cfg.Import.WatchDir != "" {
		if err := a.core.Imports.Watch(a.ctx, cfg.Import.WatchDir, cfg.Import.Settle); err != nil {
			a.log.Errorw("[IMPORT] drop folder disabled", "dir", cfg.Import.WatchDir, "error", err)
		}
	}

	if cfg.MCP.Listen != "" {
		a.mcp = mcpserver.New(a.ctx, mcpserver.Deps{
			Emitter:     a.emitter,
			Backend:     a.core.Client,
			Imports:     a.core.Imports,
			Reports:     a.core.Reports,
			Logger:      a.log,
			PageSize:    cfg.Grid.PageSize,
			Interactive: true,
		})
		a.mcp.StartHTTP(cfg.MCP.Listen)
	}

	a.watcher = newHistoryWatcher(a.ctx, a.core.History, a.emitter, a.log)
	a.watcher.Start()

	go func() {
		if err := a.grid.LoadCollections(a.ctx); err != nil {
			a.log.Warnw("[APP] initial collection load failed", "error", err)
		}
	}()
	a.log.Infow("[APP] started", "api", cfg.API.BaseURL)
}

// BeforeClose saves the window size. It never vetoes the close.
func (a *App) BeforeClose(ctx context.Context) bool {
	w, h := wailsRuntime.WindowGetSize(ctx)
	if err := a.window.SaveWindowSize(w, h); err != nil {
		a.log.Warnw("[APP] cannot save window size", "error", err)
	}
	return false
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.mcp != nil {
		if err := a.mcp.Shutdown(ctx); err != nil {
			a.log.Warnw("[MCP] http shutdown", "error", err)
		}
	}
	if err := a.core.Close(ctx); err != nil {
		a.log.Errorw("[APP] shutdown", "error", err)
	}
	a.log.Sync()
}

// AppInfo describes the running console.
type AppInfo struct {
	Version  string `json:"version"`
	APIURL   string `json:"apiUrl"`
	DataDir  string `json:"dataDir"`
	MCPHTTP  string `json:"mcpHttp,omitempty"`
	PageSize int    `json:"pageSize"`
}

// Version is shown in the About panel and reported to MCP clients.
const Version = mcpserver.Version

func (a *App) Info() AppInfo {
	cfg := a.core.Config
	return AppInfo{
		Version:  Version,
		APIURL:   cfg.API.BaseURL,
		DataDir:  a.core.DB.DataDir(),
		MCPHTTP:  cfg.MCP.Listen,
		PageSize: cfg.Grid.PageSize,
	}
}
