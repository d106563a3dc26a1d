package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"docdesk/internal/config"
	"docdesk/internal/domain"
	mcpserver "docdesk/internal/mcp"
	"docdesk/internal/service"
)

// logEmitter is the EventEmitter used without a Wails frontend: toasts
// go to the log, other events are dropped.
type logEmitter struct {
	log *zap.SugaredLogger
}

func (e logEmitter) Emit(_ context.Context, event string, data any) {
	if t, ok := data.(domain.Toast); ok && event == service.EventToast {
		if t.Variant == domain.ToastDestructive {
			e.log.Warnw("[APP] "+t.Title, "detail", t.Description)
			return
		}
		e.log.Infow("[APP] "+t.Title, "detail", t.Description)
	}
}

// NewHeadless opens a Core for the CLI and the stdio MCP server, with the
// stored session restored.
func NewHeadless(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Core, error) {
	core, err := Open(cfg, log, logEmitter{log: log})
	if err != nil {
		return nil, err
	}
	core.RestoreSession(ctx)
	return core, nil
}

// ServeMCP runs the console as a standalone MCP server on stdin/stdout
// with no GUI, until stdin closes or the process is interrupted.
// Destructive tools are refused unless allowWrites is set.
func ServeMCP(cfg *config.Config, log *zap.SugaredLogger, allowWrites bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	core, err := NewHeadless(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close(context.Background())

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:     logEmitter{log: log},
		Backend:     core.Client,
		Imports:     core.Imports,
		Reports:     core.Reports,
		Logger:      log,
		PageSize:    cfg.Grid.PageSize,
		AutoApprove: allowWrites,
	})

	log.Infow("[MCP] starting standalone stdio server", "api", cfg.API.BaseURL, "allowWrites", allowWrites)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
