package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"docdesk/internal/domain"
	"docdesk/internal/service"
)

// Backend is the slice of the API client the tools call directly.
type Backend interface {
	ListCollections(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, name string) (*domain.Schema, error)
	ListDocuments(ctx context.Context, name string, view domain.View, q domain.ListQuery) (*domain.DocumentPage, error)
	CreateDocument(ctx context.Context, name string, doc domain.Document) (string, error)
	UpdateDocument(ctx context.Context, name, id string, patch domain.Document) (*domain.UpdateResult, error)
	DeleteDocument(ctx context.Context, name, id string) error
	PinDocument(ctx context.Context, name, id string) (domain.Document, error)
	UnpinDocument(ctx context.Context, name, id string) (domain.Document, error)
	ArchiveDocument(ctx context.Context, name, id string) (domain.Document, error)
	RecoverDocument(ctx context.Context, name, id string) (domain.Document, error)
	BatchDelete(ctx context.Context, name string, ids []string) (int64, error)
	BatchArchive(ctx context.Context, name string, ids []string) (int64, error)
	BatchRecover(ctx context.Context, name string, ids []string) (int64, error)
	Health(ctx context.Context) error
}

// Server is the MCP server for the console. It exposes collection browsing,
// document edits, CSV import/export and attendance reports to AI agents.
type Server struct {
	mcp      *server.MCPServer
	http     *server.StreamableHTTPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	log      *zap.SugaredLogger

	backend  Backend
	imports  *service.ImportService
	reports  *service.ReportService
	pageSize int
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Emitter  EventEmitter
	Backend  Backend
	Imports  *service.ImportService
	Reports  *service.ReportService
	Logger   *zap.SugaredLogger
	PageSize int
	// AutoApprove lets destructive tools run without a human decision.
	// Without a frontend to ask, destructive tools are refused otherwise.
	AutoApprove bool
	Interactive bool
}

// Version is reported to MCP clients.
const Version = "1.0.0"

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.PageSize <= 0 {
		deps.PageSize = 20
	}

	policy := PolicyRefuse
	switch {
	case deps.AutoApprove:
		policy = PolicyAllow
	case deps.Interactive:
		policy = PolicyAsk
	}

	s := &Server{
		emitter:  deps.Emitter,
		approval: NewApprovalQueue(ctx, deps.Emitter, policy),
		log:      deps.Logger,
		backend:  deps.Backend,
		imports:  deps.Imports,
		reports:  deps.Reports,
		pageSize: deps.PageSize,
	}

	s.mcp = server.NewMCPServer(
		"docdesk-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerCollectionTools()
	s.registerDocumentTools()
	s.registerTransferTools()
	s.registerReportTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCP exposes the underlying server, for in-process clients and tests.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Infow("[MCP] starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Serve runs the server on the given streams until ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// StartHTTP serves streamable HTTP on addr in the background.
func (s *Server) StartHTTP(addr string) {
	s.http = server.NewStreamableHTTPServer(s.mcp)
	h := s.http
	s.log.Infow("[MCP] starting http server", "addr", addr)
	go func() {
		if err := h.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("[MCP] http server stopped", "addr", addr, "error", err)
		}
	}()
}

// Shutdown stops the HTTP transport, if one was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Pending lists approval requests still waiting for a decision.
func (s *Server) Pending() []string { return s.approval.Pending() }

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) { s.approval.Approve(actionID) }

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) { s.approval.Reject(actionID) }

// ── Helpers ────────────────────────────────────────────────

// emitCollectionChanged tells the frontend to reload a collection the
// agent has written to.
func (s *Server) emitCollectionChanged(ctx context.Context, collection string) {
	s.emitter.Emit(ctx, "mcp:collection-changed", map[string]string{"collection": collection})
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a failure the agent can act on, without failing
// the protocol call.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
