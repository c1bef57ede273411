package mcp

import (
	"context"
	"log/slog"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/domain/status"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// LifecycleService defines the status change protocol needed by MCP.
type LifecycleService interface {
	Preview(ctx context.Context, primary status.Ref, to status.Status) (*lifecycle.Operation, error)
	Analyze(ctx context.Context, id string) (*lifecycle.Operation, error)
	ConfirmDefaults(ctx context.Context, id string) (*lifecycle.Operation, error)
	Confirm(ctx context.Context, id string, choices []lifecycle.Choice) (*lifecycle.Operation, error)
	Start(ctx context.Context, id string) (*lifecycle.Job, error)
	Cancel(ctx context.Context, id string) (*lifecycle.Operation, error)
	Get(id string) (*lifecycle.Operation, error)
}

// FolderService defines folder lookups needed by MCP.
type FolderService interface {
	Base() string
	Folders() *status.FolderMap
	Locate(ctx context.Context, number string) (folder.Location, error)
	List(ctx context.Context, root status.Root) ([]folder.Location, error)
}

// Reconciler runs and returns reconciliation scans.
type Reconciler interface {
	RunNow(ctx context.Context) (reconcile.Report, error)
	Last() (reconcile.Report, error)
}

// HistoryService defines history reads needed by MCP.
type HistoryService interface {
	List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error)
}

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	Create(ctx context.Context, req project.CreateRequest) (*project.CreateResult, error)
	NextSequence(ctx context.Context, year, country int) (int, error)
	Get(ctx context.Context, number string) (*project.Project, error)
	List(ctx context.Context, opts project.ListOptions) ([]project.Project, error)
}

// ProposalService defines proposal operations needed by MCP.
type ProposalService interface {
	Create(ctx context.Context, req proposal.CreateRequest) (*proposal.Proposal, error)
	ListByProject(ctx context.Context, projectNumber string) ([]proposal.Proposal, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Lifecycle LifecycleService
	Folders   FolderService
	Scans     Reconciler
	History   HistoryService
	Projects  ProjectService
	Proposals ProposalService
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "feeflow",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)
	registerReportResource(server, cfg.Services.Scans)

	server.AddReceivingMiddleware(callContextMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, &tools{svc: cfg.Services, logger: cfg.Logger})

	return server
}
