// Package app wires configuration, storage and domain services into one
// engine instance.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ganot/feeflow/internal/advisory"
	"github.com/ganot/feeflow/internal/config"
	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/mcp"
	"github.com/ganot/feeflow/internal/metrics"
	"github.com/ganot/feeflow/internal/sqlite"
	"github.com/ganot/feeflow/internal/templates"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options are the optional collaborators of an App.
type Options struct {
	Version string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// App holds every service of a running engine.
type App struct {
	Config      config.Config
	DB          *sqlite.DB
	Resolver    *folder.Resolver
	Coordinator *lifecycle.Coordinator
	Scanner     *reconcile.Scanner
	Schedule    *reconcile.Schedule
	Projects    *project.Service
	Proposals   *proposal.Service
	History     *history.Service
	Metrics     *metrics.Metrics
	Server      *sdkmcp.Server

	logger *slog.Logger
}

// New builds the engine over an open, migrated database.
func New(cfg config.Config, db *sqlite.DB, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	folders, err := cfg.FolderMap()
	if err != nil {
		return nil, err
	}
	resolver := folder.NewResolver(cfg.BasePath, folders)

	provisioner, err := templates.NewProvisioner(cfg.TemplateSource(), cfg.Templates.Patterns, logger)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	mover := folder.NewMover(cfg.BasePath, folders, provisioner, logger)

	projectRepo := sqlite.NewProjectRepository(db)
	store := sqlite.NewStatusStore(db)

	historySvc := history.NewService(sqlite.NewHistoryRepository(db), logger)
	projectSvc := project.NewService(projectRepo, resolver, logger)
	proposalSvc := proposal.NewService(sqlite.NewProposalRepository(db), projectRepo, logger)

	analyzer, err := impact.NewAnalyzer(folders, impact.DefaultRules())
	if err != nil {
		return nil, err
	}

	locks := advisory.NewLocker()
	coordinator, err := lifecycle.NewCoordinator(lifecycle.Deps{
		Store:    store,
		Analyzer: analyzer,
		Locator:  resolver,
		Mover:    mover,
		History:  historySvc,
		Locks:    locks,
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	scanner, err := reconcile.NewScanner(resolver, reconcile.Options{
		Records: sqlite.NewRecords(db),
		Status:  store,
		Locks:   locks,
		Ignore:  cfg.Scan.Ignore,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	schedule := reconcile.NewSchedule(scanner, cfg.Scan.Interval, logger)

	server := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Lifecycle: coordinator,
			Folders:   resolver,
			Scans:     schedule,
			History:   historySvc,
			Projects:  projectSvc,
			Proposals: proposalSvc,
		},
		Version: opts.Version,
		Logger:  logger,
	})

	return &App{
		Config:      cfg,
		DB:          db,
		Resolver:    resolver,
		Coordinator: coordinator,
		Scanner:     scanner,
		Schedule:    schedule,
		Projects:    projectSvc,
		Proposals:   proposalSvc,
		History:     historySvc,
		Metrics:     m,
		Server:      server,
		logger:      logger,
	}, nil
}

// RunBackground runs the scan schedule, and the folder watcher when enabled,
// until ctx is done.
func (a *App) RunBackground(ctx context.Context) error {
	var watcher *reconcile.Watcher
	if a.Config.Scan.Watch {
		w, err := reconcile.NewWatcher(a.Resolver.Base(), a.Resolver.Folders(), a.Config.Scan.Debounce, reconcile.ScheduleTrigger(a.Schedule), a.logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			return fmt.Errorf("start watcher: %w", err)
		}
		watcher = w
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Schedule.Run(ctx); err != nil {
			a.logger.Error("scan schedule stopped", "error", err)
		}
	}()

	<-ctx.Done()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			a.logger.Warn("stop watcher", "error", err)
		}
	}
	wg.Wait()
	return nil
}
