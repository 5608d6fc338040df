package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/connector"
	"github.com/mattjoyce/ansible-actions/internal/dispatch"
	"github.com/mattjoyce/ansible-actions/internal/events"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/log"
	"github.com/mattjoyce/ansible-actions/internal/playbook"
	"github.com/mattjoyce/ansible-actions/internal/progress"
	"github.com/mattjoyce/ansible-actions/internal/queue"
	"github.com/mattjoyce/ansible-actions/internal/storage"
)

// app holds the components shared by every command that touches state.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	store    *inventory.Store
	queue    *queue.Queue
	hub      *events.Hub
	recorder *progress.Recorder
	registry *connector.Registry
	resolver *playbook.Resolver
	logger   *slog.Logger
}

// loadConfig loads configPath, or the discovered config when it is empty.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}

// openApp loads config, sets up logging and opens the state database.
// logLevel overrides the configured level when non-empty.
func openApp(ctx context.Context, configPath, logLevel string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logLevel = cfg.Service.LogLevel
	}
	log.Setup(logLevel, cfg.Service.LogFormat)

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", cfg.State.Path, err)
	}

	store := inventory.NewStore(db)
	hub := events.NewHub(256)
	return &app{
		cfg:      cfg,
		db:       db,
		store:    store,
		queue:    queue.New(db),
		hub:      hub,
		recorder: progress.NewRecorder(db, hub),
		registry: connector.NewDefaultRegistry(cfg.Ansible),
		resolver: playbook.NewResolver(store),
		logger:   log.WithComponent("main"),
	}, nil
}

func (a *app) Close() {
	_ = a.db.Close()
}

// importSeed imports the configured seed file, if any. An unchanged file is
// skipped unless force is set.
func (a *app) importSeed(ctx context.Context, path string, force bool) (*inventory.ImportResult, error) {
	if path == "" {
		path = a.cfg.Inventory.SeedFile
	}
	if path == "" {
		return nil, nil
	}
	res, err := a.store.Import(ctx, path, force)
	if err != nil {
		return nil, fmt.Errorf("import inventory %s: %w", path, err)
	}
	if res.Skipped {
		a.logger.Info("inventory seed unchanged, import skipped", "source", res.Source, "digest", res.Digest)
	} else {
		a.logger.Info("inventory imported", "source", res.Source, "servers", res.Servers, "groups", res.Groups)
		a.registry.Forget()
		a.hub.Publish(events.TypeInventoryImported, res)
	}
	return &res, nil
}

// worker builds a dispatcher and worker reporting progress through rep.
func (a *app) worker(rep dispatch.ProgressReporter) *dispatch.Worker {
	d := dispatch.New(a.store, a.registry, rep, dispatch.Options{
		OnMissingConnector: a.cfg.Dispatch.OnMissingConnector,
	})
	return dispatch.NewWorker(a.queue, d, a.cfg.Actions, a.cfg.Dispatch.PollInterval, a.hub)
}

func exitOnOpenError(err error) int {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
