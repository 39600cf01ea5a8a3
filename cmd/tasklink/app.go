package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hochfrequenz/tasklink/internal/config"
	"github.com/hochfrequenz/tasklink/internal/craft"
	"github.com/hochfrequenz/tasklink/internal/domain"
	"github.com/hochfrequenz/tasklink/internal/mapping"
	"github.com/hochfrequenz/tasklink/internal/mapstore"
	"github.com/hochfrequenz/tasklink/internal/motion"
	"github.com/hochfrequenz/tasklink/internal/notify"
	"github.com/hochfrequenz/tasklink/internal/reconcile"
)

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *log.Logger {
	return log.New(os.Stderr, cfg.General.LogPrefix, log.LstdFlags)
}

// storage bundles the mapping store and the run log
type storage struct {
	backend mapstore.Backend
	store   *mapping.Store
}

// openStorage opens the configured backend. With the craft backend the
// mapping rows live in a Craft collection and only the run log is local.
func openStorage(ctx context.Context, cfg *config.Config, craftClient *craft.Client, logger *log.Logger) (*storage, error) {
	backend, err := mapstore.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}

	var persistence mapping.Persistence = backend
	if cfg.Storage.Backend == config.BackendCraft {
		persistence = craft.NewMappingCollection(craftClient, cfg.Craft.MappingsCollection)
	}
	return &storage{backend: backend, store: mapping.NewStore(persistence, logger)}, nil
}

// List returns the mapping table
func (s *storage) List(ctx context.Context) ([]domain.MappingEntry, error) {
	return s.store.List(ctx)
}

// ListRuns returns recent runs, newest first
func (s *storage) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	return s.backend.ListRuns(ctx, limit)
}

func (s *storage) Close() error {
	return s.backend.Close()
}

func newCraftClient(cfg *config.Config) (*craft.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return craft.NewClient(craft.Config{
		BaseURL:  cfg.Craft.BaseURL,
		SpaceID:  cfg.Craft.SpaceID,
		Token:    cfg.Craft.Token,
		Location: loc,
	}), nil
}

// app is a fully wired sync engine
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	storage  *storage
	orch     *reconcile.Orchestrator
	reporter *notify.Fanout
}

// newApp validates cfg and wires the clients, storage and reporters
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger := newLogger(cfg)
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	craftClient, err := newCraftClient(cfg)
	if err != nil {
		return nil, err
	}
	motionClient := motion.NewClient(motion.Config{
		BaseURL:      cfg.Motion.BaseURL,
		APIKey:       cfg.Motion.APIKey,
		Location:     loc,
		TaskDuration: cfg.Motion.TaskDuration,
	})

	st, err := openStorage(ctx, cfg, craftClient, logger)
	if err != nil {
		return nil, err
	}

	inbox := cfg.Craft.InboxDocument
	if inbox == "" {
		inbox = craft.InboxContainer
	}
	orch := reconcile.New(craftClient, motionClient, st.store, reconcile.Options{
		ProjectsFolder:    cfg.Craft.ProjectsFolder,
		ProjectsWorkspace: cfg.Motion.ProjectsWorkspace,
		AreasFolder:       cfg.Craft.AreasFolder,
		AreasWorkspace:    cfg.Motion.AreasWorkspace,
		AreaLabels:        cfg.Sync.AreaLabels,
		InboxContainer:    inbox,
		CreateCompleted:   cfg.Sync.CreateCompleted,
	}, logger)

	reporter := notify.NewFanout(notify.ReporterFunc(st.backend.RecordRun))
	n := cfg.Notifications
	if n.Desktop || n.SlackWebhook != "" {
		notifier := notify.NewMultiNotifier(
			notify.NewDesktopNotifier(n.Desktop),
			notify.NewSlackNotifier(n.SlackWebhook),
		)
		reporter.Add(notify.NewNotifierReporter(notifier, true))
	}
	if n.Craft {
		reporter.Add(craft.NewNotificationCollection(craftClient, cfg.Craft.NotificationsCollection))
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		storage:  st,
		orch:     orch,
		reporter: reporter,
	}, nil
}

// runPass runs one pass and hands the result to every reporter
func (a *app) runPass(ctx context.Context) domain.RunResult {
	r := a.orch.Run(ctx)
	a.report(ctx, r)
	return r
}

// report logs sink failures; they never change the pass outcome
func (a *app) report(ctx context.Context, r domain.RunResult) {
	if err := a.reporter.Report(ctx, r); err != nil {
		a.logger.Printf("reporting run %s: %v", r.RunID, err)
	}
}

func (a *app) Close() error {
	return a.storage.Close()
}
