package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/models"
	"github.com/claybowl/taygency/internal/secrets"
	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/storage/dirstore"
	"github.com/claybowl/taygency/internal/storage/github"
	"github.com/claybowl/taygency/internal/storage/sqlitestore"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/tools"
	"github.com/claybowl/taygency/internal/trace"
)

// loadConfig reads the --config file, falling back to defaults when it does
// not exist, and opens ENC[age:...] values when a key is present.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("config not found, using defaults", "path", configPath)
		cfg = config.Default()
	case err != nil:
		return nil, err
	}

	keyPath := config.KeyPath()
	if _, err := os.Stat(keyPath); err != nil {
		return cfg, nil
	}
	keyring, err := secrets.LoadKeyring(keyPath)
	if err != nil {
		return nil, err
	}
	if err := keyring.OpenEnviron(); err != nil {
		return nil, err
	}
	if err := keyring.OpenConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openBackend builds the configured storage backend. The closer, when not
// nil, releases backend resources.
func openBackend(cfg config.StorageConfig) (storage.Backend, io.Closer, error) {
	switch cfg.Backend {
	case "dir":
		return dirstore.New(cfg.Dir.Root), nil, nil
	case "github":
		backend, err := github.New(github.Config{
			Owner:   cfg.GitHub.Owner,
			Repo:    cfg.GitHub.Repo,
			Branch:  cfg.GitHub.Branch,
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.BaseURL,
		}, nil)
		if err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	case "sqlite":
		backend, err := sqlitestore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return backend, backend, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// workspace is the storage side of the process: one file store, shared by
// every run.
type workspace struct {
	cfg    *config.Config
	files  *storage.FileStore
	tasks  *tasks.Store
	traces *trace.Store
	closer io.Closer
}

func openWorkspace(cfg *config.Config) (*workspace, error) {
	backend, closer, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	files := storage.NewFileStore(backend, storage.Options{
		CacheTTL: cfg.Storage.CacheTTL.Duration(),
		Timeout:  cfg.Storage.Timeout.Duration(),
	})
	slog.Debug("storage ready", "backend", cfg.Storage.Backend)
	return &workspace{
		cfg:    cfg,
		files:  files,
		tasks:  tasks.NewStore(files),
		traces: trace.NewStore(files, cfg.Trace.Dir),
		closer: closer,
	}, nil
}

func (w *workspace) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// dispatcher builds the skill registry and the tool catalog over the workspace.
func (w *workspace) dispatcher() (*tools.Dispatcher, *skills.Registry, error) {
	registry := skills.NewRegistry(w.files)
	planning, err := skills.NewPlanning(w.tasks)
	if err != nil {
		return nil, nil, err
	}
	if err := registry.Register(planning.Skill()); err != nil {
		return nil, nil, err
	}
	d, err := tools.NewDispatcher(w.files, w.tasks, registry, planning)
	if err != nil {
		return nil, nil, err
	}
	return d, registry, nil
}

// orchestrator wires the default model and the tool catalog into an agent.
func (w *workspace) orchestrator(ctx context.Context, bus *events.Bus) (*agent.Orchestrator, error) {
	d, registry, err := w.dispatcher()
	if err != nil {
		return nil, err
	}

	modelRegistry := models.NewRegistry(w.cfg.Models)
	chatModel, err := modelRegistry.Default(ctx)
	if err != nil {
		return nil, fmt.Errorf("init default model: %w", err)
	}

	deps := agent.Deps{
		Files:      w.files,
		Tasks:      w.tasks,
		Skills:     registry,
		Dispatcher: d,
		Model:      chatModel,
		Bus:        bus,
	}
	if w.cfg.Trace.PersistEnabled() {
		deps.Traces = w.traces
	}
	return agent.NewOrchestrator(deps, agent.Options{
		MaxIterations:      w.cfg.Agent.IterationLimit(),
		RecentTasks:        w.cfg.Agent.RecentTasks,
		DefaultTimezone:    w.cfg.Agent.DefaultTimezone,
		CustomInstructions: w.cfg.Agent.CustomInstructions,
		CallTimeout:        modelRegistry.CallTimeout(modelRegistry.DefaultName()),
	})
}
