package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/domain/services"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
	"github.com/ersonp/raices-core/internal/infrastructure/graphdb/neo4j"
	"github.com/ersonp/raices-core/internal/infrastructure/logger"
	"github.com/ersonp/raices-core/internal/infrastructure/relationaldb/sqlite"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config        *config.Config
	Trees         *config.TreesConfig
	Tree          string
	Logger        *zap.Logger
	TreeHandler   *handlers.TreeHandler
	ImportHandler *handlers.ImportHandler
}

// internalDeps holds all dependencies including low-level components.
type internalDeps struct {
	Deps
	store ports.PersonStore
	audit ports.AuditLog // nil when the store keeps no audit trail
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		return fn(&d.Deps)
	})
}

// withInternalDeps provides access to all dependencies including low-level components.
func withInternalDeps(ctx context.Context, fn func(*internalDeps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(cfg.Server.Env); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	trees, err := config.LoadTrees(cwd)
	if err != nil {
		return fmt.Errorf("loading trees: %w", err)
	}

	tree, err := resolveTree(trees, globalTree)
	if err != nil {
		return err
	}

	store, audit, err := openStore(ctx, cfg, cwd, tree)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	mutator := services.NewMutator(store, audit, log)
	reconciler := services.NewReconciler(store, mutator, audit, log, cfg.Tree.RepairConcurrency, services.RepairOptions{
		PruneDangling: cfg.Tree.PruneDangling,
	})
	treeHandler := handlers.NewTreeHandler(store, mutator, reconciler, log, handlers.TreeOptions{
		RejectCycles: cfg.Tree.RejectCycles,
		CreatedBy:    cfg.Tree.CreatedBy,
	})

	deps := &internalDeps{
		Deps: Deps{
			Config:        cfg,
			Trees:         trees,
			Tree:          tree,
			Logger:        log.With(zap.String("tree", tree)),
			TreeHandler:   treeHandler,
			ImportHandler: handlers.NewImportHandler(services.NewImportService(store, reconciler), treeHandler.Canvas()),
		},
		store: store,
		audit: audit,
	}

	return fn(deps)
}

// withTreeHandler provides the TreeHandler for edit commands.
func withTreeHandler(ctx context.Context, fn func(*handlers.TreeHandler) error) error {
	return withDeps(ctx, func(d *Deps) error {
		return fn(d.TreeHandler)
	})
}

// withAuditLog provides the audit log of the selected tree.
func withAuditLog(ctx context.Context, fn func(ports.AuditLog) error) error {
	return withInternalDeps(ctx, func(d *internalDeps) error {
		if d.audit == nil {
			return fmt.Errorf("store %q keeps no audit log", d.Config.Store.Driver)
		}
		return fn(d.audit)
	})
}

// resolveTree picks the tree named by flag, or the only registered tree.
func resolveTree(trees *config.TreesConfig, flag string) (string, error) {
	if flag != "" {
		if _, err := trees.Get(flag); err != nil {
			return "", err
		}
		return flag, nil
	}

	names := trees.Names()
	switch len(names) {
	case 0:
		return "", errors.New("no trees registered (use 'raices trees create NAME')")
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("tree is required when %d trees exist (use --tree flag)", len(names))
	}
}

// openStore opens the configured person store for tree. The audit log is
// nil for stores without one.
func openStore(ctx context.Context, cfg *config.Config, basePath, tree string) (ports.PersonStore, ports.AuditLog, error) {
	switch cfg.Store.Driver {
	case config.DriverNeo4j:
		repo, err := neo4j.NewRepository(ctx, cfg.Neo4j, config.SanitizeTreeName(tree))
		if err != nil {
			return nil, nil, fmt.Errorf("creating neo4j repository: %w", err)
		}
		return repo, nil, nil

	case config.DriverSQLite, "":
		path := cfg.SQLitePath(basePath, tree)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, nil, fmt.Errorf("creating tree directory: %w", err)
		}
		repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: path})
		if err != nil {
			return nil, nil, fmt.Errorf("creating sqlite repository: %w", err)
		}
		return repo, repo, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// openPersonStore adapts openStore to handlers.StoreOpener.
func openPersonStore(ctx context.Context, cfg *config.Config, basePath, tree string) (ports.PersonStore, error) {
	store, _, err := openStore(ctx, cfg, basePath, tree)
	return store, err
}
