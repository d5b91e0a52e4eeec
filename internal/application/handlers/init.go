// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

// StoreOpener opens the person store of a tree.
type StoreOpener func(ctx context.Context, cfg *config.Config, basePath, tree string) (ports.PersonStore, error)

// InitHandler creates trees, writing the default config on first use.
type InitHandler struct {
	open StoreOpener
}

// NewInitHandler creates a new init handler.
func NewInitHandler(open StoreOpener) *InitHandler {
	return &InitHandler{open: open}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath    string
	ConfigCreated bool
	Tree          string
	Scope         string
	Driver        string
}

// Handle registers tree under basePath and prepares its store schema.
func (h *InitHandler) Handle(ctx context.Context, basePath, tree, description string) (*InitResult, error) {
	tree = strings.TrimSpace(tree)
	if tree == "" {
		return nil, fmt.Errorf("tree name is required")
	}

	created := false
	if !config.Exists(basePath) {
		if err := config.WriteDefault(basePath); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		created = true
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	trees, err := config.LoadTrees(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading trees: %w", err)
	}
	if trees.Exists(tree) {
		return nil, fmt.Errorf("tree %q already exists", tree)
	}

	store, err := h.open(ctx, cfg, basePath, tree)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	scope := config.SanitizeTreeName(tree)
	trees.Add(tree, config.TreeEntry{
		Scope:       scope,
		Description: description,
		CreatedAt:   timeNow(),
	})
	if err := trees.Save(basePath); err != nil {
		return nil, fmt.Errorf("saving trees: %w", err)
	}

	return &InitResult{
		ConfigPath:    config.ConfigFilePath(basePath),
		ConfigCreated: created,
		Tree:          tree,
		Scope:         scope,
		Driver:        cfg.Store.Driver,
	}, nil
}
