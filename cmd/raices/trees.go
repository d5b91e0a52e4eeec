package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

func newTreesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trees",
		Short: "Manage family trees",
		RunE:  runTreesList,
	}

	cmd.AddCommand(
		newTreesListCmd(),
		newTreesCreateCmd(),
		newTreesDeleteCmd(),
	)

	return cmd
}

func newTreesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all trees",
		RunE:  runTreesList,
	}
}

func runTreesList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	if !config.TreesExists(cwd) {
		fmt.Println("No trees configured.")
		fmt.Println("Use 'raices trees create NAME' to create a tree.")
		return nil
	}

	trees, err := config.LoadTrees(cwd)
	if err != nil {
		return fmt.Errorf("loading trees: %w", err)
	}

	names := trees.Names()
	if len(names) == 0 {
		fmt.Println("No trees configured.")
		fmt.Println("Use 'raices trees create NAME' to create a tree.")
		return nil
	}

	fmt.Printf("%-20s %-20s %s\n", "NAME", "SCOPE", "DESCRIPTION")
	fmt.Printf("%-20s %-20s %s\n", "----", "-----", "-----------")

	for _, name := range names {
		entry := trees.Trees[name]
		fmt.Printf("%-20s %-20s %s\n", name, entry.Scope, entry.Description)
	}

	return nil
}

func newTreesCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTreesCreate(cmd, args[0], description)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Tree description")

	return cmd
}

func runTreesCreate(cmd *cobra.Command, name string, description string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	result, err := handlers.NewInitHandler(openPersonStore).Handle(cmd.Context(), cwd, name, description)
	if err != nil {
		return err
	}

	if result.ConfigCreated {
		fmt.Printf("Initialized raices in %s\n", config.ConfigDir(cwd))
	}
	fmt.Printf("Created tree %q (scope %q, store %s)\n", result.Tree, result.Scope, result.Driver)

	return nil
}

func newTreesDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTreesDelete(cmd, args[0], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even if the tree contains people")

	return cmd
}

func runTreesDelete(cmd *cobra.Command, name string, force bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	count, err := purgeTree(cmd.Context(), cfg, cwd, name, force)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted tree %q (%d people removed)\n", name, count)

	return nil
}

// purgeTree removes every person of a registered tree, its per-tree
// directory and its registration. Without force, a tree that still holds
// people is left alone.
func purgeTree(ctx context.Context, cfg *config.Config, basePath, name string, force bool) (int, error) {
	trees, err := config.LoadTrees(basePath)
	if err != nil {
		return 0, fmt.Errorf("loading trees: %w", err)
	}
	if _, err := trees.Get(name); err != nil {
		return 0, err
	}

	count, err := clearPeople(ctx, cfg, basePath, name, force)
	if err != nil {
		return 0, err
	}

	if cfg.Store.Driver != config.DriverNeo4j && cfg.SQLite.Path == "" {
		if err := os.RemoveAll(config.TreeDir(basePath, name)); err != nil {
			return 0, fmt.Errorf("removing tree directory: %w", err)
		}
	}

	trees.Remove(name)
	if err := trees.Save(basePath); err != nil {
		return 0, fmt.Errorf("saving trees: %w", err)
	}

	return count, nil
}

// clearPeople deletes every person in the tree and closes the store.
func clearPeople(ctx context.Context, cfg *config.Config, basePath, name string, force bool) (int, error) {
	store, _, err := openStore(ctx, cfg, basePath, name)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("ensuring schema: %w", err)
	}

	people, err := store.ListPeople(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing people: %w", err)
	}
	if len(people) > 0 && !force {
		return 0, fmt.Errorf("tree %q contains %d people, use --force to delete", name, len(people))
	}

	for _, p := range people {
		if err := store.DeletePerson(ctx, p.ID); err != nil {
			return 0, fmt.Errorf("deleting person %s: %w", p.ID, err)
		}
	}
	return len(people), nil
}
