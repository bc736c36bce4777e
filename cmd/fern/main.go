// Package main provides the fern CLI for loading staged containers into a graph store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}

	rootCmd := &cobra.Command{
		Use:   "fern",
		Short: "fern - bulk graph loading",
		Long: `fern stages nodes and relationships in containers and writes them to a
Neo4j compatible store with batched CREATE or MERGE statements.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.out = cmd.OutOrStdout()
			a.logger, err = newLogger(cfg)
			return err
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fern v%s (%s)\n", version, commit)
		},
	})

	loadCmd := &cobra.Command{
		Use:   "load <dir> <name...>",
		Short: "Load containers from an interchange directory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, index, err := modeFlags(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := a.setupTracing(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = shutdown(context.Background()) }()
			defer a.writeMetrics()

			client, err := graph.NewClient(a.cfg.GraphConfig(), a.logger)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())

			if err := client.VerifyConnectivity(ctx); err != nil {
				return fmt.Errorf("graph store unreachable: %w", err)
			}

			summary, err := a.load(ctx, client, args[0], args[1:], mode, index)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "nodes created: %d, relationships created: %d, properties set: %d\n",
				summary.NodesCreated, summary.RelationshipsCreated, summary.PropertiesSet)
			return nil
		},
	}
	addModeFlags(loadCmd)
	rootCmd.AddCommand(loadCmd)

	statementsCmd := &cobra.Command{
		Use:   "statements <dir> <name>",
		Short: "Print the statements a container would run, without a store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, index, err := modeFlags(cmd)
			if err != nil {
				return err
			}
			return a.printStatements(args[0], args[1], mode, index)
		},
	}
	addModeFlags(statementsCmd)
	rootCmd.AddCommand(statementsCmd)

	return rootCmd
}

func addModeFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", bulk.ModeMerge.String(), "Write mode: create or merge")
	cmd.Flags().Bool("index", false, "Create merge-key indexes before writing")
}

func modeFlags(cmd *cobra.Command) (bulk.Mode, bool, error) {
	raw, err := cmd.Flags().GetString("mode")
	if err != nil {
		return bulk.ModeCreate, false, err
	}
	mode, err := bulk.ParseMode(raw)
	if err != nil {
		return mode, false, err
	}
	index, err := cmd.Flags().GetBool("index")
	return mode, index, err
}
