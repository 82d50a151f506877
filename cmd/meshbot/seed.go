package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/portfolio"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load portfolio content into the database",
		Long:  "Replaces home, about, skilled, skills and works with the fixture content. Contact messages are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, *configPath, dsn, args[0])
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "sqlite database (overrides portfolio.dsn)")
	return cmd
}

func runSeed(cmd *cobra.Command, configPath, dsn, fixturePath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dsn == "" {
		dsn = cfg.Portfolio.DSN
	}
	if dsn == "" {
		return fmt.Errorf("seed: no database, set portfolio.dsn or --dsn")
	}

	fixture, err := portfolio.LoadFixture(fixturePath)
	if err != nil {
		return err
	}

	store, err := portfolio.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Seed(cmd.Context(), fixture); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s: %d skills, %d works\n", dsn, len(fixture.Skills), len(fixture.Works))
	return nil
}
