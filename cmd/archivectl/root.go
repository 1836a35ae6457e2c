package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/platform/observability"
	"github.com/memorial-heritage/api/internal/repositories/fixture"
)

type rootOptions struct {
	fixture string
	verbose bool
}

func newRootCmd(publish publisher) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "archivectl",
		Short:        "Operator tooling for the memorial archive API",
		Long:         "archivectl inspects archive slugs against a YAML fixture and asks running API instances to refresh cached collections.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.fixture, "fixture", os.Getenv("ARCHIVE_FIXTURE_FILE"), "path to the YAML archive fixture")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log skipped fixture documents")

	cmd.AddCommand(newSlugCmd(opts))
	cmd.AddCommand(newResolveCmd(opts))
	cmd.AddCommand(newRefreshCmd(publish))
	return cmd
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	logger, err := observability.NewLogger()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("archivectl")
}

func (o *rootOptions) loadFixture() (*fixture.Repository, error) {
	if o.fixture == "" {
		return nil, fmt.Errorf("--fixture or ARCHIVE_FIXTURE_FILE is required")
	}
	repo, err := fixture.Load(o.fixture, o.logger())
	if err != nil {
		return nil, fmt.Errorf("loading fixture: %w", err)
	}
	return repo, nil
}
