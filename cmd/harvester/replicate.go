package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"transcript-harvester/pkg/config"
	"transcript-harvester/pkg/logger"
	"transcript-harvester/pkg/replication"
)

func newReplicateCmd(opts *rootOptions) *cobra.Command {
	var (
		source  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Backfill harvested records into the Postgres transcript_record table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := cfg.ValidateReplication(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runReplicate(cmd.Context(), cfg, log, source, workers)
		},
	}

	cmd.Flags().StringVar(&source, "source", "log", `where to read records from: "log" (records_file) or "mongo"`)
	cmd.Flags().IntVar(&workers, "workers", 5, "number of parallel insert workers")
	return cmd
}

func runReplicate(ctx context.Context, cfg *config.Config, log logger.Logger, source string, workers int) error {
	var cleanup closers
	defer cleanup.run()

	var src replication.Source
	switch source {
	case "log":
		src = replication.LogSource{Path: cfg.RecordsFile}
	case "mongo":
		if cfg.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for --source=mongo")
		}
		client, err := openMongo(ctx, cfg)
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = client.Close(context.Background()) })
		src = replication.MongoSource{Client: client}
	default:
		return fmt.Errorf("unknown source %q", source)
	}

	pg, err := openPostgres(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	r, err := replication.NewReplicator(replication.Config{
		Source:   src,
		Postgres: pg,
		Log:      log.With(logger.String("source", source)),
		Workers:  workers,
	})
	if err != nil {
		return err
	}

	_, err = r.Run(ctx)
	return err
}
