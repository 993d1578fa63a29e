package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"transcript-harvester/pkg/config"
	"transcript-harvester/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions holds the global flags.
type rootOptions struct {
	cfgFile string
	debug   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvest sectioned transcripts from a paginated document listing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml if present)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newRunCmd(opts),
		newReplicateCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "harvester version %s\n", version)
			},
		},
	)
	return cmd
}

// load reads the configuration and builds a logger tagged with a fresh run id.
func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log.With(logger.String("run_id", uuid.NewString())), nil
}
