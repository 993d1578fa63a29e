package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"transcript-harvester/pkg/browser"
	"transcript-harvester/pkg/config"
	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/db"
	"transcript-harvester/pkg/harvest"
	"transcript-harvester/pkg/httpclient"
	"transcript-harvester/pkg/ledger"
	"transcript-harvester/pkg/logger"
	"transcript-harvester/pkg/sink"
	"transcript-harvester/pkg/translation"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl the listing and append new transcripts to the record log",
		Long: `Pages through the listing configured by listing_url, visits every document whose
date is not in the seen-keys ledger, and appends one JSON record per document.

In chrome mode, start the browser beforehand with remote debugging enabled, e.g.
  chrome --remote-debugging-port=9222 --user-data-dir=/tmp/harvester-profile`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runHarvest(cmd.Context(), cfg, log)
		},
	}
}

// closers runs cleanup functions in reverse order.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runHarvest(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var cleanup closers
	defer cleanup.run()

	session, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	cleanup.add(func() { _ = session.Close() })

	store, err := openLedgerStore(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}
	seen, err := ledger.Open(ctx, store)
	if err != nil {
		return err
	}
	cleanup.add(func() { _ = seen.Close() })
	log.Info("Loaded seen dates", logger.Int("count", seen.Len()), logger.String("backend", cfg.Storage.LedgerBackend))

	records, err := openSink(ctx, cfg, log, &cleanup)
	if err != nil {
		return err
	}

	extractor := content.NewSectionExtractor(cfg.Browser.Selectors, newParagraphTranslator(cfg, log), log)

	h, err := harvest.New(harvest.Config{
		ListingURL:      cfg.ListingURL,
		PageSettleDelay: cfg.Browser.PageSettleDelay,
		Selectors:       cfg.Browser.Selectors,
	}, harvest.Deps{
		Session:   session,
		Extractor: extractor,
		Ledger:    seen,
		Sink:      records,
		Log:       log,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	log.Info("Starting harvest",
		logger.String("listing_url", cfg.ListingURL),
		logger.String("mode", cfg.Browser.Mode),
		logger.Bool("translation", cfg.Translation.Enabled))

	sum, err := h.Run(ctx)
	log.Info("Done",
		logger.Duration("duration", time.Since(start)),
		logger.Int("records_written", sum.RecordsWritten),
		logger.Int("failures", sum.Failures))
	return err
}

func openSession(ctx context.Context, cfg *config.Config, log logger.Logger) (browser.Session, error) {
	switch cfg.Browser.Mode {
	case config.ModeStatic:
		client := httpclient.NewClient(httpclient.ClientType(cfg.Browser.ClientType), httpclient.Options{UserAgent: cfg.Browser.UserAgent})
		return browser.NewStatic(client, cfg.Browser.Selectors, cfg.Browser.Timing, log), nil
	default:
		chrome, err := browser.NewChrome(ctx, browser.ChromeConfig{
			DevToolsURL: cfg.Browser.DevToolsURL,
			Selectors:   cfg.Browser.Selectors,
			Timing:      cfg.Browser.Timing,
		}, log)
		if err != nil {
			return nil, err
		}
		return chrome, nil
	}
}

func openLedgerStore(ctx context.Context, cfg *config.Config, cleanup *closers) (ledger.Store, error) {
	if cfg.Storage.LedgerBackend == config.LedgerFile {
		return ledger.NewFileStore(cfg.SeenKeysFile), nil
	}

	provider, err := openPostgres(ctx, cfg, cleanup)
	if err != nil {
		return nil, err
	}
	store := ledger.NewSQLStore(provider)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openPostgres connects to the configured Postgres: a plain DSN wins over Supabase.
func openPostgres(ctx context.Context, cfg *config.Config, cleanup *closers) (db.DBProvider, error) {
	if cfg.Storage.PostgresDSN != "" {
		client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.Storage.PostgresDSN})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		cleanup.add(func() { _ = client.Close() })
		return client, nil
	}

	client := db.NewSupabaseClient(db.SupabaseConfig{
		URL:      cfg.Storage.Supabase.URL,
		Key:      cfg.Storage.Supabase.Key,
		Password: cfg.Storage.Supabase.Password,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	cleanup.add(func() { _ = client.Close() })
	return client, nil
}

// openSink opens the record log and, when configured, the Mongo mirror.
func openSink(ctx context.Context, cfg *config.Config, log logger.Logger, cleanup *closers) (sink.Sink, error) {
	recordLog, err := sink.OpenJSONL(cfg.RecordsFile)
	if err != nil {
		return nil, err
	}
	cleanup.add(func() { _ = recordLog.Close() })

	if cfg.Storage.Mongo.URI == "" {
		return recordLog, nil
	}

	mongo, err := openMongo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cleanup.add(func() { _ = mongo.Close(context.Background()) })
	log.Info("Mirroring records to MongoDB",
		logger.String("database", cfg.Storage.Mongo.Database), logger.String("collection", cfg.Storage.Mongo.Collection))
	return sink.NewMulti(recordLog, log, mongo), nil
}

func openMongo(ctx context.Context, cfg *config.Config) (*db.Client, error) {
	client := db.NewClient(db.MongoConfig{
		URI:        cfg.Storage.Mongo.URI,
		Database:   cfg.Storage.Mongo.Database,
		Collection: cfg.Storage.Mongo.Collection,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// newParagraphTranslator returns nil when translation is disabled, which keeps paragraphs as scraped.
func newParagraphTranslator(cfg *config.Config, log logger.Logger) content.ParagraphTranslator {
	if !cfg.Translation.Enabled {
		return nil
	}

	backend := translation.NewOpenAITranslator(translation.OpenAIConfig{
		APIKey:  cfg.Translation.OpenAI.APIKey,
		Model:   cfg.Translation.OpenAI.Model,
		BaseURL: cfg.Translation.OpenAI.BaseURL,
	})
	guard := translation.NewGuard(backend, cfg.Translation.TargetLanguage, cfg.Translation.Timeout, log)
	return translation.NewPolicy(translation.NewWhatlangDetector(), guard, log)
}
