// Package replication backfills harvested records into Postgres.
package replication

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"transcript-harvester/pkg/db"
	"transcript-harvester/pkg/domain"
	"transcript-harvester/pkg/logger"
	"transcript-harvester/pkg/sink"
)

const (
	defaultBatchSize = 100
	defaultWorkers   = 5
)

var errNotConnected = errors.New("postgres DB not connected")

// Source yields the records to replicate.
type Source interface {
	Records(ctx context.Context) ([]domain.DocumentRecord, error)
}

// LogSource reads a JSONL record log.
type LogSource struct {
	Path string
}

// Records implements Source.
func (s LogSource) Records(_ context.Context) ([]domain.DocumentRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []domain.DocumentRecord
	err = sink.ReadRecords(f, func(rec *domain.DocumentRecord) error {
		out = append(out, *rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return out, nil
}

// MongoSource reads the Mongo record mirror.
type MongoSource struct {
	Client *db.Client
}

// Records implements Source.
func (s MongoSource) Records(ctx context.Context) ([]domain.DocumentRecord, error) {
	return s.Client.GetAllRecords(ctx)
}

// Config wires the replication dependencies.
type Config struct {
	Source   Source
	Postgres db.DBProvider
	Log      logger.Logger

	// BatchSize and Workers default to 100 and 5.
	BatchSize int
	Workers   int
}

// Stats summarises a replication run.
type Stats struct {
	Processed int
	Inserted  int
}

// Replicator copies records into the Postgres transcript_record table. Records whose date
// is already present are skipped, so a run can be repeated safely.
type Replicator struct {
	source    Source
	pg        db.DBProvider
	log       logger.Logger
	batchSize int
	workers   int
}

// NewReplicator validates cfg and returns a replicator.
func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Replicator{
		source:    cfg.Source,
		pg:        cfg.Postgres,
		log:       cfg.Log,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}, nil
}

// Run replicates every record of the source.
func (r *Replicator) Run(ctx context.Context) (Stats, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return Stats{}, err
	}

	records, err := r.source.Records(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load records: %w", err)
	}
	r.log.Info("Loaded records, processing in batches", logger.Int("records", len(records)))

	stats, err := r.processBatches(ctx, records)
	if err != nil {
		return stats, err
	}

	r.log.Info("Replication complete",
		logger.Int("processed", stats.Processed), logger.Int("inserted", stats.Inserted))
	return stats, nil
}

type batchJob struct {
	batch      []domain.DocumentRecord
	start, end int
}

type batchResult struct {
	processed int
	inserted  int
	err       error
}

// processBatches fans batches out to workers and stops at the first error.
func (r *Replicator) processBatches(ctx context.Context, records []domain.DocumentRecord) (Stats, error) {
	numBatches := (len(records) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(records); start += r.batchSize {
		end := min(start+r.batchSize, len(records))
		jobs <- batchJob{batch: records[start:end], start: start, end: end}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				inserted, err := r.processBatch(ctx, job)
				results <- batchResult{processed: len(job.batch), inserted: inserted, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		stats.Processed += res.processed
		stats.Inserted += res.inserted
	}
	return stats, firstErr
}

// processBatch inserts the records of one batch whose date is not in Postgres yet.
func (r *Replicator) processBatch(ctx context.Context, job batchJob) (int, error) {
	existing, err := r.existingDates(ctx, job.batch)
	if err != nil {
		return 0, fmt.Errorf("check existing dates for batch [%d:%d]: %w", job.start, job.end, err)
	}

	toInsert := filterNew(job.batch, existing)
	if len(toInsert) == 0 {
		r.log.Debug("No new records in batch", logger.Int("start", job.start), logger.Int("end", job.end))
		return 0, nil
	}

	if err := r.insertTx(ctx, toInsert); err != nil {
		return 0, fmt.Errorf("insert batch [%d:%d]: %w", job.start, job.end, err)
	}
	r.log.Debug("Inserted batch",
		logger.Int("start", job.start), logger.Int("end", job.end), logger.Int("inserted", len(toInsert)))
	return len(toInsert), nil
}

const createRecordTableSQL = `
CREATE TABLE IF NOT EXISTS transcript_record (
  date TEXT PRIMARY KEY,
  link TEXT NOT NULL DEFAULT '',
  sections JSONB NOT NULL DEFAULT '[]',
  paragraphs INTEGER NOT NULL DEFAULT 0,
  replicated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertRecordSQL = `
INSERT INTO transcript_record (date, link, sections, paragraphs)
VALUES ($1, $2, $3, $4)
ON CONFLICT (date) DO NOTHING`

func (r *Replicator) ensureSchema(ctx context.Context) error {
	if r.pg.DB() == nil {
		return errNotConnected
	}
	if _, err := r.pg.DB().ExecContext(ctx, createRecordTableSQL); err != nil {
		return fmt.Errorf("create transcript_record table: %w", err)
	}
	return nil
}

// existingDates returns the dates of batch already stored in Postgres.
func (r *Replicator) existingDates(ctx context.Context, batch []domain.DocumentRecord) (map[string]bool, error) {
	if r.pg.DB() == nil {
		return nil, errNotConnected
	}

	args := make([]any, 0, len(batch))
	placeholders := make([]string, 0, len(batch))
	for _, rec := range batch {
		if rec.Date == "" {
			continue
		}
		args = append(args, rec.Date)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(args) == 0 {
		return map[string]bool{}, nil
	}

	query := "SELECT date FROM transcript_record WHERE date IN (" + strings.Join(placeholders, ", ") + ")"
	rows, err := r.pg.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing dates: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		set[date] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

func filterNew(all []domain.DocumentRecord, existing map[string]bool) []domain.DocumentRecord {
	out := make([]domain.DocumentRecord, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, rec := range all {
		if rec.Date == "" || existing[rec.Date] || seen[rec.Date] {
			continue
		}
		seen[rec.Date] = true
		out = append(out, rec)
	}
	return out
}

// insertTx inserts a batch of records within a transaction.
func (r *Replicator) insertTx(ctx context.Context, batch []domain.DocumentRecord) error {
	tx, err := r.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range batch {
		rec := &batch[i]
		sections, err := json.Marshal(rec.Sections)
		if err != nil {
			return fmt.Errorf("encode sections date=%q: %w", rec.Date, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Date, rec.Link, string(sections), rec.ParagraphCount()); err != nil {
			return fmt.Errorf("insert record date=%q: %w", rec.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
