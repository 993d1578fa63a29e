package ledger

import (
	"context"
	"errors"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"transcript-harvester/pkg/db"
)

var errNoDirectDB = errors.New("ledger: database handle is nil")

const (
	seenDatesTable = "seen_dates"

	createSeenDatesSQL = `CREATE TABLE IF NOT EXISTS seen_dates (
	date_key TEXT PRIMARY KEY,
	seen_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectSeenDatesSQL = `SELECT date_key FROM seen_dates ORDER BY seen_at, date_key`
	insertSeenDateSQL  = `INSERT INTO seen_dates (date_key) VALUES ($1) ON CONFLICT (date_key) DO NOTHING`
)

// SQLStore keeps seen keys in the seen_dates table of a Postgres database. It works with
// both db.PostgresClient and db.SupabaseClient; the connection is owned by the provider.
// A Supabase client connected with only a URL and API key has no database handle; the
// store then goes through the Supabase REST API, and the table must already exist.
type SQLStore struct {
	provider db.DBProvider
}

// NewSQLStore returns a store on provider's database.
func NewSQLStore(provider db.DBProvider) *SQLStore {
	return &SQLStore{provider: provider}
}

// EnsureSchema creates the seen_dates table if it does not exist. Over the REST API it
// only checks that the table is there.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	sqlDB := s.provider.DB()
	if sqlDB == nil {
		if sdk := s.sdk(); sdk != nil {
			return restCheck(ctx, sdk)
		}
		return errNoDirectDB
	}
	if _, err := sqlDB.ExecContext(ctx, createSeenDatesSQL); err != nil {
		return fmt.Errorf("create seen_dates: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context) ([]string, error) {
	sqlDB := s.provider.DB()
	if sqlDB == nil {
		if sdk := s.sdk(); sdk != nil {
			return restLoad(ctx, sdk)
		}
		return nil, errNoDirectDB
	}

	rows, err := sqlDB.QueryContext(ctx, selectSeenDatesSQL)
	if err != nil {
		return nil, fmt.Errorf("query seen_dates: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan seen_dates: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Append implements Store. Appending a key twice is a no-op.
func (s *SQLStore) Append(ctx context.Context, key string) error {
	sqlDB := s.provider.DB()
	if sqlDB == nil {
		if sdk := s.sdk(); sdk != nil {
			return restAppend(ctx, sdk, key)
		}
		return errNoDirectDB
	}
	_, err := sqlDB.ExecContext(ctx, insertSeenDateSQL, key)
	return err
}

func (s *SQLStore) sdk() *supabase.Client {
	if p, ok := s.provider.(restProvider); ok {
		return p.SDK()
	}
	return nil
}

// Close implements Store. The provider keeps the connection.
func (s *SQLStore) Close() error {
	return nil
}
