package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	supabase "github.com/supabase-community/supabase-go"
)

var errNoSupabaseCredentials = errors.New("supabase needs a connection string, a password, or URL and key")

// SupabaseConfig holds configuration required to connect to Supabase.
type SupabaseConfig struct {
	// ConnectionString is the Supabase Postgres connection string. Built from URL and
	// Password when empty.
	ConnectionString string

	// URL is the project URL, e.g. https://[project-ref].supabase.co.
	URL string

	// Key is the API key used by the SDK (service_role on servers).
	Key string

	// Password is the database password, not the API key.
	Password string

	Pool
}

// SupabaseClient provides the Supabase Postgres database and, when a key is set, the SDK.
type SupabaseClient struct {
	db  *sql.DB
	sdk *supabase.Client
	cfg SupabaseConfig
}

// NewSupabaseClient constructs an unconnected Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect opens the SDK client (URL and key) and the direct database connection
// (connection string or password). A failing database connection is tolerated when the
// SDK is available; DB then returns nil.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.URL != "" && c.cfg.Key != "" {
		sdk, err := supabase.NewClient(c.cfg.URL, c.cfg.Key, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.sdk = sdk
	}

	dsn, err := c.dsn()
	if err != nil {
		if c.sdk != nil {
			return nil
		}
		return err
	}
	if dsn == "" {
		if c.sdk == nil {
			return errNoSupabaseCredentials
		}
		return nil
	}

	// The pooler in front of Supabase does not keep prepared statements.
	dsn = addConnectionParam(dsn, "statement_cache_capacity", "0")
	dsn = addConnectionParam(dsn, "default_query_exec_mode", "simple_protocol")

	db, err := openPgx(ctx, dsn, c.cfg.Pool)
	if err != nil {
		if c.sdk != nil {
			return nil
		}
		return fmt.Errorf("supabase: %w", err)
	}
	c.db = db
	return nil
}

// Close closes the database connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the database handle. It is nil in SDK-only mode, where callers use SDK.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// SDK returns the Supabase SDK client, or nil.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.sdk
}

func (c *SupabaseClient) dsn() (string, error) {
	if c.cfg.ConnectionString != "" {
		return c.cfg.ConnectionString, nil
	}
	if c.cfg.Password == "" {
		return "", nil
	}
	return buildSupabaseDSN(c.cfg.URL, c.cfg.Password)
}

// buildSupabaseDSN derives the direct connection string from the project URL.
func buildSupabaseDSN(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", fmt.Errorf("supabase URL is required when connection string is not provided")
	}

	parsed, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}
	ref, _, ok := strings.Cut(parsed.Host, ".")
	if !ok || ref == "" {
		return "", fmt.Errorf("invalid supabase URL %q: expected [project-ref].supabase.co", projectURL)
	}

	return fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require",
		url.QueryEscape(password), ref), nil
}

// addConnectionParam appends key=value to dsn unless key is already set.
func addConnectionParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}
