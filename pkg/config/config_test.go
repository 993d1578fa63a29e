package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "seen_dates.txt", cfg.SeenKeysFile)
	assert.Equal(t, "transcripts.jsonl", cfg.RecordsFile)
	assert.Equal(t, ModeChrome, cfg.Browser.Mode)
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser.DevToolsURL)
	assert.Equal(t, 2*time.Second, cfg.Browser.PageSettleDelay)
	assert.Equal(t, 3*time.Second, cfg.Browser.Timing.ClickDelay)
	assert.Equal(t, time.Second, cfg.Browser.Timing.PollInterval)
	assert.Equal(t, uint(30), cfg.Browser.Timing.MaxPolls)
	assert.Equal(t, "div.notice", cfg.Browser.Selectors.Item)
	assert.Equal(t, "browser", cfg.Browser.ClientType)
	assert.True(t, cfg.Translation.Enabled)
	assert.Equal(t, "en", cfg.Translation.TargetLanguage)
	assert.Equal(t, 3*time.Second, cfg.Translation.Timeout)
	assert.Equal(t, LedgerFile, cfg.Storage.LedgerBackend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "harvester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listing_url: https://example.org/list
browser:
  mode: static
  click_delay: 500ms
  selectors:
    item: li.result
translation:
  enabled: false
log:
  level: debug
`), 0o644))

	t.Setenv("HARVESTER_RECORDS_FILE", "/tmp/out.jsonl")
	t.Setenv("HARVESTER_TRANSLATION_TIMEOUT", "1s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/list", cfg.ListingURL)
	assert.Equal(t, ModeStatic, cfg.Browser.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.Browser.Timing.ClickDelay)
	assert.Equal(t, "li.result", cfg.Browser.Selectors.Item)
	assert.Equal(t, "p.title a", cfg.Browser.Selectors.ItemLink, "unset selectors keep their default")
	assert.False(t, cfg.Translation.Enabled)
	assert.Equal(t, time.Second, cfg.Translation.Timeout)
	assert.Equal(t, "/tmp/out.jsonl", cfg.RecordsFile)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Translation.OpenAI.APIKey)
}

func validConfig() *Config {
	return &Config{
		ListingURL:   "https://example.org/list",
		SeenKeysFile: "seen.txt",
		RecordsFile:  "out.jsonl",
		Browser:      BrowserConfig{Mode: ModeChrome, DevToolsURL: "ws://127.0.0.1:9222"},
		Translation: TranslationConfig{
			Enabled:        true,
			TargetLanguage: "en",
			Provider:       ProviderOpenAI,
			OpenAI:         OpenAIConfig{APIKey: "sk"},
		},
		Storage: StorageConfig{LedgerBackend: LedgerFile},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing listing", mutate: func(c *Config) { c.ListingURL = "" }, wantErr: "listing_url is required"},
		{name: "relative listing", mutate: func(c *Config) { c.ListingURL = "/list" }, wantErr: "not an absolute URL"},
		{name: "static mode with plain client", mutate: func(c *Config) {
			c.Browser.Mode = ModeStatic
			c.Browser.ClientType = "plain"
		}},
		{name: "static mode with unknown client", mutate: func(c *Config) {
			c.Browser.Mode = ModeStatic
			c.Browser.ClientType = "wget"
		}, wantErr: "browser.client_type"},
		{name: "bad mode", mutate: func(c *Config) { c.Browser.Mode = "firefox" }, wantErr: "browser.mode"},
		{name: "missing api key", mutate: func(c *Config) { c.Translation.OpenAI.APIKey = "" }, wantErr: "api_key"},
		{name: "translation off needs no key", mutate: func(c *Config) {
			c.Translation.Enabled = false
			c.Translation.OpenAI.APIKey = ""
		}},
		{name: "postgres ledger needs dsn", mutate: func(c *Config) { c.Storage.LedgerBackend = LedgerPostgres }, wantErr: "postgres_dsn"},
		{name: "supabase ledger needs url", mutate: func(c *Config) {
			c.Storage.LedgerBackend = LedgerSupabase
			c.Storage.Supabase.Key = "anon"
		}, wantErr: "storage.supabase.url"},
		{name: "supabase ledger with url and key", mutate: func(c *Config) {
			c.Storage.LedgerBackend = LedgerSupabase
			c.Storage.Supabase = SupabaseConfig{URL: "https://abc.supabase.co", Key: "anon"}
		}},
		{name: "unknown ledger", mutate: func(c *Config) { c.Storage.LedgerBackend = "redis" }, wantErr: "not supported"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestValidateReplication(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.ValidateReplication())
	cfg.Storage.PostgresDSN = "postgres://localhost/db"
	assert.NoError(t, cfg.ValidateReplication())

	// Replication writes JSONB rows with SQL, so an API key alone is not enough.
	cfg.Storage.PostgresDSN = ""
	cfg.Storage.Supabase = SupabaseConfig{URL: "https://abc.supabase.co", Key: "anon"}
	assert.ErrorContains(t, cfg.ValidateReplication(), "password")
	cfg.Storage.Supabase.Password = "secret"
	assert.NoError(t, cfg.ValidateReplication())
}
