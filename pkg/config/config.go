// Package config loads harvester settings from an optional YAML file, a .env file and
// HARVESTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"transcript-harvester/pkg/browser"
	"transcript-harvester/pkg/content"
	"transcript-harvester/pkg/httpclient"
	"transcript-harvester/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. HARVESTER_BROWSER_MODE.
const EnvPrefix = "HARVESTER"

// Browser modes.
const (
	ModeChrome = "chrome"
	ModeStatic = "static"
)

// Ledger backends.
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
	LedgerSupabase = "supabase"
)

// ProviderOpenAI is the only translation provider.
const ProviderOpenAI = "openai"

// Config is the full harvester configuration.
type Config struct {
	ListingURL   string `mapstructure:"listing_url" yaml:"listing_url"`
	SeenKeysFile string `mapstructure:"seen_keys_file" yaml:"seen_keys_file"`
	RecordsFile  string `mapstructure:"records_file" yaml:"records_file"`

	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Translation TranslationConfig `mapstructure:"translation" yaml:"translation"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Log         logger.Config     `mapstructure:"log" yaml:"log"`
}

// BrowserConfig selects and tunes the browser session.
type BrowserConfig struct {
	Mode            string            `mapstructure:"mode" yaml:"mode"`
	DevToolsURL     string            `mapstructure:"devtools_url" yaml:"devtools_url"`
	ClientType      string            `mapstructure:"client_type" yaml:"client_type"`
	UserAgent       string            `mapstructure:"user_agent" yaml:"user_agent"`
	PageSettleDelay time.Duration     `mapstructure:"page_settle_delay" yaml:"page_settle_delay"`
	Timing          browser.Timing    `mapstructure:",squash" yaml:",inline"`
	Selectors       content.Selectors `mapstructure:"selectors" yaml:"selectors"`
}

// TranslationConfig controls the language-aware extractor.
type TranslationConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	TargetLanguage string        `mapstructure:"target_language" yaml:"target_language"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Provider       string        `mapstructure:"provider" yaml:"provider"`
	OpenAI         OpenAIConfig  `mapstructure:"openai" yaml:"openai"`
}

// OpenAIConfig configures the OpenAI translator.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// StorageConfig selects the ledger backend and the optional record mirror.
type StorageConfig struct {
	LedgerBackend string         `mapstructure:"ledger_backend" yaml:"ledger_backend"`
	PostgresDSN   string         `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Supabase      SupabaseConfig `mapstructure:"supabase" yaml:"supabase"`
	Mongo         MongoConfig    `mapstructure:"mongo" yaml:"mongo"`
}

// SupabaseConfig holds Supabase credentials.
type SupabaseConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Key      string `mapstructure:"key" yaml:"key"`
	Password string `mapstructure:"password" yaml:"password"`
}

// MongoConfig enables the Mongo record mirror when URI is set.
type MongoConfig struct {
	URI        string `mapstructure:"uri" yaml:"uri"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// Load reads configuration. path may be empty, in which case ./config.yaml is used if
// present. Values from the environment override the file.
func Load(path string) (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Translation.OpenAI.APIKey == "" {
		cfg.Translation.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.Browser.Selectors.SetDefaults()
	cfg.Log.SetDefaults()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	timing := browser.DefaultTiming()
	selectors := content.DefaultSelectors()

	v.SetDefault("listing_url", "")
	v.SetDefault("seen_keys_file", "seen_dates.txt")
	v.SetDefault("records_file", "transcripts.jsonl")

	v.SetDefault("browser.mode", ModeChrome)
	v.SetDefault("browser.devtools_url", "ws://127.0.0.1:9222")
	v.SetDefault("browser.client_type", string(httpclient.BrowserClient))
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.page_settle_delay", 2*time.Second)
	v.SetDefault("browser.click_delay", timing.ClickDelay)
	v.SetDefault("browser.close_delay", timing.CloseDelay)
	v.SetDefault("browser.poll_interval", timing.PollInterval)
	v.SetDefault("browser.max_polls", timing.MaxPolls)
	v.SetDefault("browser.selectors.item", selectors.Item)
	v.SetDefault("browser.selectors.item_link", selectors.ItemLink)
	v.SetDefault("browser.selectors.item_date", selectors.ItemDate)
	v.SetDefault("browser.selectors.next_page", selectors.NextPage)
	v.SetDefault("browser.selectors.row", selectors.Row)
	v.SetDefault("browser.selectors.row_topic", selectors.RowTopic)
	v.SetDefault("browser.selectors.row_paragraph", selectors.RowParagraph)
	v.SetDefault("browser.selectors.reveal_full_text", selectors.RevealFullText)

	v.SetDefault("translation.enabled", true)
	v.SetDefault("translation.target_language", "en")
	v.SetDefault("translation.timeout", 3*time.Second)
	v.SetDefault("translation.provider", ProviderOpenAI)
	v.SetDefault("translation.openai.api_key", "")
	v.SetDefault("translation.openai.model", "gpt-4o-mini")
	v.SetDefault("translation.openai.base_url", "")

	v.SetDefault("storage.ledger_backend", LedgerFile)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.supabase.url", "")
	v.SetDefault("storage.supabase.key", "")
	v.SetDefault("storage.supabase.password", "")
	v.SetDefault("storage.mongo.uri", "")
	v.SetDefault("storage.mongo.database", "harvester")
	v.SetDefault("storage.mongo.collection", "transcript_record")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
}

// Validate checks the settings a crawl run needs.
func (c *Config) Validate() error {
	var errs []error

	if c.ListingURL == "" {
		errs = append(errs, errors.New("listing_url is required"))
	} else if u, err := url.Parse(c.ListingURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("listing_url %q is not an absolute URL", c.ListingURL))
	}
	if c.SeenKeysFile == "" && c.Storage.LedgerBackend == LedgerFile {
		errs = append(errs, errors.New("seen_keys_file is required for the file ledger"))
	}
	if c.RecordsFile == "" {
		errs = append(errs, errors.New("records_file is required"))
	}

	switch c.Browser.Mode {
	case ModeChrome:
		if c.Browser.DevToolsURL == "" {
			errs = append(errs, errors.New("browser.devtools_url is required in chrome mode"))
		}
	case ModeStatic:
		switch httpclient.ClientType(c.Browser.ClientType) {
		case httpclient.BrowserClient, httpclient.PlainClient:
		default:
			errs = append(errs, fmt.Errorf("browser.client_type must be %q or %q, got %q",
				httpclient.BrowserClient, httpclient.PlainClient, c.Browser.ClientType))
		}
	default:
		errs = append(errs, fmt.Errorf("browser.mode must be %q or %q, got %q", ModeChrome, ModeStatic, c.Browser.Mode))
	}

	if c.Translation.Enabled {
		if c.Translation.Provider != ProviderOpenAI {
			errs = append(errs, fmt.Errorf("translation.provider %q is not supported", c.Translation.Provider))
		} else if c.Translation.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("translation.openai.api_key (or OPENAI_API_KEY) is required when translation is enabled"))
		}
		if c.Translation.TargetLanguage == "" {
			errs = append(errs, errors.New("translation.target_language is required"))
		}
	}

	errs = append(errs, c.Storage.validate()...)
	return errors.Join(errs...)
}

// ValidateReplication checks the settings the replicate command needs.
func (c *Config) ValidateReplication() error {
	if c.Storage.PostgresDSN != "" {
		return nil
	}
	if c.Storage.Supabase.URL == "" || c.Storage.Supabase.Password == "" {
		return errors.New("storage.postgres_dsn or storage.supabase.url and password are required for replication")
	}
	return nil
}

func (s StorageConfig) validate() []error {
	switch s.LedgerBackend {
	case LedgerFile:
		return nil
	case LedgerPostgres:
		if s.PostgresDSN == "" {
			return []error{errors.New("storage.postgres_dsn is required for the postgres ledger")}
		}
	case LedgerSupabase:
		if s.Supabase.URL == "" || (s.Supabase.Password == "" && s.Supabase.Key == "") {
			return []error{errors.New("storage.supabase.url and either password or key are required for the supabase ledger")}
		}
	default:
		return []error{fmt.Errorf("storage.ledger_backend %q is not supported", s.LedgerBackend)}
	}
	return nil
}
