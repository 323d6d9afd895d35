package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string             `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig      `toml:"logging"`
	Storage     StorageConfig      `toml:"storage"`
	Variables   VariablesConfig    `toml:"variables"` // Credential files seeded into the KV store
	Scheduler   SchedulerConfig    `toml:"scheduler"`
	Ingest      IngestConfig       `toml:"ingest"`
	Scoring     ScoringConfig      `toml:"scoring"`
	Signals     SignalsConfig      `toml:"signals"`
	Ranking     RankingConfig      `toml:"ranking"`
	Sources     SourcesConfig      `toml:"sources"`
	Digest      DigestConfig       `toml:"digest"`
	Instruments []InstrumentConfig `toml:"instruments"` // Statically registered instruments
}

// VariablesConfig locates credential files (imap_*, eodhd_api_key) loaded into the KV store at startup
type VariablesConfig struct {
	Dir     string `toml:"dir"`      // variables.toml and variables/*.toml
	EnvFile string `toml:"env_file"` // KEY=value file, loaded last
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (nothing written to Path)
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir"`         // Log file directory, empty = logs/ next to the executable
}

// SchedulerConfig controls when ingestion cycles run
type SchedulerConfig struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`     // Standard 5-field cron expression
	RunOnStart bool   `toml:"run_on_start"` // Run one cycle immediately after start
}

// IngestConfig controls dedup and corpus sizes for one cycle
type IngestConfig struct {
	DedupWindow      int  `toml:"dedup_window"`      // Recent persisted items checked for duplicate URLs (min 200)
	CorpusSize       int  `toml:"corpus_size"`       // Recent persisted items ranked each cycle
	DiscoveryEnabled bool `toml:"discovery_enabled"` // Create instruments for unknown identifiers
	RankDemoItems    bool `toml:"rank_demo_items"`   // Include demo-provenance items in ranking
}

// ScoringConfig holds the relevance formula weights
type ScoringConfig struct {
	RecencyWeight       float64            `toml:"recency_weight"`
	BreakingWeight      float64            `toml:"breaking_weight"`
	SourceWeight        float64            `toml:"source_weight"`
	RecencyDecayHours   float64            `toml:"recency_decay_hours"`
	DefaultSourceWeight float64            `toml:"default_source_weight"`
	SourceWeights       map[string]float64 `toml:"source_weights"` // Overrides merged over built-in table
}

// SignalsConfig points at keyword data files
type SignalsConfig struct {
	RulesFile      string   `toml:"rules_file"`      // YAML or TOML keyword rules, empty = built-in
	ExtraStopwords []string `toml:"extra_stopwords"` // Added to the built-in stopword list
}

// RankingConfig controls per-category selection
type RankingConfig struct {
	TopK           int `toml:"top_k"`           // Instruments selected per category
	MaxItems       int `toml:"max_items"`       // Newest items kept per selected instrument
	MinRepresented int `toml:"min_represented"` // Below this many instruments a category uses the fallback table
	FallbackLimit  int `toml:"fallback_limit"`  // Max fallback candidates per category
}

// SourcesConfig configures the source adapters
type SourcesConfig struct {
	RequestTimeout string             `toml:"request_timeout"` // e.g. "30s"
	RateLimit      float64            `toml:"rate_limit"`      // Requests per second per source
	MaxRetries     int                `toml:"max_retries"`
	UserAgent      string             `toml:"user_agent"`
	RSS            []RSSSourceConfig  `toml:"rss"`
	Pages          []PageSourceConfig `toml:"pages"`
	IMAP           IMAPSourceConfig   `toml:"imap"`
	Demo           DemoSourceConfig   `toml:"demo"`
	EODHD          EODHDSourceConfig  `toml:"eodhd"`
}

type RSSSourceConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// PageSourceConfig scrapes headlines from an HTML page with CSS selectors
type PageSourceConfig struct {
	Name            string `toml:"name"`
	URL             string `toml:"url"`
	ItemSelector    string `toml:"item_selector"`    // One match per headline block
	TitleSelector   string `toml:"title_selector"`   // Relative to item, empty = item text
	LinkSelector    string `toml:"link_selector"`    // Relative to item, empty = first a[href]
	SummarySelector string `toml:"summary_selector"` // Relative to item, optional
	TimeSelector    string `toml:"time_selector"`    // Relative to item, reads datetime attr, optional
	Render          bool   `toml:"render"`           // Render with headless Chrome before parsing
	RenderWait      string `toml:"render_wait"`      // e.g. "3s"
}

// IMAPSourceConfig reads newsletters from a mailbox. KV keys imap_* take precedence.
type IMAPSourceConfig struct {
	Enabled       bool   `toml:"enabled"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	UseTLS        bool   `toml:"use_tls"`
	Mailbox       string `toml:"mailbox"`
	SubjectFilter string `toml:"subject_filter"`
	SourceName    string `toml:"source_name"`
	MarkAsRead    bool   `toml:"mark_as_read"`
}

// DemoSourceConfig enables the synthetic demo data source
type DemoSourceConfig struct {
	Enabled            bool  `toml:"enabled"`
	Seed               int64 `toml:"seed"`
	ItemsPerInstrument int   `toml:"items_per_instrument"`
}

// EODHDSourceConfig pulls symbol news and quotes from the EODHD API
type EODHDSourceConfig struct {
	Enabled       bool     `toml:"enabled"`
	APIKey        string   `toml:"api_key"`        // Falls back to KV key eodhd_api_key
	BaseURL       string   `toml:"base_url"`       // Empty = https://eodhd.com/api
	Exchange      string   `toml:"exchange"`       // Suffix for bare identifiers, e.g. "US"
	Symbols       []string `toml:"symbols"`        // News is requested for these; quotes for every instrument listed here
	NewsLimit     int      `toml:"news_limit"`     // Articles per cycle
	SourceName    string   `toml:"source_name"`
	RefreshQuotes bool     `toml:"refresh_quotes"` // Register the symbols with live quote data each cycle
}

// DigestConfig mails the top analyses after every cycle that produced some
type DigestConfig struct {
	Enabled    bool       `toml:"enabled"`
	Recipients []string   `toml:"recipients"`
	Top        int        `toml:"top"`            // Analyses listed
	Subject    string     `toml:"subject"`        // Date is appended
	AttachPDF  bool       `toml:"attach_pdf"`
	SMTP       SMTPConfig `toml:"smtp"`
}

// SMTPConfig is the outgoing mail server. KV keys smtp_* take precedence.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"` // 465 = implicit TLS, otherwise STARTTLS when use_tls
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
	UseTLS   bool   `toml:"use_tls"`
}

// InstrumentConfig registers an instrument ahead of any detection
type InstrumentConfig struct {
	Identifier   string  `toml:"identifier"`
	DisplayName  string  `toml:"display_name"`
	Exchange     string  `toml:"exchange"`
	Sector       string  `toml:"sector"`
	Industry     string  `toml:"industry"`
	MarketCap    float64 `toml:"market_cap"`    // 0 = unknown
	CurrentPrice float64 `toml:"current_price"` // 0 = unknown
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Variables: VariablesConfig{
			Dir:     "./keys",
			EnvFile: ".env",
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Schedule:   "*/30 * * * *", // Every 30 minutes
			RunOnStart: true,
		},
		Ingest: IngestConfig{
			DedupWindow: 500,
			CorpusSize:  500,
		},
		Scoring: ScoringConfig{
			RecencyWeight:       0.5,
			BreakingWeight:      0.3,
			SourceWeight:        0.2,
			RecencyDecayHours:   6,
			DefaultSourceWeight: 0.5,
		},
		Ranking: RankingConfig{
			TopK:           5,
			MaxItems:       10,
			MinRepresented: 3,
			FallbackLimit:  5,
		},
		Sources: SourcesConfig{
			RequestTimeout: "30s",
			RateLimit:      2,
			MaxRetries:     3,
			UserAgent:      "specula/1.0 (+https://github.com/ternarybob/specula)",
			IMAP: IMAPSourceConfig{
				Port:       993,
				UseTLS:     true,
				Mailbox:    "INBOX",
				SourceName: "Newsletter",
			},
			Demo: DemoSourceConfig{
				Seed:               42,
				ItemsPerInstrument: 3,
			},
			EODHD: EODHDSourceConfig{
				Exchange:      "US",
				NewsLimit:     50,
				SourceName:    "EODHD",
				RefreshQuotes: true,
			},
		},
		Digest: DigestConfig{
			Top:       10,
			Subject:   "Specula top picks",
			AttachPDF: true,
			SMTP: SMTPConfig{
				Port:     587,
				FromName: "Specula",
				UseTLS:   true,
			},
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies SPECULA_* environment variables
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SPECULA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("SPECULA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if inMemory := os.Getenv("SPECULA_BADGER_IN_MEMORY"); inMemory != "" {
		config.Storage.Badger.InMemory = parseBool(inMemory, config.Storage.Badger.InMemory)
	}

	if dir := os.Getenv("SPECULA_VARIABLES_DIR"); dir != "" {
		config.Variables.Dir = dir
	}

	// Logging configuration
	if level := os.Getenv("SPECULA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SPECULA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
	if dir := os.Getenv("SPECULA_LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}

	// Scheduler configuration
	if schedule := os.Getenv("SPECULA_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if enabled := os.Getenv("SPECULA_SCHEDULER_ENABLED"); enabled != "" {
		config.Scheduler.Enabled = parseBool(enabled, config.Scheduler.Enabled)
	}

	// Ingest configuration
	if window := os.Getenv("SPECULA_DEDUP_WINDOW"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			config.Ingest.DedupWindow = w
		}
	}
	if discovery := os.Getenv("SPECULA_DISCOVERY_ENABLED"); discovery != "" {
		config.Ingest.DiscoveryEnabled = parseBool(discovery, config.Ingest.DiscoveryEnabled)
	}

	// Signals configuration
	if rulesFile := os.Getenv("SPECULA_RULES_FILE"); rulesFile != "" {
		config.Signals.RulesFile = rulesFile
	}

	// Sources configuration
	if demo := os.Getenv("SPECULA_DEMO_ENABLED"); demo != "" {
		config.Sources.Demo.Enabled = parseBool(demo, config.Sources.Demo.Enabled)
	}
	if host := os.Getenv("SPECULA_IMAP_HOST"); host != "" {
		config.Sources.IMAP.Host = host
	}
	if username := os.Getenv("SPECULA_IMAP_USERNAME"); username != "" {
		config.Sources.IMAP.Username = username
	}
	if password := os.Getenv("SPECULA_IMAP_PASSWORD"); password != "" {
		config.Sources.IMAP.Password = password
	}
	if password := os.Getenv("SPECULA_SMTP_PASSWORD"); password != "" {
		config.Digest.SMTP.Password = password
	}
	if apiKey := os.Getenv("SPECULA_EODHD_API_KEY"); apiKey != "" {
		config.Sources.EODHD.APIKey = apiKey
	}
	if enabled := os.Getenv("SPECULA_EODHD_ENABLED"); enabled != "" {
		config.Sources.EODHD.Enabled = parseBool(enabled, config.Sources.EODHD.Enabled)
	}
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return fmt.Errorf("scheduler.schedule: %w", err)
		}
	}

	s := c.Scoring
	if s.RecencyWeight < 0 || s.BreakingWeight < 0 || s.SourceWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if s.RecencyDecayHours <= 0 {
		return fmt.Errorf("scoring.recency_decay_hours must be positive, got %v", s.RecencyDecayHours)
	}
	if s.DefaultSourceWeight < 0 || s.DefaultSourceWeight > 1 {
		return fmt.Errorf("scoring.default_source_weight must be within [0,1], got %v", s.DefaultSourceWeight)
	}

	if c.Ranking.TopK <= 0 {
		return fmt.Errorf("ranking.top_k must be positive, got %d", c.Ranking.TopK)
	}
	if c.Ranking.MaxItems <= 0 {
		return fmt.Errorf("ranking.max_items must be positive, got %d", c.Ranking.MaxItems)
	}

	if _, err := c.Sources.RequestTimeoutDuration(); err != nil {
		return fmt.Errorf("sources.request_timeout: %w", err)
	}

	if c.Digest.Enabled && len(c.Digest.Recipients) == 0 {
		return fmt.Errorf("digest.recipients is required when the digest is enabled")
	}

	for i, inst := range c.Instruments {
		if ParseTicker(inst.Identifier).Code == "" {
			return fmt.Errorf("instruments[%d]: identifier is required", i)
		}
	}

	return nil
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("cron expression is empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// RequestTimeoutDuration parses RequestTimeout, defaulting to 30s when empty
func (s SourcesConfig) RequestTimeoutDuration() (time.Duration, error) {
	if s.RequestTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(s.RequestTimeout)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
