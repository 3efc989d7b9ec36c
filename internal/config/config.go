package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSDIGEST_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	llmAPIKeyEnv    = "DEEPSEEK_API_KEY"
	llmModelEnv     = "DEEPSEEK_MODEL"
	smtpHostEnv     = "SMTP_SERVER"
	smtpUserEnv     = "SMTP_USERNAME"
	smtpPasswordEnv = "SMTP_PASSWORD"
)

// Config holds every setting required across the application. Components
// receive the sub-struct they need at construction; there is no global state.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Collect   CollectConfig   `yaml:"collect"`
	LLM       LLMConfig       `yaml:"llm"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	API       APIConfig       `yaml:"api"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN keeps
// the in-memory store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines the daily fire time and polling granularity.
type SchedulerConfig struct {
	FireTime     string         `yaml:"fireTime"` // "HH:MM" wall clock
	Timezone     string         `yaml:"timezone"`
	PollInterval time.Duration  `yaml:"pollInterval"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// CollectConfig bounds the collection fan-out.
type CollectConfig struct {
	CutoffHours    int           `yaml:"cutoffHours"`
	MaxPerSource   int           `yaml:"maxPerSource"`
	AdapterTimeout time.Duration `yaml:"adapterTimeout"`
	DataDir        string        `yaml:"dataDir"`
}

// Cutoff returns the recency window as a duration.
func (c CollectConfig) Cutoff() time.Duration {
	return time.Duration(c.CutoffHours) * time.Hour
}

// LLMConfig defines how to contact the text-generation capability.
type LLMConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	Temperature float64 `yaml:"temperature"`
	Concurrency int     `yaml:"concurrency"`
}

// SMTPConfig wires the outbound mail transport.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// APIConfig configures the HTTP boundary server.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// SourceConfig describes one upstream source and which adapter handles it.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"` // "feed" or "page"
	URL      string   `yaml:"url"`
	Selector string   `yaml:"selector"` // page sources only
	Keywords []string `yaml:"keywords"` // optional topical filter
	MaxItems int      `yaml:"maxItems"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(smtpHostEnv); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv(smtpUserEnv); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.FireTime != "" {
		base.Scheduler.FireTime = override.Scheduler.FireTime
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.PollInterval > 0 {
		base.Scheduler.PollInterval = override.Scheduler.PollInterval
	}

	if override.Collect.CutoffHours > 0 {
		base.Collect.CutoffHours = override.Collect.CutoffHours
	}
	if override.Collect.MaxPerSource > 0 {
		base.Collect.MaxPerSource = override.Collect.MaxPerSource
	}
	if override.Collect.AdapterTimeout > 0 {
		base.Collect.AdapterTimeout = override.Collect.AdapterTimeout
	}
	if override.Collect.DataDir != "" {
		base.Collect.DataDir = override.Collect.DataDir
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Temperature > 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.Concurrency > 0 {
		base.LLM.Concurrency = override.LLM.Concurrency
	}

	if override.SMTP.Host != "" {
		base.SMTP = override.SMTP
	}

	if override.API.Addr != "" {
		base.API = override.API
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			FireTime:     "02:00",
			Timezone:     defaultTimezone,
			PollInterval: time.Minute,
			location:     tz,
		},
		Collect: CollectConfig{
			CutoffHours:    24,
			MaxPerSource:   10,
			AdapterTimeout: 30 * time.Second,
			DataDir:        "data",
		},
		LLM: LLMConfig{
			Endpoint:    "https://api.deepseek.com/chat/completions",
			Model:       "deepseek-chat",
			Temperature: 0.3,
			Concurrency: 4,
		},
		SMTP: SMTPConfig{Port: 587},
		API:  APIConfig{Addr: ":8000"},
		Sources: []SourceConfig{
			{Name: "TechCrunch AI", Kind: "feed", URL: "https://techcrunch.com/tag/artificial-intelligence/feed/"},
			{Name: "MIT Technology Review AI", Kind: "feed", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed/"},
			{Name: "Ars Technica AI", Kind: "feed", URL: "https://arstechnica.com/tag/artificial-intelligence/feed/"},
			{Name: "Nature AI", Kind: "feed", URL: "https://www.nature.com/nature.rss", Keywords: []string{"ai", "artificial intelligence", "machine learning", "deep learning", "neural network"}},
			{Name: "IEEE Spectrum AI", Kind: "feed", URL: "https://spectrum.ieee.org/feeds/topic/artificial-intelligence.rss"},
			{Name: "VentureBeat AI", Kind: "feed", URL: "https://venturebeat.com/category/ai/feed/"},
			{Name: "Arxiv AI", Kind: "feed", URL: "https://arxiv.org/rss/cs.AI"},
			{Name: "Synced AI", Kind: "page", URL: "https://syncedreview.com/tag/artificial-intelligence/", Selector: "article.post"},
		},
	}
}
