package domain

import "time"

// Config holds the complete Shrike configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Detection knobs: thresholds, batch size, concurrency
	Detection DetectionConfig `json:"detection"`

	// External collaborators
	Source   SourceConfig   `json:"source"`
	Notifier NotifierConfig `json:"notifier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// DetectionConfig holds the tunable knobs of the check pipeline.
// None of these are hard-coded in the components that consume them.
type DetectionConfig struct {
	// RulesPath is the JSON rule document loaded at startup.
	// When empty, rules are loaded from the repository instead.
	RulesPath string `json:"rulesPath"`

	// AlertThreshold is the minimum verdict score that triggers a
	// notification.
	AlertThreshold int `json:"alertThreshold"`

	// MediumThreshold and HighThreshold are the label cut points:
	// score >= High -> high, score >= Medium -> medium, else low.
	MediumThreshold int `json:"mediumThreshold"`
	HighThreshold   int `json:"highThreshold"`

	// BatchLimit is the maximum number of posts fetched per run.
	BatchLimit int `json:"batchLimit"`

	// MaxWorkers bounds concurrent post processing within a run.
	MaxWorkers int `json:"maxWorkers"`

	// SeenTTL is how long a checked post is remembered so periodic runs
	// do not re-alert on it. Zero disables de-duplication.
	SeenTTL time.Duration `json:"seenTTL"`

	// AlertBurstLimit caps notifications per page per AlertBurstWindow.
	// Zero disables the cap.
	AlertBurstLimit  int           `json:"alertBurstLimit"`
	AlertBurstWindow time.Duration `json:"alertBurstWindow"`

	// RunInterval enables the periodic scheduler when non-zero.
	RunInterval time.Duration `json:"runInterval"`
}

// SourceConfig holds settings for the page-feed content source.
type SourceConfig struct {
	// AccessToken authorizes reads against the page feed.
	AccessToken string `json:"accessToken"`

	// PageID is the default page checked by the scheduler.
	PageID string `json:"pageId"`

	// APIVersion selects the Graph API version, e.g. "v19.0".
	APIVersion string `json:"apiVersion"`

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string `json:"baseUrl,omitempty"`
}

// NotifierConfig holds settings for the alert notifier.
type NotifierConfig struct {
	// Type is the notifier type: "line", "telegram", or "none"
	Type string `json:"type"`

	// LINE Notify settings
	LineToken string `json:"lineToken"`

	// Telegram settings
	TelegramToken  string `json:"telegramToken"`
	TelegramChatID int64  `json:"telegramChatId"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite repository, in-memory cache, channel bus, LINE notifier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Detection: DetectionConfig{
			RulesPath:        "./config/rules.config.json",
			AlertThreshold:   4,
			MediumThreshold:  2,
			HighThreshold:    4,
			BatchLimit:       10,
			MaxWorkers:       5,
			SeenTTL:          24 * time.Hour,
			AlertBurstLimit:  20,
			AlertBurstWindow: time.Hour,
		},
		Source: SourceConfig{
			APIVersion: "v19.0",
		},
		Notifier: NotifierConfig{
			Type: "line",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./shrike.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "shrike",
		},
	}
}

// DistributedConfig returns a configuration for multi-node deployments:
// PostgreSQL repository, two-phase Redis cache, NATS bus.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "shrike",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
