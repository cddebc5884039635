// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Library, Index, Search, Highlight, Postgres, Kafka,
// Redis, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Library   LibraryConfig   `yaml:"library"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Highlight HighlightConfig `yaml:"highlight"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// LibraryConfig describes the on-disk collection of scanned books. Each book
// lives in Root/<book>/<book><MarkupExt>.
type LibraryConfig struct {
	Root           string          `yaml:"root"`
	MarkupExt      string          `yaml:"markupExt"`
	MetadataFields []MetadataField `yaml:"metadataFields"`
	// TitleFromBookID makes an absent title fall back to the book identifier.
	TitleFromBookID bool `yaml:"titleFromBookId"`
}

// MetadataField is one recognized bibliographic field and the value used
// when a book's markup does not declare it.
type MetadataField struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default"`
}

// IndexConfig controls where the per-book index segments live and how a
// full reindex is scheduled.
type IndexConfig struct {
	// Dir defaults to <library.root>/.index when empty.
	Dir          string        `yaml:"dir"`
	Workers      int           `yaml:"workers"`
	BuildTimeout time.Duration `yaml:"buildTimeout"`
}

// SearchConfig controls result limits and snippet generation.
type SearchConfig struct {
	// MaxResults caps the hit list; 0 means unlimited.
	MaxResults int `yaml:"maxResults"`
	// SnippetSurround is the number of characters of context kept on each
	// side of a match.
	SnippetSurround int `yaml:"snippetSurround"`
	// MaxFragments keeps only the best-scoring fragments; 0 keeps all.
	MaxFragments int `yaml:"maxFragments"`
}

// HighlightConfig controls the highlight resolver's page cache.
type HighlightConfig struct {
	PageCacheSize int `yaml:"pageCacheSize"`
}

// PostgresConfig holds PostgreSQL connection parameters for the reindex
// status ledger.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ReindexRequests string `yaml:"reindexRequests"`
	IndexComplete   string `yaml:"indexComplete"`
	SearchEvents    string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate checks cross-field constraints after defaults and overrides have
// been applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Library.Root) == "" {
		return fmt.Errorf("library.root must be set")
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.maxResults must not be negative")
	}
	seen := make(map[string]struct{}, len(c.Library.MetadataFields))
	for _, f := range c.Library.MetadataFields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			return fmt.Errorf("library.metadataFields: empty field name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("library.metadataFields: duplicate field %q", f.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// IndexDir resolves the index directory, defaulting to a hidden directory
// inside the collection root.
func (c *Config) IndexDir() string {
	if c.Index.Dir != "" {
		return c.Index.Dir
	}
	return filepath.Join(c.Library.Root, ".index")
}

// DefaultMetadataFields lists the recognized bibliographic fields in lookup
// order.
func DefaultMetadataFields() []MetadataField {
	return []MetadataField{
		{Name: "title"},
		{Name: "creator"},
		{Name: "description"},
		{Name: "publisher"},
		{Name: "contributor"},
		{Name: "date"},
		{Name: "language"},
	}
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Library: LibraryConfig{
			Root:            filepath.Join(home, "scans"),
			MarkupExt:       ".hocr",
			MetadataFields:  DefaultMetadataFields(),
			TitleFromBookID: true,
		},
		Index: IndexConfig{
			Workers:      4,
			BuildTimeout: 2 * time.Minute,
		},
		Search: SearchConfig{
			MaxResults:      0,
			SnippetSurround: 40,
			MaxFragments:    0,
		},
		Highlight: HighlightConfig{
			PageCacheSize: 2048,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "booksearch",
			User:            "booksearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "booksearch-indexer",
			Topics: KafkaTopics{
				ReindexRequests: "book-reindex-requests",
				IndexComplete:   "book-index-complete",
				SearchEvents:    "book-search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_LIBRARY_ROOT"); v != "" {
		cfg.Library.Root = v
	}
	if v := os.Getenv("SP_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("SP_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("SP_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
