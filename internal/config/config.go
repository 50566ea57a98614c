// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (RAGLINE_* overrides)
//  2. Config file (~/.ragline/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive fields (the PostgreSQL password) are masked in MarshalJSON
// and String so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidOllamaHost indicates the Ollama host is empty or malformed.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidModel indicates a model name is empty.
	ErrInvalidModel = errors.New("invalid model name")

	// ErrInvalidQdrantHost indicates the Qdrant host is empty.
	ErrInvalidQdrantHost = errors.New("invalid Qdrant host")

	// ErrInvalidQdrantPort indicates the Qdrant port is out of range.
	ErrInvalidQdrantPort = errors.New("invalid Qdrant port")

	// ErrInvalidCollection indicates the collection name is empty.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidChunking indicates the chunk size/overlap pair is unusable.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrInvalidThreshold indicates the relevance threshold is out of [0, 1].
	ErrInvalidThreshold = errors.New("invalid relevance threshold")

	// ErrInvalidSearchLimit indicates the search limit is not positive.
	ErrInvalidSearchLimit = errors.New("invalid search limit")

	// ErrInvalidPostgres indicates the PostgreSQL settings are incomplete.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// Config stores application configuration.
type Config struct {
	// Ollama configuration
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`
	ChatModel  string `mapstructure:"chat_model" json:"chat_model"`
	EmbedModel string `mapstructure:"embed_model" json:"embed_model"`

	// Qdrant configuration
	QdrantHost       string `mapstructure:"qdrant_host" json:"qdrant_host"`
	QdrantPort       int    `mapstructure:"qdrant_port" json:"qdrant_port"`
	QdrantCollection string `mapstructure:"qdrant_collection" json:"qdrant_collection"`

	// Pipeline tuning
	ChunkSize          int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap       int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	RelevanceThreshold float32 `mapstructure:"relevance_threshold" json:"relevance_threshold"`
	SearchLimit        int     `mapstructure:"search_limit" json:"search_limit"`
	HistoryLimit       int     `mapstructure:"history_limit" json:"history_limit"`

	// PostgreSQL configuration (conversation log)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ServerAddr        string  `mapstructure:"server_addr" json:"server_addr"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`

	// Observability configuration
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	LogLevel     string `mapstructure:"log_level" json:"log_level"`
	LogJSON      bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration from defaults, an optional config file, and
// RAGLINE_* environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".ragline"))
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("RAGLINE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("chat_model", "gemma3:latest")
	v.SetDefault("embed_model", "nomic-embed-text:latest")

	v.SetDefault("qdrant_host", "localhost")
	v.SetDefault("qdrant_port", 6334)
	v.SetDefault("qdrant_collection", "docs")

	v.SetDefault("chunk_size", 512)
	v.SetDefault("chunk_overlap", 50)
	v.SetDefault("relevance_threshold", 0.7)
	v.SetDefault("search_limit", 5)
	v.SetDefault("history_limit", 5)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "ragline")
	v.SetDefault("postgres_password", "ragline_dev_password")
	v.SetDefault("postgres_db_name", "ragline")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("requests_per_second", 0)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "ragline")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks the configuration, failing fast with sentinel errors
// that callers can test with errors.Is.
func (c *Config) Validate() error {
	if c.OllamaHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidOllamaHost)
	}
	if _, err := url.Parse(c.OllamaHost); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOllamaHost, err)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("%w: chat model is empty", ErrInvalidModel)
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("%w: embed model is empty", ErrInvalidModel)
	}

	if c.QdrantHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidQdrantHost)
	}
	if c.QdrantPort < 1 || c.QdrantPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidQdrantPort, c.QdrantPort)
	}
	if c.QdrantCollection == "" {
		return fmt.Errorf("%w: collection is empty", ErrInvalidCollection)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d with size %d", ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RelevanceThreshold < 0 || c.RelevanceThreshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.RelevanceThreshold)
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidSearchLimit, c.SearchLimit)
	}

	if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDBName == "" {
		return fmt.Errorf("%w: host, user, and database name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidPostgres, c.PostgresPort)
	}

	return nil
}

// PostgresURL builds the connection URL for pgx and golang-migrate.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue replaces sensitive values in serialized output.
const maskedValue = "********"

// MarshalJSON masks sensitive fields so the config can be logged.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	if a.PostgresPassword != "" {
		a.PostgresPassword = maskedValue
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
