package config

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/cypher"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string `env:"APP_NAME" envDefault:"fern"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	PrettyLogs bool   `env:"PRETTY_LOGS" envDefault:"false"`

	// Graph Database
	GraphDBURI      string `env:"GRAPH_DB_URI" envDefault:""`
	GraphDBHost     string `env:"GRAPH_DB_HOST" envDefault:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" envDefault:"7687" validate:"min=1,max=65535"`
	GraphDBUser     string `env:"GRAPH_DB_USER" envDefault:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" envDefault:""`
	GraphDBDatabase string `env:"GRAPH_DB_DATABASE" envDefault:""`

	// Loading
	BatchSize       int    `env:"BATCH_SIZE" envDefault:"10000" validate:"min=1"`
	LoadConcurrency int    `env:"LOAD_CONCURRENCY" envDefault:"4" validate:"min=1"`
	AppendPolicy    string `env:"APPEND_POLICY" envDefault:"all" validate:"oneof=all distinct"`

	// Observability
	TracingEnabled  bool              `env:"TRACING_ENABLED" envDefault:"false"`
	TracingExporter string            `env:"TRACING_EXPORTER" envDefault:"log" validate:"oneof=log otlp"`
	OTLPEndpoint    string            `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTLPProtocol    string            `env:"OTEL_EXPORTER_OTLP_PROTOCOL" envDefault:"grpc" validate:"oneof=grpc http"`
	OTLPInsecure    bool              `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTLPCompression string            `env:"OTEL_EXPORTER_OTLP_COMPRESSION" envDefault:"none" validate:"oneof=none gzip"`
	OTLPHeaders     map[string]string `env:"OTEL_EXPORTER_OTLP_HEADERS" envKeyValSeparator:"="`
	OTLPTimeout     time.Duration     `env:"OTEL_EXPORTER_OTLP_TIMEOUT" envDefault:"10s"`
	MetricsFile     string            `env:"METRICS_FILE" envDefault:""`
}

// Load reads an optional .env file, then parses and validates the environment.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// GraphConfig returns the connection settings for graph.NewClient.
func (c *Config) GraphConfig() graph.Config {
	return graph.Config{
		URI:      c.GraphDBURI,
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
		Database: c.GraphDBDatabase,
	}
}

// Policy returns the parsed APPEND_POLICY.
func (c *Config) Policy() cypher.AppendPolicy {
	p, _ := cypher.ParseAppendPolicy(c.AppendPolicy)
	return p
}

// OTLPConfig returns the exporter settings used when TRACING_EXPORTER is otlp.
func (c *Config) OTLPConfig() tracing.OTLPConfig {
	return tracing.OTLPConfig{
		Endpoint:    c.OTLPEndpoint,
		Protocol:    c.OTLPProtocol,
		Insecure:    c.OTLPInsecure,
		Compression: c.OTLPCompression,
		Headers:     c.OTLPHeaders,
		Timeout:     c.OTLPTimeout,
	}
}
