package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	CompressionNone = "none"
	CompressionGzip = "gzip"
)

// OTLPConfig holds the collector settings for NewOTLPExporter.
type OTLPConfig struct {
	Endpoint    string
	Protocol    string
	Insecure    bool
	Compression string
	Headers     map[string]string
	Timeout     time.Duration
}

// DefaultOTLPConfig returns settings for a plaintext gRPC collector on localhost.
func DefaultOTLPConfig() OTLPConfig {
	return OTLPConfig{
		Endpoint:    "localhost:4317",
		Protocol:    ProtocolGRPC,
		Insecure:    true,
		Compression: CompressionNone,
		Timeout:     10 * time.Second,
	}
}

// NewOTLPExporter creates a span exporter for the configured collector. Neither client
// dials on creation, so an unreachable collector only surfaces when spans are flushed.
func NewOTLPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	client, err := newOTLPClient(config)
	if err != nil {
		return nil, err
	}
	return otlptrace.New(ctx, client)
}

func newOTLPClient(config OTLPConfig) (otlptrace.Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}
	switch config.Compression {
	case "", CompressionNone, CompressionGzip:
	default:
		return nil, fmt.Errorf("unsupported OTLP compression: %s (use 'none' or 'gzip')", config.Compression)
	}

	switch config.Protocol {
	case ProtocolGRPC:
		return grpcClient(config), nil
	case ProtocolHTTP:
		return httpClient(config), nil
	}
	return nil, fmt.Errorf("unsupported OTLP protocol: %s (use 'grpc' or 'http')", config.Protocol)
}

func grpcClient(config OTLPConfig) otlptrace.Client {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(config.Timeout),
		otlptracegrpc.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	if config.Compression == CompressionGzip {
		opts = append(opts, otlptracegrpc.WithCompressor(CompressionGzip))
	}
	return otlptracegrpc.NewClient(opts...)
}

func httpClient(config OTLPConfig) otlptrace.Client {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
		otlptracehttp.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if config.Compression == CompressionGzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return otlptracehttp.NewClient(opts...)
}
