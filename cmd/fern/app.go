package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/interchange"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	out    io.Writer
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{"app": cfg.AppName}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

// setupTracing installs a tracer provider that either logs finished spans or ships
// them to an OTLP collector. The returned function flushes and stops it.
func (a *app) setupTracing(ctx context.Context) (func(context.Context) error, error) {
	if !a.cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter = tracing.NewLogExporter(a.logger)
	if a.cfg.TracingExporter == "otlp" {
		otlpExporter, err := tracing.NewOTLPExporter(ctx, a.cfg.OTLPConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlpExporter
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(a.cfg.AppName))
	return tp.Shutdown, nil
}

// writeMetrics dumps the writer metrics to METRICS_FILE when it is set.
func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.WithError(err).WithField("path", a.cfg.MetricsFile).Warn("Failed to write metrics")
	}
}

func (a *app) containerDefaults() []bulk.Option {
	return []bulk.Option{bulk.WithAppendPolicy(a.cfg.Policy())}
}

func (a *app) readGroup(dir string, names []string) (*bulk.Group, error) {
	g, err := bulk.NewGroup()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		d, err := interchange.Read(dir, name, a.containerDefaults()...)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := g.Add(d); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// load writes the named containers of dir through exec, nodes before relationships.
func (a *app) load(ctx context.Context, exec graph.Executor, dir string, names []string, mode bulk.Mode, index bool) (graph.Summary, error) {
	g, err := a.readGroup(dir, names)
	if err != nil {
		return graph.Summary{}, err
	}

	w := bulk.NewWriter(exec, a.logger,
		bulk.WithWriterBatchSize(a.cfg.BatchSize),
		bulk.WithConcurrency(a.cfg.LoadConcurrency),
	)
	if index {
		if err := w.IndexGroup(ctx, g); err != nil {
			return graph.Summary{}, err
		}
	}

	summary, err := w.LoadGroup(ctx, g, mode)
	if err != nil {
		return summary, err
	}

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"containers":            g.Len(),
		"nodes_created":         summary.NodesCreated,
		"relationships_created": summary.RelationshipsCreated,
		"properties_set":        summary.PropertiesSet,
	}).Info("Load complete")
	return summary, nil
}

// printStatements writes the statements generated for one container, one JSON document
// per statement.
func (a *app) printStatements(dir, name string, mode bulk.Mode, index bool) error {
	d, err := interchange.Read(dir, name, a.containerDefaults()...)
	if err != nil {
		return err
	}

	statements, err := d.Statements(mode, a.cfg.BatchSize)
	if err != nil {
		return err
	}
	if index {
		statements = append(d.IndexStatements(), statements...)
	}

	enc := json.NewEncoder(a.out)
	for _, stmt := range statements {
		if err := enc.Encode(stmt); err != nil {
			return fmt.Errorf("failed to encode statement: %w", err)
		}
	}
	return nil
}
