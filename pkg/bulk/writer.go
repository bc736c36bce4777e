package bulk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Writer hands the statements generated from containers to a graph.Executor.
// Failed statements are neither retried nor rolled back.
type Writer struct {
	exec        graph.Executor
	logger      ectologger.Logger
	batchSize   int
	concurrency int
}

type WriterOption func(*Writer)

// WithWriterBatchSize sets the batch size used for containers without their own.
func WithWriterBatchSize(n int) WriterOption {
	return func(w *Writer) {
		w.batchSize = n
	}
}

// WithConcurrency bounds how many node sets LoadGroup writes at the same time.
func WithConcurrency(n int) WriterOption {
	return func(w *Writer) {
		w.concurrency = n
	}
}

// NewWriter creates a new batch writer
func NewWriter(exec graph.Executor, logger ectologger.Logger, opts ...WriterOption) *Writer {
	w := &Writer{
		exec:        exec,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	return w
}

// Create writes every staged entity of d with CREATE statements.
func (w *Writer) Create(ctx context.Context, d Dataset) (graph.Summary, error) {
	return w.Write(ctx, d, ModeCreate)
}

// Merge writes every staged entity of d with MERGE statements.
func (w *Writer) Merge(ctx context.Context, d Dataset) (graph.Summary, error) {
	return w.Write(ctx, d, ModeMerge)
}

// Write generates the statements for d and executes them in order, stopping at the
// first failure.
func (w *Writer) Write(ctx context.Context, d Dataset, mode Mode) (graph.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "bulk.Writer.Write",
		attribute.String("dataset", d.String()),
		attribute.String("mode", mode.String()),
		attribute.Int("entities", d.Len()),
	)
	defer span.End()

	log := w.logger.WithContext(ctx).WithFields(map[string]any{
		"dataset":  d.String(),
		"mode":     mode.String(),
		"entities": d.Len(),
	})

	metrics.ContainersInFlight.Inc()
	defer metrics.ContainersInFlight.Dec()
	kind := datasetKind(d)

	var total graph.Summary
	statements, err := d.Statements(mode, w.batchSize)
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to generate statements")
		return total, err
	}

	for i, stmt := range statements {
		start := time.Now()
		summary, err := w.exec.Write(ctx, stmt)
		metrics.BatchDuration.WithLabelValues(kind, mode.String()).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(kind, mode.String(), metrics.StatusError).Inc()
			err = storeError(mode.String(), i, err)
			tracing.RecordError(span, err)
			log.WithError(err).WithField("batch", i).Error("Failed to write batch")
			return total, err
		}
		metrics.BatchesTotal.WithLabelValues(kind, mode.String(), metrics.StatusSuccess).Inc()
		metrics.RowsWritten.WithLabelValues(kind, mode.String()).Add(float64(stmt.Rows()))
		total.Add(summary)
		log.WithFields(map[string]any{
			"batch":   i + 1,
			"batches": len(statements),
			"rows":    stmt.Rows(),
		}).Debug("Wrote batch")
	}

	log.Infof("Wrote %d entities in %d batches", d.Len(), len(statements))
	return total, nil
}

// CreateIndex runs the index statements of d.
func (w *Writer) CreateIndex(ctx context.Context, d Dataset) error {
	ctx, span := tracing.StartSpan(ctx, "bulk.Writer.CreateIndex", attribute.String("dataset", d.String()))
	defer span.End()

	for i, stmt := range d.IndexStatements() {
		if _, err := w.exec.Write(ctx, stmt); err != nil {
			err = storeError("index", i, err)
			tracing.RecordError(span, err)
			w.logger.WithContext(ctx).WithError(err).WithField("dataset", d.String()).Error("Failed to create index")
			return err
		}
	}
	return nil
}

// LoadGroup writes every node set of g, up to the writer's concurrency at a time, and
// then every relationship set in order. Nothing after a failure is written.
func (w *Writer) LoadGroup(ctx context.Context, g *Group, mode Mode) (graph.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "bulk.Writer.LoadGroup", attribute.String("mode", mode.String()))
	defer span.End()

	var (
		mu    sync.Mutex
		total graph.Summary
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)
	for _, ns := range g.NodeSets() {
		eg.Go(func() error {
			summary, err := w.Write(egCtx, ns, mode)
			mu.Lock()
			total.Add(summary)
			mu.Unlock()
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		tracing.RecordError(span, err)
		return total, err
	}

	for _, rs := range g.RelationshipSets() {
		summary, err := w.Write(ctx, rs, mode)
		total.Add(summary)
		if err != nil {
			tracing.RecordError(span, err)
			return total, err
		}
	}
	return total, nil
}

// IndexGroup creates the indexes of every container in g.
func (w *Writer) IndexGroup(ctx context.Context, g *Group) error {
	for _, d := range g.Datasets() {
		if err := w.CreateIndex(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func datasetKind(d Dataset) string {
	if _, ok := d.(*RelationshipSet); ok {
		return "relationships"
	}
	return "nodes"
}

// storeError attaches the batch position to a store failure.
func storeError(operation string, batch int, err error) error {
	var storeErr *ferrors.StoreExecutionError
	if errors.As(err, &storeErr) {
		return storeErr.AddBatch(batch)
	}
	return ferrors.NewStoreExecutionError(operation, err).AddBatch(batch)
}
