package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/cypher"
	"github.com/Ramsey-B/fern/pkg/graph/graphtest"
	"github.com/Ramsey-B/fern/pkg/interchange"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(t *testing.T, dir string) {
	t.Helper()
	people, err := bulk.NewNodeSet([]string{"Person"}, []string{"email"})
	require.NoError(t, err)
	people.AddNode(props.Properties{"email": "a@x.io"})
	people.AddNode(props.Properties{"email": "b@x.io"})
	people.AddNode(props.Properties{"email": "c@x.io"})
	require.NoError(t, interchange.WriteNodeSet(dir, "people", people))

	companies, err := bulk.NewNodeSet([]string{"Company"}, []string{"name"})
	require.NoError(t, err)
	companies.AddNode(props.Properties{"name": "Acme"})
	require.NoError(t, interchange.WriteNodeSet(dir, "companies", companies))

	worksAt, err := bulk.NewRelationshipSet(cypher.RelationshipSchema{
		Type:        "WORKS_AT",
		StartLabels: []string{"Person"},
		StartKeys:   []string{"email"},
		EndLabels:   []string{"Company"},
		EndKeys:     []string{"name"},
	})
	require.NoError(t, err)
	_, err = worksAt.AddRelationship(props.Properties{"email": "a@x.io"}, props.Properties{"name": "Acme"}, nil)
	require.NoError(t, err)
	require.NoError(t, interchange.WriteRelationshipSet(dir, "works_at", worksAt))
}

func testApp(t *testing.T, out *bytes.Buffer) *app {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.BatchSize = 2
	return &app{
		cfg:    cfg,
		logger: ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}),
		out:    out,
	}
}

func TestLoad_WritesNodesBeforeRelationships(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir)
	a := testApp(t, &bytes.Buffer{})
	rec := graphtest.NewRecorder()

	_, err := a.load(context.Background(), rec, dir, []string{"works_at", "people", "companies"}, bulk.ModeMerge, false)
	require.NoError(t, err)

	writes := rec.Writes()
	require.Len(t, writes, 4)
	assert.Contains(t, writes[3].Query, "WORKS_AT")
	for _, w := range writes[:3] {
		assert.NotContains(t, w.Query, "WORKS_AT")
	}
}

func TestLoad_Index(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir)
	a := testApp(t, &bytes.Buffer{})
	rec := graphtest.NewRecorder()

	_, err := a.load(context.Background(), rec, dir, []string{"people"}, bulk.ModeCreate, true)
	require.NoError(t, err)

	writes := rec.Writes()
	require.Len(t, writes, 3)
	assert.Contains(t, writes[0].Query, "CREATE INDEX")
	assert.Contains(t, writes[1].Query, "CREATE (n:Person)")
}

func TestLoad_MissingContainer(t *testing.T) {
	a := testApp(t, &bytes.Buffer{})
	_, err := a.load(context.Background(), graphtest.NewRecorder(), t.TempDir(), []string{"nope"}, bulk.ModeMerge, false)
	assert.Error(t, err)
}

func TestStatementsCommand(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir)
	t.Setenv("BATCH_SIZE", "2")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"statements", dir, "people", "--mode", "create"})
	require.NoError(t, cmd.Execute())

	var rows []int
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var stmt cypher.Statement
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &stmt))
		assert.True(t, strings.HasPrefix(stmt.Query, "UNWIND $props"))
		rows = append(rows, stmt.Rows())
	}
	assert.Equal(t, []int{2, 1}, rows)
}

func TestStatementsCommand_BadMode(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"statements", dir, "people", "--mode", "upsert"})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "fern v0.1.0 (dev)\n", out.String())
}

func TestLoad_WritesMetricsFile(t *testing.T) {
	dir := t.TempDir()
	stage(t, dir)
	a := testApp(t, &bytes.Buffer{})
	a.cfg.MetricsFile = filepath.Join(t.TempDir(), "fern.prom")

	_, err := a.load(context.Background(), graphtest.NewRecorder(), dir, []string{"people"}, bulk.ModeMerge, false)
	require.NoError(t, err)
	a.writeMetrics()

	data, err := os.ReadFile(a.cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fern_writer_batches_total")
	assert.Contains(t, string(data), "fern_writer_batch_duration_seconds")
}

func TestSetupTracing(t *testing.T) {
	ctx := context.Background()
	a := testApp(t, &bytes.Buffer{})

	shutdown, err := a.setupTracing(ctx)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))

	a.cfg.TracingEnabled = true
	a.cfg.TracingExporter = "otlp"
	a.cfg.OTLPProtocol = "http"
	a.cfg.OTLPEndpoint = "localhost:4318"
	shutdown, err = a.setupTracing(ctx)
	require.NoError(t, err)
	defer tracing.SetTracer(nil)

	_, span := tracing.StartSpan(ctx, "test")
	span.End()
	assert.NotNil(t, shutdown)
}
