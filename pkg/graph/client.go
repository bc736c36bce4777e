// Package graph provides the Neo4j/Memgraph client that executes generated statements
// over the Bolt protocol.
package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
)

// Client wraps the Neo4j driver for Memgraph compatibility
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

var _ Executor = (*Client)(nil)

// Config holds graph database configuration. URI takes precedence over Host and Port.
type Config struct {
	URI      string
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Target returns the bolt URI the client connects to.
func (c Config) Target() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("bolt://%s:%d", c.Host, c.Port)
}

// NewClient creates a new graph database client
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.Target(), auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver: %w", err)
	}

	return &Client{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// Close closes the driver connection
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity checks if the database is reachable
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) session(ctx context.Context, accessMode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   accessMode,
		DatabaseName: c.database,
	})
}

// Write runs stmt in a managed write transaction and returns its update counters.
func (c *Client) Write(ctx context.Context, stmt cypher.Statement) (Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Write", attribute.Int("rows", stmt.Rows()))
	defer span.End()

	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return toSummary(summary.Counters()), nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.WithContext(ctx).WithError(err).WithField("rows", stmt.Rows()).Error("Failed to execute graph write")
		return Summary{}, ferrors.NewStoreExecutionError("write", err)
	}

	return result.(Summary), nil
}

// Read runs stmt in a managed read transaction and collects every record.
func (c *Client) Read(ctx context.Context, stmt cypher.Statement) ([]Record, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Read")
	defer span.End()

	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err != nil {
			return nil, err
		}

		records := make([]Record, 0)
		for res.Next(ctx) {
			record := res.Record()
			row := make(Record, len(record.Keys))
			for i, key := range record.Keys {
				row[key] = extractValue(record.Values[i])
			}
			records = append(records, row)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.WithContext(ctx).WithError(err).Error("Failed to execute graph read")
		return nil, ferrors.NewStoreExecutionError("read", err)
	}

	return result.([]Record), nil
}

func toSummary(counters neo4j.Counters) Summary {
	return Summary{
		NodesCreated:         counters.NodesCreated(),
		NodesDeleted:         counters.NodesDeleted(),
		RelationshipsCreated: counters.RelationshipsCreated(),
		RelationshipsDeleted: counters.RelationshipsDeleted(),
		PropertiesSet:        counters.PropertiesSet(),
		LabelsAdded:          counters.LabelsAdded(),
		IndexesAdded:         counters.IndexesAdded(),
	}
}

// extractValue converts neo4j types to the package's own types
func extractValue(val any) any {
	switch v := val.(type) {
	case neo4j.Node:
		return Node{ElementID: v.ElementId, Labels: v.Labels, Properties: v.Props}
	case neo4j.Relationship:
		return Rel{
			ElementID:      v.ElementId,
			Type:           v.Type,
			StartElementID: v.StartElementId,
			EndElementID:   v.EndElementId,
			Properties:     v.Props,
		}
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = extractValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = extractValue(item)
		}
		return out
	default:
		return v
	}
}
