package graph

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/cypher"
)

// Executor runs generated statements against a graph store. Implementations must not
// retry failed statements.
type Executor interface {
	Write(ctx context.Context, stmt cypher.Statement) (Summary, error)
	Read(ctx context.Context, stmt cypher.Statement) ([]Record, error)
}

// Summary holds the update counters reported for one statement.
type Summary struct {
	NodesCreated         int `json:"nodes_created"`
	NodesDeleted         int `json:"nodes_deleted"`
	RelationshipsCreated int `json:"relationships_created"`
	RelationshipsDeleted int `json:"relationships_deleted"`
	PropertiesSet        int `json:"properties_set"`
	LabelsAdded          int `json:"labels_added"`
	IndexesAdded         int `json:"indexes_added"`
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.NodesCreated += other.NodesCreated
	s.NodesDeleted += other.NodesDeleted
	s.RelationshipsCreated += other.RelationshipsCreated
	s.RelationshipsDeleted += other.RelationshipsDeleted
	s.PropertiesSet += other.PropertiesSet
	s.LabelsAdded += other.LabelsAdded
	s.IndexesAdded += other.IndexesAdded
}

// Record is one result row keyed by the returned column names. Store nodes and
// relationships are converted to Node and Rel values.
type Record map[string]any

// Node is a node read back from the store.
type Node struct {
	ElementID  string         `json:"element_id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Rel is a relationship read back from the store.
type Rel struct {
	ElementID      string         `json:"element_id"`
	Type           string         `json:"type"`
	StartElementID string         `json:"start_element_id"`
	EndElementID   string         `json:"end_element_id"`
	Properties     map[string]any `json:"properties"`
}

// Node returns the column key as a Node.
func (r Record) Node(key string) (Node, bool) {
	n, ok := r[key].(Node)
	return n, ok
}

// Int returns the column key as an int64.
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}
