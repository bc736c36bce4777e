package bulk

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/mergekey"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/google/uuid"
)

const (
	SideStart = "start"
	SideEnd   = "end"
)

// MatchSource is implemented by values that can identify a relationship endpoint,
// such as OGM nodes.
type MatchSource interface {
	MatchProperties() props.Properties
}

// Relationship is one staged relationship. Start and End only hold the declared match keys.
type Relationship struct {
	Start      props.Properties `json:"start"`
	End        props.Properties `json:"end"`
	Properties props.Properties `json:"properties"`
}

// RelationshipSet is an ordered collection of relationships of one type between nodes
// matched by fixed label and key sets. A RelationshipSet is not safe for concurrent use.
type RelationshipSet struct {
	ID          uuid.UUID
	RelType     string
	StartLabels []string
	StartKeys   []string
	EndLabels   []string
	EndKeys     []string

	opts  options
	rels  []Relationship
	index *mergekey.Index
}

// NewRelationshipSet creates an empty RelationshipSet for schema.
func NewRelationshipSet(schema cypher.RelationshipSchema, opts ...Option) (*RelationshipSet, error) {
	if schema.Type == "" {
		return nil, ferrors.NewConfigurationError("relationship type is required").AddField("rel_type")
	}
	if len(schema.StartKeys) == 0 {
		return nil, ferrors.NewConfigurationError("at least one start node match key is required").AddField("start_keys")
	}
	if len(schema.EndKeys) == 0 {
		return nil, ferrors.NewConfigurationError("at least one end node match key is required").AddField("end_keys")
	}
	for field, names := range map[string][]string{
		"start_labels": schema.StartLabels,
		"start_keys":   schema.StartKeys,
		"end_labels":   schema.EndLabels,
		"end_keys":     schema.EndKeys,
	} {
		if err := checkNames(field, names); err != nil {
			return nil, err
		}
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	rs := &RelationshipSet{
		ID:          uuid.New(),
		RelType:     schema.Type,
		StartLabels: append([]string(nil), schema.StartLabels...),
		StartKeys:   append([]string(nil), schema.StartKeys...),
		EndLabels:   append([]string(nil), schema.EndLabels...),
		EndKeys:     append([]string(nil), schema.EndKeys...),
		opts:        o,
	}
	if o.deduplicate {
		rs.index = mergekey.New()
	}
	return rs, nil
}

// AddRelationship stages a relationship between the nodes matched by start and end.
// Both matchers must carry every declared key. When deduplication is enabled and the
// endpoint tuple was already staged, the relationship is dropped and false is returned.
func (s *RelationshipSet) AddRelationship(start, end, relProps props.Properties) (bool, error) {
	return s.add(start, end, relProps, false)
}

// ForceAddRelationship stages the relationship even when its endpoint tuple was already staged.
func (s *RelationshipSet) ForceAddRelationship(start, end, relProps props.Properties) error {
	_, err := s.add(start, end, relProps, true)
	return err
}

// Add stages a relationship whose endpoints are property maps, MatchSources or PropertySources.
func (s *RelationshipSet) Add(start, end any, relProps props.Properties) (bool, error) {
	startProps, err := toMatchProperties(start)
	if err != nil {
		return false, err
	}
	endProps, err := toMatchProperties(end)
	if err != nil {
		return false, err
	}
	return s.add(startProps, endProps, relProps, false)
}

func toMatchProperties(v any) (props.Properties, error) {
	if m, ok := v.(MatchSource); ok {
		return m.MatchProperties(), nil
	}
	return toProperties(v)
}

func (s *RelationshipSet) add(start, end, relProps props.Properties, force bool) (bool, error) {
	startValues, missing := props.Project(start, s.StartKeys)
	if len(missing) > 0 {
		return false, ferrors.NewSchemaError(SideStart, missing[0])
	}
	endValues, missing := props.Project(end, s.EndKeys)
	if len(missing) > 0 {
		return false, ferrors.NewSchemaError(SideEnd, missing[0])
	}

	if s.index != nil {
		tuple := append(startValues, endValues...)
		if force {
			s.index.Insert(tuple)
		} else if !s.index.TryInsert(tuple) {
			return false, nil
		}
	}

	s.rels = append(s.rels, Relationship{
		Start:      props.Select(start, s.StartKeys),
		End:        props.Select(end, s.EndKeys),
		Properties: props.Merge(s.opts.defaultProps, relProps),
	})
	return true, nil
}

// Len returns the number of staged relationships.
func (s *RelationshipSet) Len() int {
	return len(s.rels)
}

// Relationships returns the staged relationships in insertion order.
func (s *RelationshipSet) Relationships() []Relationship {
	return append([]Relationship(nil), s.rels...)
}

func (s *RelationshipSet) DefaultProps() props.Properties {
	return props.Clone(s.opts.defaultProps)
}

func (s *RelationshipSet) Preserve() []string {
	return s.opts.preserve
}

func (s *RelationshipSet) AppendProps() []string {
	return s.opts.appendProps
}

// BatchSize returns the container's own batch size, or 0 when it defers to the writer.
func (s *RelationshipSet) BatchSize() int {
	return s.opts.batchSize
}

// Deduplicated reports whether the container rejects repeated endpoint tuples.
func (s *RelationshipSet) Deduplicated() bool {
	return s.index != nil
}

// Schema returns the statement schema of the container.
func (s *RelationshipSet) Schema() cypher.RelationshipSchema {
	return cypher.RelationshipSchema{
		Type:        s.RelType,
		StartLabels: s.StartLabels,
		EndLabels:   s.EndLabels,
		StartKeys:   s.StartKeys,
		EndKeys:     s.EndKeys,
	}
}

func (s *RelationshipSet) rows() []cypher.RelationshipRow {
	rows := make([]cypher.RelationshipRow, len(s.rels))
	for i, r := range s.rels {
		rows[i] = cypher.RelationshipRow{Start: r.Start, End: r.End, Properties: r.Properties}
	}
	return rows
}

// CreateStatements returns the batched CREATE statements. batchSize is used when the
// container has no batch size of its own.
func (s *RelationshipSet) CreateStatements(batchSize int) ([]cypher.Statement, error) {
	return cypher.CreateRelationships(s.Schema(), s.rows(), s.opts.resolveBatchSize(batchSize))
}

// MergeStatements returns the batched MERGE statements.
func (s *RelationshipSet) MergeStatements(batchSize int) ([]cypher.Statement, error) {
	return cypher.MergeRelationships(s.Schema(), s.opts.mergeOptions(), s.rows(), s.opts.resolveBatchSize(batchSize))
}

// Statements returns the statements for mode.
func (s *RelationshipSet) Statements(mode Mode, batchSize int) ([]cypher.Statement, error) {
	if mode == ModeMerge {
		return s.MergeStatements(batchSize)
	}
	return s.CreateStatements(batchSize)
}

// IndexStatements returns one index per start and end label/key pair.
func (s *RelationshipSet) IndexStatements() []cypher.Statement {
	return cypher.RelationshipIndexes(s.Schema())
}

// AllPropertyKeys returns the sorted union of relationship property keys.
func (s *RelationshipSet) AllPropertyKeys() []string {
	union := make(props.Properties)
	for _, r := range s.rels {
		for k := range r.Properties {
			union[k] = nil
		}
	}
	return props.Keys(union)
}

// Metadata describes the container's schema and options.
func (s *RelationshipSet) Metadata() Metadata {
	m := Metadata{
		Kind:        KindRelationships,
		ID:          s.ID.String(),
		RelType:     s.RelType,
		StartLabels: s.StartLabels,
		StartKeys:   s.StartKeys,
		EndLabels:   s.EndLabels,
		EndKeys:     s.EndKeys,
	}
	s.opts.metadata(&m)
	return m
}

// ObjectFileName returns a file name that identifies the container, e.g.
// "relationships_Person_WORKS_AT_Company_<id>.csv".
func (s *RelationshipSet) ObjectFileName(suffix string) string {
	parts := []string{
		KindRelationships,
		strings.Join(s.StartLabels, "_"),
		s.RelType,
		strings.Join(s.EndLabels, "_"),
		s.ID.String(),
	}
	return strings.Join(parts, "_") + suffix
}

func (s *RelationshipSet) String() string {
	return fmt.Sprintf("RelationshipSet(%s)-[%s]->(%s)", strings.Join(s.StartLabels, ","), s.RelType, strings.Join(s.EndLabels, ","))
}
