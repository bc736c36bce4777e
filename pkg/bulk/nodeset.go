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

// PropertySource is implemented by values that can be staged as a node, such as OGM nodes.
type PropertySource interface {
	Properties() props.Properties
}

// NodeSet is an ordered collection of nodes that share labels and merge keys.
// A NodeSet is not safe for concurrent use.
type NodeSet struct {
	ID        uuid.UUID
	Labels    []string
	MergeKeys []string

	opts  options
	nodes []props.Properties
	index *mergekey.Index
}

// NewNodeSet creates an empty NodeSet. Labels must not be empty; merge keys are only
// required for deduplication, merge writes and index creation.
func NewNodeSet(labels, mergeKeys []string, opts ...Option) (*NodeSet, error) {
	if len(labels) == 0 {
		return nil, ferrors.NewConfigurationError("at least one label is required").AddField("labels")
	}
	if err := checkNames("labels", labels); err != nil {
		return nil, err
	}
	if err := checkNames("merge_keys", mergeKeys); err != nil {
		return nil, err
	}

	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.deduplicate && len(mergeKeys) == 0 {
		return nil, ferrors.NewConfigurationError("deduplication requires merge keys").AddField("merge_keys")
	}

	ns := &NodeSet{
		ID:        uuid.New(),
		Labels:    append([]string(nil), labels...),
		MergeKeys: append([]string(nil), mergeKeys...),
		opts:      o,
	}
	if o.deduplicate {
		ns.index = mergekey.New()
	}
	return ns, nil
}

// AddNode stages p merged over the default properties. When deduplication is enabled
// and the merge-key tuple was already staged, the node is dropped and false is returned.
func (s *NodeSet) AddNode(p props.Properties) bool {
	return s.add(p, false)
}

// ForceAddNode stages p even if its merge-key tuple was already staged. The index is
// still updated so later duplicates are caught.
func (s *NodeSet) ForceAddNode(p props.Properties) {
	s.add(p, true)
}

// AddNodes stages every element of ps and returns how many were accepted.
func (s *NodeSet) AddNodes(ps []props.Properties) int {
	added := 0
	for _, p := range ps {
		if s.add(p, false) {
			added++
		}
	}
	return added
}

// Add stages a node from a property map or a PropertySource. It returns false when
// deduplication dropped the node.
func (s *NodeSet) Add(v any) (bool, error) {
	p, err := toProperties(v)
	if err != nil {
		return false, err
	}
	return s.add(p, false), nil
}

func (s *NodeSet) add(p props.Properties, force bool) bool {
	node := props.Merge(s.opts.defaultProps, p)
	if s.index != nil {
		tuple, _ := props.Project(node, s.MergeKeys)
		if force {
			s.index.Insert(tuple)
		} else if !s.index.TryInsert(tuple) {
			return false
		}
	}
	s.nodes = append(s.nodes, node)
	return true
}

func toProperties(v any) (props.Properties, error) {
	switch t := v.(type) {
	case props.Properties:
		return t, nil
	case map[string]any:
		return props.Properties(t), nil
	case PropertySource:
		return t.Properties(), nil
	case nil:
		return nil, ferrors.NewDataError("cannot stage a nil value")
	}
	return nil, ferrors.NewDataErrorf("cannot stage value of type %T", v)
}

// Len returns the number of staged nodes.
func (s *NodeSet) Len() int {
	return len(s.nodes)
}

// Nodes returns the staged nodes in insertion order. The slice is a copy; the maps are shared.
func (s *NodeSet) Nodes() []props.Properties {
	return append([]props.Properties(nil), s.nodes...)
}

func (s *NodeSet) DefaultProps() props.Properties {
	return props.Clone(s.opts.defaultProps)
}

func (s *NodeSet) Preserve() []string {
	return s.opts.preserve
}

func (s *NodeSet) AppendProps() []string {
	return s.opts.appendProps
}

func (s *NodeSet) AdditionalLabels() []string {
	return s.opts.additionalLabels
}

// BatchSize returns the container's own batch size, or 0 when it defers to the writer.
func (s *NodeSet) BatchSize() int {
	return s.opts.batchSize
}

// Deduplicated reports whether the container rejects repeated merge-key tuples.
func (s *NodeSet) Deduplicated() bool {
	return s.index != nil
}

// Schema returns the statement schema of the container.
func (s *NodeSet) Schema() cypher.NodeSchema {
	return cypher.NodeSchema{
		Labels:           s.Labels,
		MergeKeys:        s.MergeKeys,
		AdditionalLabels: s.opts.additionalLabels,
	}
}

// CreateStatements returns the batched CREATE statements. batchSize is used when the
// container has no batch size of its own.
func (s *NodeSet) CreateStatements(batchSize int) []cypher.Statement {
	return cypher.CreateNodes(s.Schema(), s.nodes, s.opts.resolveBatchSize(batchSize))
}

// MergeStatements returns the batched MERGE statements.
func (s *NodeSet) MergeStatements(batchSize int) ([]cypher.Statement, error) {
	return cypher.MergeNodes(s.Schema(), s.opts.mergeOptions(), s.nodes, s.opts.resolveBatchSize(batchSize))
}

// Statements returns the statements for mode.
func (s *NodeSet) Statements(mode Mode, batchSize int) ([]cypher.Statement, error) {
	if mode == ModeMerge {
		return s.MergeStatements(batchSize)
	}
	return s.CreateStatements(batchSize), nil
}

// IndexStatements returns the index statements for every label and merge key.
func (s *NodeSet) IndexStatements() []cypher.Statement {
	return cypher.NodeIndexes(s.Schema())
}

// AllPropertyKeys returns the sorted union of property keys over all staged nodes.
func (s *NodeSet) AllPropertyKeys() []string {
	union := make(props.Properties)
	for _, n := range s.nodes {
		for k := range n {
			union[k] = nil
		}
	}
	return props.Keys(union)
}

// Filter splits the staged nodes into two new containers with the same schema and options.
func (s *NodeSet) Filter(keep func(props.Properties) bool) (kept, discarded *NodeSet) {
	kept, _ = NewNodeSet(s.Labels, s.MergeKeys, s.opts.asOptions()...)
	discarded, _ = NewNodeSet(s.Labels, s.MergeKeys, s.opts.asOptions()...)
	for _, n := range s.nodes {
		if keep(n) {
			kept.stage(n)
		} else {
			discarded.stage(n)
		}
	}
	return kept, discarded
}

// stage appends an already-merged node, keeping the index consistent.
func (s *NodeSet) stage(node props.Properties) {
	if s.index != nil {
		tuple, _ := props.Project(node, s.MergeKeys)
		s.index.Insert(tuple)
	}
	s.nodes = append(s.nodes, node)
}

// ReduceProperties drops every property except keep and the merge keys from all staged nodes.
func (s *NodeSet) ReduceProperties(keep ...string) {
	keys := append(append([]string(nil), s.MergeKeys...), keep...)
	for i, n := range s.nodes {
		s.nodes[i] = props.Select(n, keys)
	}
}

// MapTo builds a RelationshipSet linking every staged node to the single node matched by
// target. The staged nodes are matched on the container's merge keys.
func (s *NodeSet) MapTo(targetLabels []string, target props.Properties, relType string, opts ...Option) (*RelationshipSet, error) {
	if len(s.MergeKeys) == 0 {
		return nil, ferrors.NewConfigurationError("mapping requires merge keys").AddField("merge_keys")
	}
	rs, err := NewRelationshipSet(cypher.RelationshipSchema{
		Type:        relType,
		StartLabels: s.Labels,
		StartKeys:   s.MergeKeys,
		EndLabels:   targetLabels,
		EndKeys:     props.Keys(target),
	}, opts...)
	if err != nil {
		return nil, err
	}
	for _, n := range s.nodes {
		if err := rs.ForceAddRelationship(n, target, nil); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// Metadata describes the container's schema and options.
func (s *NodeSet) Metadata() Metadata {
	m := Metadata{
		Kind:      KindNodes,
		ID:        s.ID.String(),
		Labels:    s.Labels,
		MergeKeys: s.MergeKeys,
	}
	s.opts.metadata(&m)
	return m
}

// ObjectFileName returns a file name that identifies the container, e.g.
// "nodes_Person_email_<id>.csv".
func (s *NodeSet) ObjectFileName(suffix string) string {
	parts := []string{KindNodes, strings.Join(s.Labels, "_")}
	if len(s.MergeKeys) > 0 {
		parts = append(parts, strings.Join(s.MergeKeys, "_"))
	}
	parts = append(parts, s.ID.String())
	return strings.Join(parts, "_") + suffix
}

func (s *NodeSet) String() string {
	return fmt.Sprintf("NodeSet(%s; %s)", strings.Join(s.Labels, ","), strings.Join(s.MergeKeys, ","))
}
