package bulk

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/google/uuid"
)

const (
	KindNodes         = "nodes"
	KindRelationships = "relationships"
)

// Metadata is the serializable description of a container's schema and options.
type Metadata struct {
	Kind             string         `yaml:"kind" json:"kind"`
	ID               string         `yaml:"id,omitempty" json:"id,omitempty"`
	Labels           []string       `yaml:"labels,omitempty" json:"labels,omitempty"`
	MergeKeys        []string       `yaml:"merge_keys,omitempty" json:"merge_keys,omitempty"`
	AdditionalLabels []string       `yaml:"additional_labels,omitempty" json:"additional_labels,omitempty"`
	RelType          string         `yaml:"rel_type,omitempty" json:"rel_type,omitempty"`
	StartLabels      []string       `yaml:"start_node_labels,omitempty" json:"start_node_labels,omitempty"`
	StartKeys        []string       `yaml:"start_node_properties,omitempty" json:"start_node_properties,omitempty"`
	EndLabels        []string       `yaml:"end_node_labels,omitempty" json:"end_node_labels,omitempty"`
	EndKeys          []string       `yaml:"end_node_properties,omitempty" json:"end_node_properties,omitempty"`
	DefaultProps     map[string]any `yaml:"default_props,omitempty" json:"default_props,omitempty"`
	Preserve         []string       `yaml:"preserve,omitempty" json:"preserve,omitempty"`
	AppendProps      []string       `yaml:"append_props,omitempty" json:"append_props,omitempty"`
	AppendPolicy     string         `yaml:"append_policy,omitempty" json:"append_policy,omitempty"`
	BatchSize        int            `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	Deduplicate      bool           `yaml:"deduplicate,omitempty" json:"deduplicate,omitempty"`
}

func (o options) metadata(m *Metadata) {
	if len(o.defaultProps) > 0 {
		m.DefaultProps = map[string]any(props.Clone(o.defaultProps))
	}
	m.Preserve = o.preserve
	m.AppendProps = o.appendProps
	if len(o.appendProps) > 0 {
		m.AppendPolicy = o.appendPolicy.String()
	}
	m.BatchSize = o.batchSize
	m.Deduplicate = o.deduplicate
	m.AdditionalLabels = o.additionalLabels
}

// Options returns the container options described by m. An empty append policy
// leaves the policy to earlier options.
func (m Metadata) Options() ([]Option, error) {
	opts := []Option{
		WithPreserve(m.Preserve...),
		WithAppendProps(m.AppendProps...),
		WithAdditionalLabels(m.AdditionalLabels...),
	}
	if m.AppendPolicy != "" {
		policy, err := cypher.ParseAppendPolicy(m.AppendPolicy)
		if err != nil {
			return nil, ferrors.NewConfigurationError(err.Error()).AddField("append_policy")
		}
		opts = append(opts, WithAppendPolicy(policy))
	}
	if m.BatchSize != 0 {
		opts = append(opts, WithBatchSize(m.BatchSize))
	}
	if len(m.DefaultProps) > 0 {
		opts = append(opts, WithDefaultProps(m.DefaultProps))
	}
	if m.Deduplicate {
		opts = append(opts, WithDeduplication())
	}
	return opts, nil
}

// NewNodeSetFromMetadata builds an empty NodeSet described by m. Options in defaults
// apply first and are overridden by m. The ID is kept when m carries a valid one.
func NewNodeSetFromMetadata(m Metadata, defaults ...Option) (*NodeSet, error) {
	if m.Kind != KindNodes {
		return nil, ferrors.NewConfigurationErrorf("expected kind %q, got %q", KindNodes, m.Kind).AddField("kind")
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	opts = append(append([]Option{}, defaults...), opts...)
	ns, err := NewNodeSet(m.Labels, m.MergeKeys, opts...)
	if err != nil {
		return nil, err
	}
	if id, err := uuid.Parse(m.ID); err == nil {
		ns.ID = id
	}
	return ns, nil
}

// NewRelationshipSetFromMetadata builds an empty RelationshipSet described by m.
func NewRelationshipSetFromMetadata(m Metadata, defaults ...Option) (*RelationshipSet, error) {
	if m.Kind != KindRelationships {
		return nil, ferrors.NewConfigurationErrorf("expected kind %q, got %q", KindRelationships, m.Kind).AddField("kind")
	}
	opts, err := m.Options()
	if err != nil {
		return nil, err
	}
	opts = append(append([]Option{}, defaults...), opts...)
	rs, err := NewRelationshipSet(cypher.RelationshipSchema{
		Type:        m.RelType,
		StartLabels: m.StartLabels,
		StartKeys:   m.StartKeys,
		EndLabels:   m.EndLabels,
		EndKeys:     m.EndKeys,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if id, err := uuid.Parse(m.ID); err == nil {
		rs.ID = id
	}
	return rs, nil
}

// FromMetadata builds the empty container described by m.
func FromMetadata(m Metadata, defaults ...Option) (Dataset, error) {
	switch m.Kind {
	case KindNodes:
		ns, err := NewNodeSetFromMetadata(m, defaults...)
		if err != nil {
			return nil, err
		}
		return ns, nil
	case KindRelationships:
		rs, err := NewRelationshipSetFromMetadata(m, defaults...)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
	return nil, ferrors.NewConfigurationError(fmt.Sprintf("unknown container kind %q", m.Kind)).AddField("kind")
}
