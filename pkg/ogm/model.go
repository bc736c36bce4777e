// Package ogm maps typed models onto graph nodes and lets relationships declared once
// be traversed from either end.
package ogm

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/cypher"
	"github.com/Ramsey-B/fern/pkg/props"
)

// Relationship declares a relationship type between two models by name. The store
// always records it as (Source)-[Type]->(Target).
type Relationship struct {
	Source string
	Type   string
	Target string
}

// SelfReferential reports whether both ends are the same model.
func (r Relationship) SelfReferential() bool {
	return r.Source == r.Target
}

func (r Relationship) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", r.Source, r.Type, r.Target)
}

// Side tells which end of a Relationship the model holding the attachment is.
type Side int

const (
	SourceSide Side = iota
	TargetSide
)

func (s Side) String() string {
	if s == TargetSide {
		return "target"
	}
	return "source"
}

// Attachment is a Relationship attached to a model under a field name, with its side
// resolved at registration.
type Attachment struct {
	Field        string
	Relationship Relationship
	Side         Side
}

// Counterpart returns the name of the model at the other end.
func (a Attachment) Counterpart() string {
	if a.Side == TargetSide {
		return a.Relationship.Source
	}
	return a.Relationship.Target
}

// Model describes how one kind of node is labeled, identified and merged.
type Model struct {
	Name             string
	Labels           []string
	MergeKeys        []string
	DefaultProps     props.Properties
	Preserve         []string
	AppendProps      []string
	AppendPolicy     cypher.AppendPolicy
	AdditionalLabels []string
	Relationships    map[string]Relationship

	attachments map[string]Attachment
}

// Attachment returns the resolved attachment registered under field.
func (m *Model) Attachment(field string) (Attachment, bool) {
	a, ok := m.attachments[field]
	return a, ok
}

func (m *Model) nodeOptions() []bulk.Option {
	opts := []bulk.Option{
		bulk.WithPreserve(m.Preserve...),
		bulk.WithAppendProps(m.AppendProps...),
		bulk.WithAppendPolicy(m.AppendPolicy),
		bulk.WithAdditionalLabels(m.AdditionalLabels...),
	}
	if len(m.DefaultProps) > 0 {
		opts = append(opts, bulk.WithDefaultProps(m.DefaultProps))
	}
	return opts
}

func (m *Model) schema() cypher.NodeSchema {
	return cypher.NodeSchema{Labels: m.Labels, MergeKeys: m.MergeKeys, AdditionalLabels: m.AdditionalLabels}
}
