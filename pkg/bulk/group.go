package bulk

import (
	"slices"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

// Group is an additive bag of containers loaded together. Node sets are always
// written before relationship sets.
type Group struct {
	nodeSets []*NodeSet
	relSets  []*RelationshipSet
}

func NewGroup(datasets ...Dataset) (*Group, error) {
	g := &Group{}
	if err := g.AddAll(datasets...); err != nil {
		return nil, err
	}
	return g, nil
}

// Add puts d in the group. Adding the same container twice is a no-op.
func (g *Group) Add(d Dataset) error {
	switch t := d.(type) {
	case *NodeSet:
		if !slices.Contains(g.nodeSets, t) {
			g.nodeSets = append(g.nodeSets, t)
		}
	case *RelationshipSet:
		if !slices.Contains(g.relSets, t) {
			g.relSets = append(g.relSets, t)
		}
	default:
		return ferrors.NewConfigurationErrorf("unsupported container type %T", d)
	}
	return nil
}

func (g *Group) AddAll(datasets ...Dataset) error {
	for _, d := range datasets {
		if err := g.Add(d); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) NodeSets() []*NodeSet {
	return append([]*NodeSet(nil), g.nodeSets...)
}

func (g *Group) RelationshipSets() []*RelationshipSet {
	return append([]*RelationshipSet(nil), g.relSets...)
}

// Datasets returns every container, node sets first.
func (g *Group) Datasets() []Dataset {
	out := make([]Dataset, 0, len(g.nodeSets)+len(g.relSets))
	for _, ns := range g.nodeSets {
		out = append(out, ns)
	}
	for _, rs := range g.relSets {
		out = append(out, rs)
	}
	return out
}

// NodeSet returns the first node set with the given labels and merge keys.
func (g *Group) NodeSet(labels, mergeKeys []string) (*NodeSet, bool) {
	for _, ns := range g.nodeSets {
		if slices.Equal(ns.Labels, labels) && slices.Equal(ns.MergeKeys, mergeKeys) {
			return ns, true
		}
	}
	return nil, false
}

// RelationshipSet returns the first relationship set with the given type and endpoint labels.
func (g *Group) RelationshipSet(relType string, startLabels, endLabels []string) (*RelationshipSet, bool) {
	for _, rs := range g.relSets {
		if rs.RelType == relType && slices.Equal(rs.StartLabels, startLabels) && slices.Equal(rs.EndLabels, endLabels) {
			return rs, true
		}
	}
	return nil, false
}

// Len returns the number of staged entities across all containers.
func (g *Group) Len() int {
	n := 0
	for _, ns := range g.nodeSets {
		n += ns.Len()
	}
	for _, rs := range g.relSets {
		n += rs.Len()
	}
	return n
}
