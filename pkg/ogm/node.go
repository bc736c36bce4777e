package ogm

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Node is an instance of a registered model. Relationships added through Rel are
// staged on the node until it is created or merged.
type Node struct {
	registry  *Registry
	model     *Model
	props     props.Properties
	elementID string
	pending   []pendingRel
}

type pendingRel struct {
	rel   Relationship
	start *Node
	end   *Node
	props props.Properties
}

var (
	_ bulk.PropertySource = (*Node)(nil)
	_ bulk.MatchSource    = (*Node)(nil)
)

func (n *Node) Model() *Model {
	return n.model
}

// ElementID is the store identity of a node read back from a query, or "" for new nodes.
func (n *Node) ElementID() string {
	return n.elementID
}

// Properties returns a copy of the node's properties.
func (n *Node) Properties() props.Properties {
	return props.Clone(n.props)
}

// MatchProperties returns the merge-key properties that identify the node.
func (n *Node) MatchProperties() props.Properties {
	return props.Select(n.props, n.model.MergeKeys)
}

func (n *Node) Get(key string) any {
	return n.props[key]
}

func (n *Node) Set(key string, value any) {
	n.props[key] = value
}

// Pending returns the number of staged relationships not yet written.
func (n *Node) Pending() int {
	return len(n.pending)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s%v", n.model.Name, map[string]any(n.MatchProperties()))
}

// Rel binds the relationship attached to the node's model under name to this node.
func (n *Node) Rel(name string) (*Bound, error) {
	att, ok := n.model.Attachment(name)
	if !ok {
		return nil, ferrors.NewConfigurationErrorf("model %q has no relationship %q", n.model.Name, name).AddField("relationships")
	}
	return &Bound{owner: n, att: att}, nil
}

// Create writes the node with CREATE, then merges the nodes at the other end of its
// staged relationships and creates those relationships.
func (n *Node) Create(ctx context.Context) error {
	return n.save(ctx, bulk.ModeCreate)
}

// Merge writes the node with MERGE on its merge keys, then merges the related nodes
// and relationships.
func (n *Node) Merge(ctx context.Context) error {
	return n.save(ctx, bulk.ModeMerge)
}

func (n *Node) save(ctx context.Context, mode bulk.Mode) error {
	ctx, span := tracing.StartSpan(ctx, "ogm.Node.save")
	defer span.End()

	exec, err := n.registry.executor()
	if err != nil {
		return err
	}

	self, err := n.registry.NodeSet(n.model.Name)
	if err != nil {
		return err
	}
	self.ForceAddNode(n.props)

	// stage everything before the first write so a bad relationship writes nothing
	related := make(map[string]*bulk.NodeSet)
	relSets := make(map[Relationship]*bulk.RelationshipSet)
	var (
		relatedOrder []string
		relOrder     []Relationship
	)
	for _, p := range n.pending {
		for _, other := range []*Node{p.start, p.end} {
			if other == n {
				continue
			}
			ns, ok := related[other.model.Name]
			if !ok {
				if ns, err = n.registry.NodeSet(other.model.Name, bulk.WithDeduplication()); err != nil {
					return err
				}
				related[other.model.Name] = ns
				relatedOrder = append(relatedOrder, other.model.Name)
			}
			ns.AddNode(other.props)
		}

		rs, ok := relSets[p.rel]
		if !ok {
			if rs, err = n.registry.relationshipSet(p.rel, bulk.WithDeduplication()); err != nil {
				return err
			}
			relSets[p.rel] = rs
			relOrder = append(relOrder, p.rel)
		}
		if _, err := rs.Add(p.start, p.end, p.props); err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}

	if err := writeAll(ctx, exec, self, mode); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	for _, name := range relatedOrder {
		if err := writeAll(ctx, exec, related[name], bulk.ModeMerge); err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}
	for _, rel := range relOrder {
		if err := writeAll(ctx, exec, relSets[rel], mode); err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}

	n.pending = nil
	return nil
}

func writeAll(ctx context.Context, exec graph.Executor, d bulk.Dataset, mode bulk.Mode) error {
	statements, err := d.Statements(mode, 0)
	if err != nil {
		return err
	}
	for i, stmt := range statements {
		if _, err := exec.Write(ctx, stmt); err != nil {
			return ferrors.NewStoreExecutionError(mode.String(), err).AddBatch(i)
		}
	}
	return nil
}

// Delete removes the node matched by its merge keys together with its relationships.
func (n *Node) Delete(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "ogm.Node.Delete")
	defer span.End()

	exec, err := n.registry.executor()
	if err != nil {
		return err
	}
	if _, missing := props.Project(n.props, n.model.MergeKeys); len(missing) > 0 {
		return ferrors.NewDataError("missing merge key value").AddKey(missing[0])
	}

	params := newParamSet()
	stmt := cypher.Statement{
		Query: fmt.Sprintf("MATCH (n%s)\nWHERE %s\nDETACH DELETE n",
			cypher.LabelString(n.model.Labels), Props(n.MatchProperties()).render("n", params)),
		Params: params.values,
	}
	if _, err := exec.Write(ctx, stmt); err != nil {
		tracing.RecordError(span, err)
		return ferrors.NewStoreExecutionError("delete", err)
	}
	return nil
}
