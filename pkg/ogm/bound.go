package ogm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Bound is a relationship attachment bound to one node.
type Bound struct {
	owner *Node
	att   Attachment
}

// Attachment returns the attachment the binding was made from.
func (b *Bound) Attachment() Attachment {
	return b.att
}

// Add stages a relationship between the owner and other. When the attachment is on the
// target side of its relationship the direction is reversed, so the store always holds
// (source)-[type]->(target).
func (b *Bound) Add(other *Node, relProps props.Properties) error {
	if other == nil {
		return ferrors.NewDataError("cannot relate to a nil node")
	}
	if other.model.Name != b.att.Counterpart() {
		return ferrors.NewConfigurationErrorf("relationship %q expects a %s node, got %s",
			b.att.Field, b.att.Counterpart(), other.model.Name).AddField("relationships")
	}

	start, end := b.owner, other
	if b.att.Side == TargetSide && !b.att.Relationship.SelfReferential() {
		start, end = other, b.owner
	}
	b.owner.pending = append(b.owner.pending, pendingRel{
		rel:   b.att.Relationship,
		start: start,
		end:   end,
		props: props.Clone(relProps),
	})
	return nil
}

// Query returns the traversal from the owner across the relationship. An owner missing
// a merge-key value cannot be anchored, and the query's terminals return a DataError.
func (b *Bound) Query() Query {
	r := b.owner.registry
	anchor := MatchNode{Model: b.owner.model.Name, Predicates: []Predicate{Props(b.owner.MatchProperties())}}
	q := Query{registry: r, expr: TraverseNode{Input: anchor, Field: b.att.Field}}
	if _, missing := props.Project(b.owner.props, b.owner.model.MergeKeys); len(missing) > 0 {
		q.err = ferrors.NewDataErrorf("cannot query relationship %q from %s without its merge key", b.att.Field, b.owner.model.Name).AddKey(missing[0])
	}
	return q
}

// Match constrains the related nodes.
func (b *Bound) Match(preds ...Predicate) Query {
	return b.Query().Match(preds...)
}

// Filter constrains the relationships.
func (b *Bound) Filter(preds ...Predicate) Query {
	return b.Query().Filter(preds...)
}

func (b *Bound) All(ctx context.Context) ([]*Node, error) {
	return b.Query().All(ctx)
}

func (b *Bound) First(ctx context.Context) (*Node, bool, error) {
	return b.Query().First(ctx)
}

func (b *Bound) Count(ctx context.Context) (int64, error) {
	return b.Query().Count(ctx)
}

// RelationshipSet returns an empty RelationshipSet with the relationship's schema, for
// bulk loading.
func (b *Bound) RelationshipSet(opts ...bulk.Option) (*bulk.RelationshipSet, error) {
	return b.owner.registry.relationshipSet(b.att.Relationship, opts...)
}

// NodeSet returns an empty NodeSet for the model at the other end.
func (b *Bound) NodeSet(opts ...bulk.Option) (*bulk.NodeSet, error) {
	return b.owner.registry.NodeSet(b.att.Counterpart(), opts...)
}

// Delete removes the relationships between the owner and target, or every relationship
// of this attachment on the owner when target is nil.
func (b *Bound) Delete(ctx context.Context, target *Node) error {
	ctx, span := tracing.StartSpan(ctx, "ogm.Bound.Delete")
	defer span.End()

	r := b.owner.registry
	exec, err := r.executor()
	if err != nil {
		return err
	}
	other, err := r.model(b.att.Counterpart())
	if err != nil {
		return err
	}

	if _, missing := props.Project(b.owner.props, b.owner.model.MergeKeys); len(missing) > 0 {
		return ferrors.NewDataError("missing merge key value").AddKey(missing[0])
	}

	params := newParamSet()
	c := &compiler{registry: r, params: params}
	c.match(fmt.Sprintf("MATCH (n0%s)", cypher.LabelString(b.owner.model.Labels)))
	c.filter("n0", []Predicate{Props(b.owner.MatchProperties())})
	c.match(traversal("n0", "r1", b.att, "n1", other.Labels))
	if target != nil {
		c.filter("n1", []Predicate{Props(target.MatchProperties())})
	}
	c.flush()
	c.clauses = append(c.clauses, "DELETE r1")

	stmt := cypher.Statement{Query: strings.Join(c.clauses, "\n"), Params: params.values}
	if _, err := exec.Write(ctx, stmt); err != nil {
		tracing.RecordError(span, err)
		return ferrors.NewStoreExecutionError("delete", err)
	}
	return nil
}
