package ogm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Expr is a node of an immutable query expression tree.
type Expr interface {
	isExpr()
}

// MatchNode selects nodes of a model.
type MatchNode struct {
	Model      string
	Predicates []Predicate
}

// FilterOn selects what a FilterNode constrains.
type FilterOn int

const (
	OnNode FilterOn = iota
	OnRelationship
)

// FilterNode constrains the current node, or the relationship last traversed.
type FilterNode struct {
	Input      Expr
	On         FilterOn
	Predicates []Predicate
}

// TraverseNode follows the relationship attached to the current model under Field.
type TraverseNode struct {
	Input Expr
	Field string
}

func (MatchNode) isExpr()    {}
func (FilterNode) isExpr()   {}
func (TraverseNode) isExpr() {}

// Query is a lazily evaluated expression. Every builder method returns a new Query;
// nothing touches the store until All, First or Count is called. A query built from an
// invalid anchor carries the error to its terminal.
type Query struct {
	registry *Registry
	expr     Expr
	err      error
}

// Expr returns the expression tree of the query.
func (q Query) Expr() Expr {
	return q.expr
}

// Match constrains the nodes the query currently resolves to.
func (q Query) Match(preds ...Predicate) Query {
	return Query{registry: q.registry, expr: FilterNode{Input: q.expr, On: OnNode, Predicates: preds}, err: q.err}
}

// Filter constrains the relationship traversed last.
func (q Query) Filter(preds ...Predicate) Query {
	return Query{registry: q.registry, expr: FilterNode{Input: q.expr, On: OnRelationship, Predicates: preds}, err: q.err}
}

// Traverse follows the relationship attached to the current model under field.
func (q Query) Traverse(field string) Query {
	return Query{registry: q.registry, expr: TraverseNode{Input: q.expr, Field: field}, err: q.err}
}

type terminal int

const (
	returnAll terminal = iota
	returnFirst
	returnCount
)

// scope is what the compiled query currently points at.
type scope struct {
	node  string
	rel   string
	model *Model
}

type compiler struct {
	registry *Registry
	params   *paramSet
	clauses  []string
	where    []string
	hops     int
}

func (c *compiler) match(clause string) {
	c.flush()
	c.clauses = append(c.clauses, clause)
}

func (c *compiler) flush() {
	if len(c.where) > 0 {
		c.clauses = append(c.clauses, "WHERE "+strings.Join(c.where, " AND "))
		c.where = nil
	}
}

func (c *compiler) filter(variable string, preds []Predicate) {
	for _, p := range preds {
		if s := p.render(variable, c.params); s != "" {
			c.where = append(c.where, s)
		}
	}
}

func (c *compiler) visit(e Expr) (scope, error) {
	switch t := e.(type) {
	case MatchNode:
		m, err := c.registry.model(t.Model)
		if err != nil {
			return scope{}, err
		}
		s := scope{node: "n0", model: m}
		c.match(fmt.Sprintf("MATCH (%s%s)", s.node, cypher.LabelString(m.Labels)))
		c.filter(s.node, t.Predicates)
		return s, nil

	case FilterNode:
		s, err := c.visit(t.Input)
		if err != nil {
			return s, err
		}
		variable := s.node
		if t.On == OnRelationship {
			if s.rel == "" {
				return s, ferrors.NewConfigurationError("relationship filter needs a traversal").AddField("filter")
			}
			variable = s.rel
		}
		c.filter(variable, t.Predicates)
		return s, nil

	case TraverseNode:
		s, err := c.visit(t.Input)
		if err != nil {
			return s, err
		}
		att, ok := s.model.Attachment(t.Field)
		if !ok {
			return s, ferrors.NewConfigurationErrorf("model %q has no relationship %q", s.model.Name, t.Field).AddField("relationships")
		}
		target, err := c.registry.model(att.Counterpart())
		if err != nil {
			return s, err
		}

		c.hops++
		next := scope{
			node:  fmt.Sprintf("n%d", c.hops),
			rel:   fmt.Sprintf("r%d", c.hops),
			model: target,
		}
		c.match(traversal(s.node, next.rel, att, next.node, target.Labels))
		return next, nil
	}
	return scope{}, fmt.Errorf("unsupported expression %T", e)
}

// traversal renders the pattern from the current node to the next one, pointing the
// arrow from source to target whichever side the attachment is on.
func traversal(from, rel string, att Attachment, to string, labels []string) string {
	relPattern := fmt.Sprintf("[%s:%s]", rel, cypher.Identifier(att.Relationship.Type))
	target := fmt.Sprintf("(%s%s)", to, cypher.LabelString(labels))
	if att.Side == TargetSide && !att.Relationship.SelfReferential() {
		return fmt.Sprintf("MATCH (%s)<-%s-%s", from, relPattern, target)
	}
	return fmt.Sprintf("MATCH (%s)-%s->%s", from, relPattern, target)
}

func (q Query) compile(t terminal) (cypher.Statement, *Model, error) {
	if q.err != nil {
		return cypher.Statement{}, nil, q.err
	}
	if q.registry == nil {
		return cypher.Statement{}, nil, ferrors.NewConfigurationError("query is not bound to a registry").AddField("registry")
	}
	c := &compiler{registry: q.registry, params: newParamSet()}
	s, err := c.visit(q.expr)
	if err != nil {
		return cypher.Statement{}, nil, err
	}
	c.flush()

	switch t {
	case returnCount:
		c.clauses = append(c.clauses, fmt.Sprintf("RETURN count(DISTINCT %s) AS count", s.node))
	case returnFirst:
		c.clauses = append(c.clauses, fmt.Sprintf("RETURN DISTINCT %s AS n", s.node), "LIMIT 1")
	default:
		c.clauses = append(c.clauses, fmt.Sprintf("RETURN DISTINCT %s AS n", s.node))
	}

	return cypher.Statement{Query: strings.Join(c.clauses, "\n"), Params: c.params.values}, s.model, nil
}

// Statement returns the read statement All would run.
func (q Query) Statement() (cypher.Statement, error) {
	stmt, _, err := q.compile(returnAll)
	return stmt, err
}

func (q Query) read(ctx context.Context, t terminal) ([]graph.Record, *Model, error) {
	ctx, span := tracing.StartSpan(ctx, "ogm.Query.read")
	defer span.End()

	stmt, model, err := q.compile(t)
	if err != nil {
		return nil, nil, err
	}
	exec, err := q.registry.executor()
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("model", model.Name))

	records, err := exec.Read(ctx, stmt)
	if err != nil {
		tracing.RecordError(span, err)
		q.registry.logger.WithContext(ctx).WithError(err).WithField("model", model.Name).Error("Failed to run query")
		return nil, nil, err
	}
	return records, model, nil
}

// All returns every node the query resolves to.
func (q Query) All(ctx context.Context) ([]*Node, error) {
	records, model, err := q.read(ctx, returnAll)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		if n, ok := q.registry.fromRecord(rec, model); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

// First returns one node the query resolves to. A query without results returns
// ok == false and no error.
func (q Query) First(ctx context.Context) (node *Node, ok bool, err error) {
	records, model, err := q.read(ctx, returnFirst)
	if err != nil {
		return nil, false, err
	}
	for _, rec := range records {
		if n, ok := q.registry.fromRecord(rec, model); ok {
			return n, true, nil
		}
	}
	return nil, false, nil
}

// Count returns the number of distinct nodes the query resolves to.
func (q Query) Count(ctx context.Context) (int64, error) {
	records, _, err := q.read(ctx, returnCount)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	count, _ := records[0].Int("count")
	return count, nil
}

func (r *Registry) fromRecord(rec graph.Record, model *Model) (*Node, bool) {
	gn, ok := rec.Node("n")
	if !ok {
		return nil, false
	}
	return &Node{
		registry:  r,
		model:     model,
		props:     props.Properties(gn.Properties),
		elementID: gn.ElementID,
	}, true
}
