package ogm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ramsey-B/fern/pkg/cypher"
	"github.com/Ramsey-B/fern/pkg/props"
)

// Predicate is a condition on the properties of a node or relationship in a query.
type Predicate interface {
	render(variable string, params *paramSet) string
}

// paramSet hands out unique parameter names for one compiled query.
type paramSet struct {
	values map[string]any
	next   int
}

func newParamSet() *paramSet {
	return &paramSet{values: make(map[string]any)}
}

func (p *paramSet) bind(v any) string {
	name := fmt.Sprintf("p%d", p.next)
	p.next++
	p.values[name] = v
	return "$" + name
}

// FieldRef names a property in a predicate.
type FieldRef string

// Field starts a predicate on the named property.
func Field(name string) FieldRef {
	return FieldRef(name)
}

type comparison struct {
	field string
	op    string
	value any
	// reversed renders "$value op field", as used for list membership
	reversed bool
}

func (c comparison) render(variable string, params *paramSet) string {
	ref := variable + "." + cypher.Identifier(c.field)
	if c.reversed {
		return fmt.Sprintf("%s %s %s", params.bind(c.value), c.op, ref)
	}
	return fmt.Sprintf("%s %s %s", ref, c.op, params.bind(c.value))
}

func (f FieldRef) Eq(v any) Predicate  { return comparison{field: string(f), op: "=", value: v} }
func (f FieldRef) Ne(v any) Predicate  { return comparison{field: string(f), op: "<>", value: v} }
func (f FieldRef) Gt(v any) Predicate  { return comparison{field: string(f), op: ">", value: v} }
func (f FieldRef) Gte(v any) Predicate { return comparison{field: string(f), op: ">=", value: v} }
func (f FieldRef) Lt(v any) Predicate  { return comparison{field: string(f), op: "<", value: v} }
func (f FieldRef) Lte(v any) Predicate { return comparison{field: string(f), op: "<=", value: v} }
func (f FieldRef) StartsWith(s string) Predicate {
	return comparison{field: string(f), op: "STARTS WITH", value: s}
}
func (f FieldRef) EndsWith(s string) Predicate {
	return comparison{field: string(f), op: "ENDS WITH", value: s}
}

// Contains matches string properties containing s.
func (f FieldRef) Contains(s string) Predicate {
	return comparison{field: string(f), op: "CONTAINS", value: s}
}

// In matches properties equal to one of values.
func (f FieldRef) In(values ...any) Predicate {
	return comparison{field: string(f), op: "IN", value: values}
}

// Has matches list properties that contain v.
func (f FieldRef) Has(v any) Predicate {
	return comparison{field: string(f), op: "IN", value: v, reversed: true}
}

type nullCheck struct {
	field string
	null  bool
}

func (n nullCheck) render(variable string, _ *paramSet) string {
	if n.null {
		return fmt.Sprintf("%s.%s IS NULL", variable, cypher.Identifier(n.field))
	}
	return fmt.Sprintf("%s.%s IS NOT NULL", variable, cypher.Identifier(n.field))
}

func (f FieldRef) IsNull() Predicate  { return nullCheck{field: string(f), null: true} }
func (f FieldRef) NotNull() Predicate { return nullCheck{field: string(f)} }

// Props matches every key of p by equality.
func Props(p props.Properties) Predicate {
	preds := make([]Predicate, 0, len(p))
	for _, k := range props.Keys(p) {
		preds = append(preds, Field(k).Eq(p[k]))
	}
	return And(preds...)
}

type junction struct {
	op    string
	preds []Predicate
}

func (j junction) render(variable string, params *paramSet) string {
	parts := make([]string, 0, len(j.preds))
	for _, p := range j.preds {
		if s := p.render(variable, params); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+j.op+" ") + ")"
}

func And(preds ...Predicate) Predicate { return junction{op: "AND", preds: preds} }
func Or(preds ...Predicate) Predicate  { return junction{op: "OR", preds: preds} }

type negation struct {
	pred Predicate
}

func (n negation) render(variable string, params *paramSet) string {
	inner := n.pred.render(variable, params)
	if inner == "" {
		return ""
	}
	return "NOT " + inner
}

func Not(p Predicate) Predicate { return negation{pred: p} }

var selfRef = regexp.MustCompile(`(^|[^A-Za-z0-9_$.])_\.`)

type raw struct {
	condition string
	params    map[string]any
}

// Cypher is a raw condition. The filtered entity is referred to as "_", e.g.
// Cypher("_.age >= $min", map[string]any{"min": 18}). Parameter names of the form
// p<N> are reserved.
func Cypher(condition string, params map[string]any) Predicate {
	return raw{condition: condition, params: params}
}

func (r raw) render(variable string, params *paramSet) string {
	for k, v := range r.params {
		params.values[k] = v
	}
	return selfRef.ReplaceAllString(r.condition, "${1}"+variable+".")
}
