// Package cypher turns staged node and relationship rows into batched, parameterized
// Cypher write statements.
package cypher

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBatchSize bounds the number of rows carried by one statement.
const DefaultBatchSize = 10000

// Statement is a Cypher query template and the parameters it references.
type Statement struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Rows returns the number of rows passed to the statement's UNWIND parameter,
// or 0 for statements without one.
func (s Statement) Rows() int {
	for _, key := range []string{nodeParam, relParam} {
		if rows, ok := s.Params[key].([]any); ok {
			return len(rows)
		}
	}
	return 0
}

func (s Statement) String() string {
	return s.Query
}

// AppendPolicy controls how array-append properties combine with stored values.
type AppendPolicy int

const (
	// AppendAll concatenates incoming values onto the stored list.
	AppendAll AppendPolicy = iota
	// AppendDistinct only appends values the stored list does not already contain.
	AppendDistinct
)

func (p AppendPolicy) String() string {
	switch p {
	case AppendDistinct:
		return "distinct"
	default:
		return "all"
	}
}

// ParseAppendPolicy parses "all" or "distinct".
func ParseAppendPolicy(s string) (AppendPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return AppendAll, nil
	case "distinct":
		return AppendDistinct, nil
	}
	return AppendAll, fmt.Errorf("unknown append policy %q", s)
}

// MergeOptions configures the ON MATCH behaviour of merge statements.
type MergeOptions struct {
	// Preserve names properties that are never overwritten on match.
	Preserve []string
	// AppendProps names properties whose values are appended to a stored list on match.
	AppendProps  []string
	AppendPolicy AppendPolicy
}

// Chunk slices items into consecutive batches of at most size elements.
// A non-positive size uses DefaultBatchSize.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Identifier returns name as a Cypher identifier, backtick-quoting it when needed.
func Identifier(name string) string {
	if plainIdentifier.MatchString(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// LabelString renders labels as ":A:B", or "" when there are none.
func LabelString(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteByte(':')
		b.WriteString(Identifier(l))
	}
	return b.String()
}

// query joins clauses with newlines, skipping empty ones
type query []string

func (q *query) add(clauses ...string) {
	*q = append(*q, clauses...)
}

func (q query) String() string {
	parts := make([]string, 0, len(q))
	for _, c := range q {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}

// keyMap renders "{ a: param.a, b: param.b }"
func keyMap(keys []string, param string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s.%s", Identifier(k), param, Identifier(k))
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// onMatchUpdate renders the map expression used with "+=" on match: the incoming
// properties with preserved keys pinned to their stored value and append keys
// combined with the stored list.
func onMatchUpdate(variable, param string, opts MergeOptions) string {
	if len(opts.Preserve) == 0 && len(opts.AppendProps) == 0 {
		return param
	}

	overrides := []string{".*"}
	for _, p := range opts.Preserve {
		overrides = append(overrides, fmt.Sprintf("%s: %s.%s", Identifier(p), variable, Identifier(p)))
	}
	for _, p := range opts.AppendProps {
		stored := fmt.Sprintf("%s.%s", variable, Identifier(p))
		incoming := fmt.Sprintf("%s.%s", param, Identifier(p))
		existing := fmt.Sprintf("[] + coalesce(%s, [])", stored)

		var combined string
		switch opts.AppendPolicy {
		case AppendDistinct:
			combined = fmt.Sprintf("reduce(acc = %s, v IN %s | CASE WHEN v IN acc THEN acc ELSE acc + [v] END)", existing, incoming)
		default:
			combined = fmt.Sprintf("%s + %s", existing, incoming)
		}
		overrides = append(overrides, fmt.Sprintf("%s: CASE WHEN %s IS NULL THEN %s ELSE %s END", Identifier(p), incoming, stored, combined))
	}
	return fmt.Sprintf("%s { %s }", param, strings.Join(overrides, ", "))
}
