package ogm

import (
	"testing"

	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/stretchr/testify/assert"
)

func TestPredicateRendering(t *testing.T) {
	testCases := []struct {
		name     string
		pred     Predicate
		expected string
		params   map[string]any
	}{
		{
			name:     "equality",
			pred:     Field("name").Eq("Ada"),
			expected: "n.name = $p0",
			params:   map[string]any{"p0": "Ada"},
		},
		{
			name:     "quoted field",
			pred:     Field("first name").Ne("Ada"),
			expected: "n.`first name` <> $p0",
			params:   map[string]any{"p0": "Ada"},
		},
		{
			name:     "contains",
			pred:     Field("bio").Contains("math"),
			expected: "n.bio CONTAINS $p0",
			params:   map[string]any{"p0": "math"},
		},
		{
			name:     "in",
			pred:     Field("age").In(30, 40),
			expected: "n.age IN $p0",
			params:   map[string]any{"p0": []any{30, 40}},
		},
		{
			name:     "has",
			pred:     Field("tags").Has("go"),
			expected: "$p0 IN n.tags",
			params:   map[string]any{"p0": "go"},
		},
		{
			name:     "null checks",
			pred:     And(Field("a").IsNull(), Field("b").NotNull()),
			expected: "(n.a IS NULL AND n.b IS NOT NULL)",
			params:   map[string]any{},
		},
		{
			name:     "or and not",
			pred:     Or(Field("age").Lt(18), Not(Field("name").StartsWith("A"))),
			expected: "(n.age < $p0 OR NOT n.name STARTS WITH $p1)",
			params:   map[string]any{"p0": 18, "p1": "A"},
		},
		{
			name:     "props sorted by key",
			pred:     Props(props.Properties{"name": "Ada", "email": "a@x.io"}),
			expected: "(n.email = $p0 AND n.name = $p1)",
			params:   map[string]any{"p0": "a@x.io", "p1": "Ada"},
		},
		{
			name:     "single props key is not parenthesized",
			pred:     Props(props.Properties{"email": "a@x.io"}),
			expected: "n.email = $p0",
			params:   map[string]any{"p0": "a@x.io"},
		},
		{
			name:     "empty junction",
			pred:     And(),
			expected: "",
			params:   map[string]any{},
		},
		{
			name:     "raw condition",
			pred:     Cypher("_.age >= $min AND size(_.tags) > 0", map[string]any{"min": 18}),
			expected: "n.age >= $min AND size(n.tags) > 0",
			params:   map[string]any{"min": 18},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := newParamSet()
			assert.Equal(t, tc.expected, tc.pred.render("n", params))
			assert.Equal(t, tc.params, params.values)
		})
	}
}

func TestRawConditionLeavesOtherIdentifiersAlone(t *testing.T) {
	p := Cypher("my_.x = 1 AND _.y = $_", nil)
	assert.Equal(t, "my_.x = 1 AND n.y = $_", p.render("n", newParamSet()))
}
