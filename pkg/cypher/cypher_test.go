package cypher

import (
	"testing"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	testCases := []struct {
		name     string
		items    []int
		size     int
		expected [][]int
	}{
		{name: "empty", items: nil, size: 2, expected: [][]int{}},
		{name: "exact", items: []int{1, 2, 3, 4}, size: 2, expected: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", items: []int{1, 2, 3}, size: 2, expected: [][]int{{1, 2}, {3}}},
		{name: "larger than items", items: []int{1, 2}, size: 10, expected: [][]int{{1, 2}}},
		{name: "non-positive uses default", items: []int{1, 2, 3}, size: 0, expected: [][]int{{1, 2, 3}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Chunk(tc.items, tc.size))
		})
	}
}

func TestCreateNodes_PersonByEmail(t *testing.T) {
	schema := NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"email"}}
	rows := []props.Properties{
		{"email": "a@x.io", "name": "A"},
		{"email": "b@x.io", "name": "B"},
		{"email": "c@x.io", "name": "C"},
	}

	statements := CreateNodes(schema, rows, 2)
	require.Len(t, statements, 2)
	assert.Equal(t, 2, statements[0].Rows())
	assert.Equal(t, 1, statements[1].Rows())
	assert.Equal(t, "UNWIND $props AS properties\nCREATE (n:Person)\nSET n = properties", statements[0].Query)

	var flattened []any
	for _, s := range statements {
		flattened = append(flattened, s.Params["props"].([]any)...)
	}
	require.Len(t, flattened, len(rows))
	for i, row := range rows {
		assert.Equal(t, map[string]any(row), flattened[i])
	}
}

func TestCreateNodes_KeepsDuplicates(t *testing.T) {
	schema := NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"email"}}
	rows := []props.Properties{{"email": "a@x.io"}, {"email": "a@x.io"}}

	statements := CreateNodes(schema, rows, 10)
	require.Len(t, statements, 1)
	assert.Equal(t, 2, statements[0].Rows())
}

func TestCreateNodes_DoesNotRequireKeys(t *testing.T) {
	statements := CreateNodes(NodeSchema{Labels: []string{"Tag"}}, []props.Properties{{"name": "x"}}, 0)
	require.Len(t, statements, 1)
	assert.Equal(t, 1, statements[0].Rows())
}

func TestNodeMergeQuery(t *testing.T) {
	schema := NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"email"}}

	t.Run("plain", func(t *testing.T) {
		q, err := NodeMergeQuery(schema, MergeOptions{})
		require.NoError(t, err)
		assert.Equal(t, "UNWIND $props AS properties\n"+
			"MERGE (n:Person { email: properties.email })\n"+
			"ON CREATE SET n = properties\n"+
			"ON MATCH SET n += properties", q)
	})

	t.Run("preserve", func(t *testing.T) {
		q, err := NodeMergeQuery(schema, MergeOptions{Preserve: []string{"created"}})
		require.NoError(t, err)
		assert.Contains(t, q, "ON MATCH SET n += properties { .*, created: n.created }")
	})

	t.Run("append all", func(t *testing.T) {
		q, err := NodeMergeQuery(schema, MergeOptions{AppendProps: []string{"tags"}})
		require.NoError(t, err)
		assert.Contains(t, q, "tags: CASE WHEN properties.tags IS NULL THEN n.tags ELSE [] + coalesce(n.tags, []) + properties.tags END")
	})

	t.Run("append distinct", func(t *testing.T) {
		q, err := NodeMergeQuery(schema, MergeOptions{AppendProps: []string{"tags"}, AppendPolicy: AppendDistinct})
		require.NoError(t, err)
		assert.Contains(t, q, "reduce(acc = [] + coalesce(n.tags, []), v IN properties.tags | CASE WHEN v IN acc THEN acc ELSE acc + [v] END)")
	})

	t.Run("additional labels", func(t *testing.T) {
		withExtra := schema
		withExtra.AdditionalLabels = []string{"Imported"}
		q, err := NodeMergeQuery(withExtra, MergeOptions{})
		require.NoError(t, err)
		assert.Contains(t, q, "MERGE (n:Person { email: properties.email })")
		assert.Contains(t, q, "\nSET n:Imported")
	})

	t.Run("composite keys", func(t *testing.T) {
		q, err := NodeMergeQuery(NodeSchema{Labels: []string{"A", "B"}, MergeKeys: []string{"x", "y"}}, MergeOptions{})
		require.NoError(t, err)
		assert.Contains(t, q, "MERGE (n:A:B { x: properties.x, y: properties.y })")
	})

	t.Run("no keys", func(t *testing.T) {
		_, err := NodeMergeQuery(NodeSchema{Labels: []string{"Person"}}, MergeOptions{})
		require.Error(t, err)
		assert.True(t, ferrors.IsConfigurationError(err))
	})
}

func TestMergeNodes(t *testing.T) {
	schema := NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"email"}}

	t.Run("normalizes append values", func(t *testing.T) {
		rows := []props.Properties{{"email": "a@x.io", "tags": "b"}}
		statements, err := MergeNodes(schema, MergeOptions{AppendProps: []string{"tags"}}, rows, 0)
		require.NoError(t, err)
		require.Len(t, statements, 1)

		row := statements[0].Params["props"].([]any)[0].(map[string]any)
		assert.Equal(t, []any{"b"}, row["tags"])
		assert.Equal(t, "b", rows[0]["tags"], "input rows are not modified")
	})

	t.Run("missing key", func(t *testing.T) {
		rows := []props.Properties{{"email": "a@x.io"}, {"name": "no email"}}
		_, err := MergeNodes(schema, MergeOptions{}, rows, 0)
		require.Error(t, err)
		require.True(t, ferrors.IsDataError(err))

		var dataErr *ferrors.DataError
		require.ErrorAs(t, err, &dataErr)
		idx, ok := dataErr.Index()
		assert.True(t, ok)
		assert.Equal(t, 1, idx)
		assert.Equal(t, "email", dataErr.Key)
	})

	t.Run("nil key counts as missing", func(t *testing.T) {
		_, err := MergeNodes(schema, MergeOptions{}, []props.Properties{{"email": nil}}, 0)
		assert.True(t, ferrors.IsDataError(err))
	})
}

func TestRelationshipQueries(t *testing.T) {
	schema := RelationshipSchema{
		Type:        "WORKS_AT",
		StartLabels: []string{"Person"},
		EndLabels:   []string{"Company"},
		StartKeys:   []string{"email"},
		EndKeys:     []string{"name"},
	}

	t.Run("create", func(t *testing.T) {
		q, err := RelationshipCreateQuery(schema)
		require.NoError(t, err)
		assert.Equal(t, "UNWIND $rels AS rel\n"+
			"WITH rel, coalesce(rel.properties, {}) AS properties\n"+
			"MATCH (a:Person { email: rel.start.email })\n"+
			"MATCH (b:Company { name: rel.end.name })\n"+
			"CREATE (a)-[r:WORKS_AT]->(b)\n"+
			"SET r = properties", q)
	})

	t.Run("merge with preserve", func(t *testing.T) {
		q, err := RelationshipMergeQuery(schema, MergeOptions{Preserve: []string{"since"}})
		require.NoError(t, err)
		assert.Contains(t, q, "MERGE (a)-[r:WORKS_AT]->(b)")
		assert.Contains(t, q, "ON MATCH SET r += properties { .*, since: r.since }")
	})

	t.Run("invalid schema", func(t *testing.T) {
		bad := schema
		bad.Type = ""
		_, err := RelationshipCreateQuery(bad)
		assert.True(t, ferrors.IsConfigurationError(err))

		bad = schema
		bad.EndKeys = nil
		_, err = RelationshipMergeQuery(bad, MergeOptions{})
		assert.True(t, ferrors.IsConfigurationError(err))
	})

	t.Run("rows", func(t *testing.T) {
		rows := []RelationshipRow{
			{Start: props.Properties{"email": "a@x.io", "name": "A"}, End: props.Properties{"name": "Acme"}},
			{Start: props.Properties{"email": "b@x.io"}, End: props.Properties{"name": "Acme"}, Properties: props.Properties{"since": 2020}},
		}
		statements, err := CreateRelationships(schema, rows, 1)
		require.NoError(t, err)
		require.Len(t, statements, 2)

		first := statements[0].Params["rels"].([]any)[0].(map[string]any)
		assert.Equal(t, map[string]any{"email": "a@x.io"}, first["start"])
		assert.Equal(t, map[string]any{"name": "Acme"}, first["end"])
		assert.Equal(t, map[string]any{}, first["properties"])

		second := statements[1].Params["rels"].([]any)[0].(map[string]any)
		assert.Equal(t, map[string]any{"since": 2020}, second["properties"])
	})

	t.Run("missing end key", func(t *testing.T) {
		rows := []RelationshipRow{{Start: props.Properties{"email": "a@x.io"}, End: props.Properties{}}}
		_, err := MergeRelationships(schema, MergeOptions{}, rows, 0)
		require.True(t, ferrors.IsDataError(err))
		assert.Contains(t, err.Error(), "name")
	})
}

func TestIndexes(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		statements := NodeIndexes(NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"email"}})
		require.Len(t, statements, 1)
		assert.Equal(t, "CREATE INDEX IF NOT EXISTS FOR (n:Person) ON (n.email)", statements[0].Query)
	})

	t.Run("composite", func(t *testing.T) {
		statements := NodeIndexes(NodeSchema{Labels: []string{"Person"}, MergeKeys: []string{"first", "last"}})
		require.Len(t, statements, 3)
		assert.Equal(t, "CREATE INDEX IF NOT EXISTS FOR (n:Person) ON (n.first, n.last)", statements[2].Query)
	})

	t.Run("no keys", func(t *testing.T) {
		assert.Empty(t, NodeIndexes(NodeSchema{Labels: []string{"Person"}}))
	})

	t.Run("relationship endpoints", func(t *testing.T) {
		statements := RelationshipIndexes(RelationshipSchema{
			Type:        "KNOWS",
			StartLabels: []string{"Person"},
			EndLabels:   []string{"Person"},
			StartKeys:   []string{"email"},
			EndKeys:     []string{"email"},
		})
		require.Len(t, statements, 1)
		assert.Equal(t, "CREATE INDEX IF NOT EXISTS FOR (n:Person) ON (n.email)", statements[0].Query)
	})
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, "Person", Identifier("Person"))
	assert.Equal(t, "`first name`", Identifier("first name"))
	assert.Equal(t, "`a``b`", Identifier("a`b"))
	assert.Equal(t, ":Person:`Has Space`", LabelString([]string{"Person", "Has Space"}))
	assert.Equal(t, "", LabelString(nil))
}

func TestParseAppendPolicy(t *testing.T) {
	p, err := ParseAppendPolicy("DISTINCT")
	require.NoError(t, err)
	assert.Equal(t, AppendDistinct, p)

	p, err = ParseAppendPolicy("")
	require.NoError(t, err)
	assert.Equal(t, AppendAll, p)

	_, err = ParseAppendPolicy("sometimes")
	assert.Error(t, err)
}
