package ogm

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/graph/graphtest"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var worksAt = Relationship{Source: "Person", Type: "WORKS_AT", Target: "Company"}

func newTestRegistry(t *testing.T) (*Registry, *graphtest.Recorder) {
	t.Helper()
	rec := graphtest.NewRecorder()
	r := NewRegistry(rec, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	require.NoError(t, r.Register(&Model{
		Name:      "Person",
		MergeKeys: []string{"email"},
		Preserve:  []string{"created"},
		Relationships: map[string]Relationship{
			"employer": worksAt,
			"friends":  {Source: "Person", Type: "KNOWS", Target: "Person"},
		},
	}))
	require.NoError(t, r.Register(&Model{
		Name:      "Company",
		MergeKeys: []string{"name"},
		Relationships: map[string]Relationship{
			"employees": worksAt,
		},
	}))
	return r, rec
}

func mustNode(t *testing.T, r *Registry, model string, p props.Properties) *Node {
	t.Helper()
	n, err := r.New(model, p)
	require.NoError(t, err)
	return n
}

func TestRegister_ResolvesSides(t *testing.T) {
	r, _ := newTestRegistry(t)

	person, ok := r.Model("Person")
	require.True(t, ok)
	company, ok := r.Model("Company")
	require.True(t, ok)

	employer, ok := person.Attachment("employer")
	require.True(t, ok)
	assert.Equal(t, SourceSide, employer.Side)
	assert.Equal(t, "Company", employer.Counterpart())

	employees, ok := company.Attachment("employees")
	require.True(t, ok)
	assert.Equal(t, TargetSide, employees.Side)
	assert.Equal(t, "Person", employees.Counterpart())

	friends, _ := person.Attachment("friends")
	assert.Equal(t, SourceSide, friends.Side, "self relationships are always on the source side")
	assert.True(t, friends.Relationship.SelfReferential())

	assert.Equal(t, []string{"Person"}, person.Labels, "labels default to the model name")
	assert.Len(t, r.Models(), 2)
	assert.Equal(t, "Company", r.Models()[0].Name)
}

func TestRegister_Errors(t *testing.T) {
	r, _ := newTestRegistry(t)

	testCases := []struct {
		name  string
		model *Model
	}{
		{name: "no name", model: &Model{MergeKeys: []string{"id"}}},
		{name: "no merge keys", model: &Model{Name: "Tag"}},
		{name: "already registered", model: &Model{Name: "Person", MergeKeys: []string{"email"}}},
		{name: "preserve and append", model: &Model{Name: "Tag", MergeKeys: []string{"id"}, Preserve: []string{"x"}, AppendProps: []string{"x"}}},
		{name: "unrelated relationship", model: &Model{Name: "Tag", MergeKeys: []string{"id"}, Relationships: map[string]Relationship{"x": worksAt}}},
		{name: "untyped relationship", model: &Model{Name: "Tag", MergeKeys: []string{"id"}, Relationships: map[string]Relationship{"x": {Source: "Tag", Target: "Tag"}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Register(tc.model)
			require.Error(t, err)
			assert.True(t, ferrors.IsConfigurationError(err))
		})
	}

	assert.True(t, r.Unregister("Company"))
	assert.False(t, r.Unregister("Company"))
	_, ok := r.Model("Company")
	assert.False(t, ok)
}

func TestBound_AddWritesSourceToTarget(t *testing.T) {
	for _, fromTarget := range []bool{false, true} {
		name := "from source side"
		if fromTarget {
			name = "from target side"
		}
		t.Run(name, func(t *testing.T) {
			r, rec := newTestRegistry(t)
			a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
			b := mustNode(t, r, "Company", props.Properties{"name": "Acme"})

			owner, field, other := a, "employer", b
			if fromTarget {
				owner, field, other = b, "employees", a
			}
			bound, err := owner.Rel(field)
			require.NoError(t, err)
			require.NoError(t, bound.Add(other, props.Properties{"since": 2020}))
			assert.Equal(t, 1, owner.Pending())

			require.NoError(t, owner.Merge(context.Background()))
			assert.Equal(t, 0, owner.Pending())

			writes := rec.Writes()
			require.Len(t, writes, 3)
			relStmt := writes[2]
			assert.Contains(t, relStmt.Query, "MATCH (a:Person { email: rel.start.email })")
			assert.Contains(t, relStmt.Query, "MATCH (b:Company { name: rel.end.name })")
			assert.Contains(t, relStmt.Query, "MERGE (a)-[r:WORKS_AT]->(b)")

			row := relStmt.Params["rels"].([]any)[0].(map[string]any)
			assert.Equal(t, map[string]any{"email": "a@x"}, row["start"])
			assert.Equal(t, map[string]any{"name": "Acme"}, row["end"])
			assert.Equal(t, map[string]any{"since": 2020}, row["properties"])
		})
	}
}

func TestBound_AllTraversesIncoming(t *testing.T) {
	r, rec := newTestRegistry(t)
	rec.RespondTo("(n0)<-[r1:WORKS_AT]-(n1:Person)", graph.Record{
		"n": graph.Node{ElementID: "4:x:1", Labels: []string{"Person"}, Properties: map[string]any{"email": "a@x"}},
	})

	b := mustNode(t, r, "Company", props.Properties{"name": "Acme"})
	employees, err := b.Rel("employees")
	require.NoError(t, err)

	nodes, err := employees.All(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Person", nodes[0].Model().Name)
	assert.Equal(t, "a@x", nodes[0].Get("email"))
	assert.Equal(t, "4:x:1", nodes[0].ElementID())

	stmt := rec.LastRead()
	assert.Equal(t, "MATCH (n0:Company)\n"+
		"WHERE n0.name = $p0\n"+
		"MATCH (n0)<-[r1:WORKS_AT]-(n1:Person)\n"+
		"RETURN DISTINCT n1 AS n", stmt.Query)
	assert.Equal(t, map[string]any{"p0": "Acme"}, stmt.Params)
}

func TestBound_SourceSideTraversesOutgoing(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
	employer, err := a.Rel("employer")
	require.NoError(t, err)

	stmt, err := employer.Query().Statement()
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "MATCH (n0)-[r1:WORKS_AT]->(n1:Company)")

	friends, err := a.Rel("friends")
	require.NoError(t, err)
	stmt, err = friends.Query().Statement()
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, "MATCH (n0)-[r1:KNOWS]->(n1:Person)")
}

func TestBound_QueryNeedsOwnerMergeKey(t *testing.T) {
	r, rec := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"name": "no email"})
	employer, err := a.Rel("employer")
	require.NoError(t, err)

	assertMissingEmail := func(err error) {
		t.Helper()
		var dataErr *ferrors.DataError
		require.ErrorAs(t, err, &dataErr)
		assert.Equal(t, "email", dataErr.Key)
	}

	_, err = employer.All(context.Background())
	assertMissingEmail(err)
	_, ok, err := employer.First(context.Background())
	assert.False(t, ok)
	assertMissingEmail(err)
	_, err = employer.Count(context.Background())
	assertMissingEmail(err)
	_, err = employer.Match(Field("name").Eq("Acme")).Filter(Field("since").Gt(2000)).All(context.Background())
	assertMissingEmail(err)
	_, err = employer.Query().Traverse("employees").Statement()
	assertMissingEmail(err)

	assert.Empty(t, rec.Reads())
}

func TestBound_AddValidatesCounterpart(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
	other := mustNode(t, r, "Person", props.Properties{"email": "b@x"})

	employer, err := a.Rel("employer")
	require.NoError(t, err)
	assert.True(t, ferrors.IsConfigurationError(employer.Add(other, nil)))
	assert.True(t, ferrors.IsDataError(employer.Add(nil, nil)))

	_, err = a.Rel("missing")
	assert.True(t, ferrors.IsConfigurationError(err))
}

func TestBound_SelfRelationshipKeepsDirection(t *testing.T) {
	r, rec := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
	b := mustNode(t, r, "Person", props.Properties{"email": "b@x"})

	friends, err := a.Rel("friends")
	require.NoError(t, err)
	require.NoError(t, friends.Add(b, nil))
	require.NoError(t, a.Create(context.Background()))

	writes := rec.Writes()
	require.Len(t, writes, 3)
	assert.Contains(t, writes[0].Query, "CREATE (n:Person)")
	assert.Contains(t, writes[1].Query, "MERGE (n:Person { email: properties.email })")
	assert.Contains(t, writes[2].Query, "CREATE (a)-[r:KNOWS]->(b)")

	row := writes[2].Params["rels"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"email": "a@x"}, row["start"])
	assert.Equal(t, map[string]any{"email": "b@x"}, row["end"])
}

func TestQuery_Terminals(t *testing.T) {
	r, rec := newTestRegistry(t)
	rec.RespondTo("count(DISTINCT", graph.Record{"count": int64(3)})

	count, err := r.Match("Person").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	n, ok, err := r.Match("Person", Field("email").Eq("nobody@x")).First(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, n)
	assert.Contains(t, rec.LastRead().Query, "LIMIT 1")
}

func TestQuery_IsImmutable(t *testing.T) {
	r, _ := newTestRegistry(t)

	base := r.Match("Person")
	adults := base.Match(Field("age").Gte(18))
	minors := base.Match(Field("age").Lt(18))

	assert.IsType(t, MatchNode{}, base.Expr())
	assert.IsType(t, FilterNode{}, adults.Expr())

	adultsStmt, err := adults.Statement()
	require.NoError(t, err)
	minorsStmt, err := minors.Statement()
	require.NoError(t, err)
	assert.Contains(t, adultsStmt.Query, "WHERE n0.age >= $p0")
	assert.Contains(t, minorsStmt.Query, "WHERE n0.age < $p0")
}

func TestQuery_ChainedTraversal(t *testing.T) {
	r, _ := newTestRegistry(t)

	q := r.Match("Person", Field("email").Eq("a@x")).
		Traverse("friends").
		Filter(Field("since").Lt(2020)).
		Match(Field("name").StartsWith("B")).
		Traverse("employer")

	stmt, err := q.Statement()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n0:Person)\n"+
		"WHERE n0.email = $p0\n"+
		"MATCH (n0)-[r1:KNOWS]->(n1:Person)\n"+
		"WHERE r1.since < $p1 AND n1.name STARTS WITH $p2\n"+
		"MATCH (n1)-[r2:WORKS_AT]->(n2:Company)\n"+
		"RETURN DISTINCT n2 AS n", stmt.Query)
	assert.Equal(t, map[string]any{"p0": "a@x", "p1": 2020, "p2": "B"}, stmt.Params)
}

func TestQuery_Errors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Match("Person").Filter(Field("since").Gt(1)).Statement()
	assert.True(t, ferrors.IsConfigurationError(err))

	_, err = r.Match("Person").Traverse("unknown").Statement()
	assert.True(t, ferrors.IsConfigurationError(err))

	_, err = r.Match("Animal").Statement()
	assert.True(t, ferrors.IsConfigurationError(err))

	offline := NewRegistry(nil, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, offline.Register(&Model{Name: "Person", MergeKeys: []string{"email"}}))
	_, err = offline.Match("Person").All(context.Background())
	assert.True(t, ferrors.IsConfigurationError(err))
}

func TestQuery_ReadErrorWithoutLogger(t *testing.T) {
	rec := graphtest.NewRecorder()
	rec.ReadErr = errors.New("connection refused")
	r := NewRegistry(rec, nil)
	require.NoError(t, r.Register(&Model{Name: "Person", MergeKeys: []string{"email"}}))

	_, err := r.Match("Person").All(context.Background())
	assert.ErrorIs(t, err, rec.ReadErr)
	_, err = r.Match("Person").Count(context.Background())
	assert.ErrorIs(t, err, rec.ReadErr)
}

func TestNode_SaveWritesNothingWhenRelationshipInvalid(t *testing.T) {
	r, rec := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
	nameless := mustNode(t, r, "Company", props.Properties{"founded": 1815})

	employer, err := a.Rel("employer")
	require.NoError(t, err)
	require.NoError(t, employer.Add(nameless, nil))

	err = a.Merge(context.Background())
	assert.True(t, ferrors.IsSchemaError(err))
	assert.Empty(t, rec.Writes())
	assert.Equal(t, 1, a.Pending())
}

func TestLowering(t *testing.T) {
	r, _ := newTestRegistry(t)

	rs, err := r.RelationshipSet("Company", "employees")
	require.NoError(t, err)
	assert.Equal(t, "WORKS_AT", rs.RelType)
	assert.Equal(t, []string{"Person"}, rs.StartLabels)
	assert.Equal(t, []string{"email"}, rs.StartKeys)
	assert.Equal(t, []string{"Company"}, rs.EndLabels)
	assert.Equal(t, 0, rs.Len())

	a := mustNode(t, r, "Person", props.Properties{"email": "a@x", "name": "Ada"})
	b := mustNode(t, r, "Company", props.Properties{"name": "Acme"})
	added, err := rs.Add(a, b, nil)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, props.Properties{"email": "a@x"}, rs.Relationships()[0].Start)

	ns, err := r.NodeSet("Person")
	require.NoError(t, err)
	assert.Equal(t, []string{"created"}, ns.Preserve())
	added, err = ns.Add(a)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, ns.Len())

	bound, err := b.Rel("employees")
	require.NoError(t, err)
	people, err := bound.NodeSet()
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, people.Labels)

	_, err = r.RelationshipSet("Person", "missing")
	assert.True(t, ferrors.IsConfigurationError(err))
}

func TestDelete(t *testing.T) {
	r, rec := newTestRegistry(t)
	a := mustNode(t, r, "Person", props.Properties{"email": "a@x"})
	b := mustNode(t, r, "Company", props.Properties{"name": "Acme"})

	require.NoError(t, a.Delete(context.Background()))
	employees, err := b.Rel("employees")
	require.NoError(t, err)
	require.NoError(t, employees.Delete(context.Background(), a))

	writes := rec.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "MATCH (n:Person)\nWHERE n.email = $p0\nDETACH DELETE n", writes[0].Query)
	assert.Equal(t, map[string]any{"p0": "a@x"}, writes[0].Params)
	assert.Equal(t, "MATCH (n0:Company)\n"+
		"WHERE n0.name = $p0\n"+
		"MATCH (n0)<-[r1:WORKS_AT]-(n1:Person)\n"+
		"WHERE n1.email = $p1\n"+
		"DELETE r1", writes[1].Query)

	keyless := mustNode(t, r, "Person", props.Properties{"name": "no email"})
	assert.True(t, ferrors.IsDataError(keyless.Delete(context.Background())))
}

func TestIndexes(t *testing.T) {
	r, rec := newTestRegistry(t)

	statements := r.IndexStatements()
	require.Len(t, statements, 2)
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS FOR (n:Company) ON (n.name)", statements[0].Query)

	require.NoError(t, r.CreateIndexes(context.Background()))
	assert.Len(t, rec.Writes(), 2)
}
