package cypher

import (
	"fmt"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
)

const (
	relParam    = "rels"
	relVariable = "rel"
	relProps    = "properties"
)

// RelationshipSchema describes the shape shared by all rows of a relationship batch.
type RelationshipSchema struct {
	Type        string
	StartLabels []string
	EndLabels   []string
	StartKeys   []string
	EndKeys     []string
}

// RelationshipRow is one staged relationship: matchers for the start and end node
// and the relationship's own properties.
type RelationshipRow struct {
	Start      props.Properties `json:"start"`
	End        props.Properties `json:"end"`
	Properties props.Properties `json:"properties"`
}

// relationshipMatch renders the shared UNWIND/MATCH prefix
//
//	UNWIND $rels AS rel
//	WITH rel, coalesce(rel.properties, {}) AS properties
//	MATCH (a:Person { email: rel.start.email })
//	MATCH (b:Company { name: rel.end.name })
func relationshipMatch(schema RelationshipSchema) query {
	var q query
	q.add(
		fmt.Sprintf("UNWIND $%s AS %s", relParam, relVariable),
		fmt.Sprintf("WITH %s, coalesce(%s.%s, {}) AS %s", relVariable, relVariable, relProps, relProps),
		fmt.Sprintf("MATCH (a%s %s)", LabelString(schema.StartLabels), keyMap(schema.StartKeys, relVariable+".start")),
		fmt.Sprintf("MATCH (b%s %s)", LabelString(schema.EndLabels), keyMap(schema.EndKeys, relVariable+".end")),
	)
	return q
}

func validateRelationshipSchema(schema RelationshipSchema) error {
	if schema.Type == "" {
		return ferrors.NewConfigurationError("relationship type is required").AddField("rel_type")
	}
	if len(schema.StartKeys) == 0 {
		return ferrors.NewConfigurationError("at least one start node match key is required").AddField("start_keys")
	}
	if len(schema.EndKeys) == 0 {
		return ferrors.NewConfigurationError("at least one end node match key is required").AddField("end_keys")
	}
	return nil
}

// RelationshipCreateQuery returns the template for unconditional relationship creation.
func RelationshipCreateQuery(schema RelationshipSchema) (string, error) {
	if err := validateRelationshipSchema(schema); err != nil {
		return "", err
	}
	q := relationshipMatch(schema)
	q.add(
		fmt.Sprintf("CREATE (a)-[r:%s]->(b)", Identifier(schema.Type)),
		fmt.Sprintf("SET r = %s", relProps),
	)
	return q.String(), nil
}

// RelationshipMergeQuery returns the template that merges one relationship of the
// schema's type between each matched start and end node.
func RelationshipMergeQuery(schema RelationshipSchema, opts MergeOptions) (string, error) {
	if err := validateRelationshipSchema(schema); err != nil {
		return "", err
	}
	q := relationshipMatch(schema)
	q.add(
		fmt.Sprintf("MERGE (a)-[r:%s]->(b)", Identifier(schema.Type)),
		fmt.Sprintf("ON CREATE SET r = %s", relProps),
		fmt.Sprintf("ON MATCH SET r += %s", onMatchUpdate("r", relProps, opts)),
	)
	return q.String(), nil
}

// CreateRelationships returns one CREATE statement per batch of rows.
func CreateRelationships(schema RelationshipSchema, rows []RelationshipRow, batchSize int) ([]Statement, error) {
	q, err := RelationshipCreateQuery(schema)
	if err != nil {
		return nil, err
	}
	return relationshipStatements(q, schema, MergeOptions{}, rows, batchSize)
}

// MergeRelationships returns one MERGE statement per batch of rows.
func MergeRelationships(schema RelationshipSchema, opts MergeOptions, rows []RelationshipRow, batchSize int) ([]Statement, error) {
	q, err := RelationshipMergeQuery(schema, opts)
	if err != nil {
		return nil, err
	}
	return relationshipStatements(q, schema, opts, rows, batchSize)
}

func relationshipStatements(q string, schema RelationshipSchema, opts MergeOptions, rows []RelationshipRow, batchSize int) ([]Statement, error) {
	for i, row := range rows {
		if _, missing := props.Project(row.Start, schema.StartKeys); len(missing) > 0 {
			return nil, ferrors.NewDataError("missing start node match key value").AddIndex(i).AddKey(missing[0])
		}
		if _, missing := props.Project(row.End, schema.EndKeys); len(missing) > 0 {
			return nil, ferrors.NewDataError("missing end node match key value").AddIndex(i).AddKey(missing[0])
		}
	}

	batches := Chunk(rows, batchSize)
	statements := make([]Statement, 0, len(batches))
	for _, batch := range batches {
		params := make([]any, len(batch))
		for i, row := range batch {
			relProperties := row.Properties
			if relProperties == nil {
				relProperties = props.Properties{}
			}
			params[i] = map[string]any{
				"start":      map[string]any(props.Select(row.Start, schema.StartKeys)),
				"end":        map[string]any(props.Select(row.End, schema.EndKeys)),
				"properties": map[string]any(normalizeAppendProps(relProperties, opts.AppendProps)),
			}
		}
		statements = append(statements, Statement{Query: q, Params: map[string]any{relParam: params}})
	}
	return statements, nil
}

// RelationshipIndexes returns one single-property index per start label/start key
// and end label/end key. The relationship type itself is never indexed.
func RelationshipIndexes(schema RelationshipSchema) []Statement {
	var statements []Statement
	seen := make(map[string]bool)
	add := func(labels, keys []string) {
		for _, label := range labels {
			for _, key := range keys {
				q := singleIndexQuery(label, key)
				if seen[q] {
					continue
				}
				seen[q] = true
				statements = append(statements, Statement{Query: q})
			}
		}
	}
	add(schema.StartLabels, schema.StartKeys)
	add(schema.EndLabels, schema.EndKeys)
	return statements
}
