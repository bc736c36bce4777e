package cypher

import (
	"fmt"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
)

const (
	nodeParam    = "props"
	nodeVariable = "properties"
)

// NodeSchema describes the shape shared by all rows of a node batch.
type NodeSchema struct {
	Labels           []string
	MergeKeys        []string
	AdditionalLabels []string
}

func (s NodeSchema) allLabels() []string {
	labels := make([]string, 0, len(s.Labels)+len(s.AdditionalLabels))
	labels = append(labels, s.Labels...)
	return append(labels, s.AdditionalLabels...)
}

// NodeCreateQuery returns the statement template for unconditional node creation.
//
//	UNWIND $props AS properties
//	CREATE (n:Person)
//	SET n = properties
func NodeCreateQuery(schema NodeSchema) string {
	var q query
	q.add(
		fmt.Sprintf("UNWIND $%s AS %s", nodeParam, nodeVariable),
		fmt.Sprintf("CREATE (n%s)", LabelString(schema.allLabels())),
		fmt.Sprintf("SET n = %s", nodeVariable),
	)
	return q.String()
}

// NodeMergeQuery returns the statement template that merges nodes on their merge keys.
//
//	UNWIND $props AS properties
//	MERGE (n:Person { email: properties.email })
//	ON CREATE SET n = properties
//	ON MATCH SET n += properties
func NodeMergeQuery(schema NodeSchema, opts MergeOptions) (string, error) {
	if len(schema.MergeKeys) == 0 {
		return "", ferrors.NewConfigurationError("merge requires at least one merge key").AddField("merge_keys")
	}

	var q query
	q.add(
		fmt.Sprintf("UNWIND $%s AS %s", nodeParam, nodeVariable),
		fmt.Sprintf("MERGE (n%s %s)", LabelString(schema.Labels), keyMap(schema.MergeKeys, nodeVariable)),
		fmt.Sprintf("ON CREATE SET n = %s", nodeVariable),
		fmt.Sprintf("ON MATCH SET n += %s", onMatchUpdate("n", nodeVariable, opts)),
	)
	if len(schema.AdditionalLabels) > 0 {
		q.add(fmt.Sprintf("SET n%s", LabelString(schema.AdditionalLabels)))
	}
	return q.String(), nil
}

// CreateNodes returns one CREATE statement per batch of rows.
// Rows keep their insertion order; duplicates are created as separate nodes.
func CreateNodes(schema NodeSchema, rows []props.Properties, batchSize int) []Statement {
	q := NodeCreateQuery(schema)

	batches := Chunk(rows, batchSize)
	statements := make([]Statement, 0, len(batches))
	for _, batch := range batches {
		params := make([]any, len(batch))
		for i, row := range batch {
			params[i] = map[string]any(row)
		}
		statements = append(statements, Statement{Query: q, Params: map[string]any{nodeParam: params}})
	}
	return statements
}

// MergeNodes returns one MERGE statement per batch of rows. Every row must carry a
// non-nil value for every merge key.
func MergeNodes(schema NodeSchema, opts MergeOptions, rows []props.Properties, batchSize int) ([]Statement, error) {
	q, err := NodeMergeQuery(schema, opts)
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if _, missing := props.Project(row, schema.MergeKeys); len(missing) > 0 {
			return nil, ferrors.NewDataError("missing merge key value").AddIndex(i).AddKey(missing[0])
		}
	}

	batches := Chunk(rows, batchSize)
	statements := make([]Statement, 0, len(batches))
	for _, batch := range batches {
		params := make([]any, len(batch))
		for i, row := range batch {
			params[i] = map[string]any(normalizeAppendProps(row, opts.AppendProps))
		}
		statements = append(statements, Statement{Query: q, Params: map[string]any{nodeParam: params}})
	}
	return statements, nil
}

// NodeIndexes returns index statements for every label/merge key pair and a compound
// index over the ordered merge keys when there is more than one.
func NodeIndexes(schema NodeSchema) []Statement {
	var statements []Statement
	if len(schema.MergeKeys) == 0 {
		return statements
	}
	for _, label := range schema.Labels {
		for _, key := range schema.MergeKeys {
			statements = append(statements, Statement{Query: singleIndexQuery(label, key)})
		}
		if len(schema.MergeKeys) > 1 {
			statements = append(statements, Statement{Query: compositeIndexQuery(label, schema.MergeKeys)})
		}
	}
	return statements
}

// normalizeAppendProps returns row with every present append property turned into a list
func normalizeAppendProps(row props.Properties, appendProps []string) props.Properties {
	if len(appendProps) == 0 {
		return row
	}
	out := props.Clone(row)
	for _, k := range appendProps {
		if v, ok := out[k]; ok && v != nil {
			out[k] = props.ToList(v)
		}
	}
	return out
}
