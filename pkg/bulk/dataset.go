package bulk

import (
	"github.com/Ramsey-B/fern/pkg/cypher"
)

// Dataset is a container whose staged entities can be written by a Writer.
// NodeSet and RelationshipSet implement it.
type Dataset interface {
	Len() int
	String() string
	Metadata() Metadata
	Statements(mode Mode, batchSize int) ([]cypher.Statement, error)
	IndexStatements() []cypher.Statement
}

var (
	_ Dataset = (*NodeSet)(nil)
	_ Dataset = (*RelationshipSet)(nil)
)
