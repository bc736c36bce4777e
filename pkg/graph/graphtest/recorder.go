// Package graphtest provides an in-memory graph.Executor for tests.
package graphtest

import (
	"context"
	"strings"
	"sync"

	"github.com/Ramsey-B/fern/pkg/cypher"
	"github.com/Ramsey-B/fern/pkg/graph"
)

// Recorder records every statement it receives. Reads are answered by the first
// registered responder whose query fragment is contained in the statement.
type Recorder struct {
	mu         sync.Mutex
	writes     []cypher.Statement
	reads      []cypher.Statement
	responders []responder

	// WriteErr is returned by every write, or only by the zero-based FailOnCall write
	// when FailOnCall is not negative.
	WriteErr   error
	FailOnCall int

	// ReadErr is returned by every read.
	ReadErr error
}

type responder struct {
	fragment string
	records  []graph.Record
}

func NewRecorder() *Recorder {
	return &Recorder{FailOnCall: -1}
}

// RespondTo registers records returned for reads whose query contains fragment.
func (r *Recorder) RespondTo(fragment string, records ...graph.Record) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responders = append(r.responders, responder{fragment: fragment, records: records})
	return r
}

func (r *Recorder) Write(_ context.Context, stmt cypher.Statement) (graph.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := len(r.writes)
	r.writes = append(r.writes, stmt)
	if r.WriteErr != nil && (r.FailOnCall < 0 || r.FailOnCall == call) {
		return graph.Summary{}, r.WriteErr
	}
	return graph.Summary{}, nil
}

func (r *Recorder) Read(_ context.Context, stmt cypher.Statement) ([]graph.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, stmt)
	if r.ReadErr != nil {
		return nil, r.ReadErr
	}
	for _, resp := range r.responders {
		if strings.Contains(stmt.Query, resp.fragment) {
			return resp.records, nil
		}
	}
	return []graph.Record{}, nil
}

// Writes returns the recorded write statements in call order.
func (r *Recorder) Writes() []cypher.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cypher.Statement(nil), r.writes...)
}

// Reads returns the recorded read statements in call order.
func (r *Recorder) Reads() []cypher.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cypher.Statement(nil), r.reads...)
}

// LastRead returns the most recent read statement.
func (r *Recorder) LastRead() cypher.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reads) == 0 {
		return cypher.Statement{}
	}
	return r.reads[len(r.reads)-1]
}
