package ogm

import (
	"context"
	"sort"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/bulk"
	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/go-playground/validator/v10"
)

// Registry holds the registered models and the executor used by point queries.
// The executor may be nil when the registry is only used to build containers.
type Registry struct {
	exec     graph.Executor
	logger   ectologger.Logger
	validate *validator.Validate

	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty registry. A nil logger discards log output.
func NewRegistry(exec graph.Executor, logger ectologger.Logger) *Registry {
	if logger == nil {
		logger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	}
	return &Registry{
		exec:     exec,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		models:   make(map[string]*Model),
	}
}

// Register validates m, resolves the side of each of its relationships and adds it to
// the registry. Labels default to the model name.
func (r *Registry) Register(m *Model) error {
	if m == nil || m.Name == "" {
		return ferrors.NewConfigurationError("model name is required").AddField("name")
	}
	if len(m.Labels) == 0 {
		m.Labels = []string{m.Name}
	}
	if len(m.MergeKeys) == 0 {
		return ferrors.NewConfigurationErrorf("model %q needs at least one merge key", m.Name).AddField("merge_keys")
	}

	// containers run the same preserve/append and name checks
	if _, err := bulk.NewNodeSet(m.Labels, m.MergeKeys, m.nodeOptions()...); err != nil {
		return err
	}

	attachments := make(map[string]Attachment, len(m.Relationships))
	for field, rel := range m.Relationships {
		if rel.Type == "" {
			return ferrors.NewConfigurationErrorf("relationship %q of model %q has no type", field, m.Name).AddField("relationships")
		}
		var side Side
		switch m.Name {
		case rel.Source:
			side = SourceSide
		case rel.Target:
			side = TargetSide
		default:
			return ferrors.NewConfigurationErrorf("relationship %q %s does not involve model %q", field, rel, m.Name).AddField("relationships")
		}
		attachments[field] = Attachment{Field: field, Relationship: rel, Side: side}
	}
	m.attachments = attachments

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[m.Name]; ok {
		return ferrors.NewConfigurationErrorf("model %q is already registered", m.Name).AddField("name")
	}
	r.models[m.Name] = m

	r.logger.WithFields(map[string]any{
		"model":         m.Name,
		"labels":        m.Labels,
		"relationships": len(attachments),
	}).Debug("Registered model")
	return nil
}

// Unregister removes the model and reports whether it was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.models[name]
	delete(r.models, name)
	return ok
}

// Model returns the registered model with the given name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns every registered model ordered by name.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) model(name string) (*Model, error) {
	m, ok := r.Model(name)
	if !ok {
		return nil, ferrors.NewConfigurationErrorf("model %q is not registered", name).AddField("model")
	}
	return m, nil
}

// IndexStatements returns the merge-key indexes of every registered model.
func (r *Registry) IndexStatements() []cypher.Statement {
	var statements []cypher.Statement
	for _, m := range r.Models() {
		statements = append(statements, cypher.NodeIndexes(m.schema())...)
	}
	return statements
}

// CreateIndexes runs IndexStatements against the executor.
func (r *Registry) CreateIndexes(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "ogm.Registry.CreateIndexes")
	defer span.End()

	exec, err := r.executor()
	if err != nil {
		return err
	}
	for i, stmt := range r.IndexStatements() {
		if _, err := exec.Write(ctx, stmt); err != nil {
			tracing.RecordError(span, err)
			return ferrors.NewStoreExecutionError("index", err).AddBatch(i)
		}
	}
	return nil
}

func (r *Registry) executor() (graph.Executor, error) {
	if r.exec == nil {
		return nil, ferrors.NewConfigurationError("registry has no executor").AddField("executor")
	}
	return r.exec, nil
}

// NodeSet returns an empty NodeSet carrying the model's schema and merge options.
func (r *Registry) NodeSet(model string, opts ...bulk.Option) (*bulk.NodeSet, error) {
	m, err := r.model(model)
	if err != nil {
		return nil, err
	}
	return bulk.NewNodeSet(m.Labels, m.MergeKeys, append(m.nodeOptions(), opts...)...)
}

// RelationshipSet returns an empty RelationshipSet for the relationship attached to
// model under field, always oriented from source to target.
func (r *Registry) RelationshipSet(model, field string, opts ...bulk.Option) (*bulk.RelationshipSet, error) {
	m, err := r.model(model)
	if err != nil {
		return nil, err
	}
	att, ok := m.Attachment(field)
	if !ok {
		return nil, ferrors.NewConfigurationErrorf("model %q has no relationship %q", model, field).AddField("relationships")
	}
	return r.relationshipSet(att.Relationship, opts...)
}

func (r *Registry) relationshipSet(rel Relationship, opts ...bulk.Option) (*bulk.RelationshipSet, error) {
	source, err := r.model(rel.Source)
	if err != nil {
		return nil, err
	}
	target, err := r.model(rel.Target)
	if err != nil {
		return nil, err
	}
	return bulk.NewRelationshipSet(cypher.RelationshipSchema{
		Type:        rel.Type,
		StartLabels: source.Labels,
		StartKeys:   source.MergeKeys,
		EndLabels:   target.Labels,
		EndKeys:     target.MergeKeys,
	}, opts...)
}

// New creates an unsaved node of model from a struct (fields tagged `graph:"name"`,
// checked with `validate` tags) or a property map. Default properties are merged in.
func (r *Registry) New(model string, value any) (*Node, error) {
	m, err := r.model(model)
	if err != nil {
		return nil, err
	}
	p, err := r.encode(value)
	if err != nil {
		return nil, err
	}
	return &Node{
		registry: r,
		model:    m,
		props:    props.Merge(m.DefaultProps, p),
	}, nil
}

// Match starts a query over every node of model.
func (r *Registry) Match(model string, preds ...Predicate) Query {
	return Query{registry: r, expr: MatchNode{Model: model, Predicates: preds}}
}
