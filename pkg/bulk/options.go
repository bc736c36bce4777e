// Package bulk holds the containers that stage homogeneous nodes and relationships
// in memory and the writer that loads them into the graph store in batches.
package bulk

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/cypher"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
)

// Mode selects between unconditional creation and match-or-create writes.
type Mode int

const (
	ModeCreate Mode = iota
	ModeMerge
)

func (m Mode) String() string {
	if m == ModeMerge {
		return "merge"
	}
	return "create"
}

// ParseMode parses "create" or "merge".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ModeCreate, nil
	case "merge":
		return ModeMerge, nil
	}
	return ModeCreate, fmt.Errorf("unknown write mode %q", s)
}

// Option configures a NodeSet or RelationshipSet.
type Option func(*options)

type options struct {
	defaultProps     props.Properties
	preserve         []string
	appendProps      []string
	appendPolicy     cypher.AppendPolicy
	batchSize        int
	deduplicate      bool
	additionalLabels []string
}

// WithDefaultProps merges p into every staged entity. Staged values win on collision.
func WithDefaultProps(p props.Properties) Option {
	return func(o *options) {
		o.defaultProps = props.Clone(p)
	}
}

// WithPreserve names properties that keep their stored value when a merge matches.
func WithPreserve(keys ...string) Option {
	return func(o *options) {
		o.preserve = append(o.preserve, keys...)
	}
}

// WithAppendProps names properties appended to the stored list when a merge matches.
func WithAppendProps(keys ...string) Option {
	return func(o *options) {
		o.appendProps = append(o.appendProps, keys...)
	}
}

func WithAppendPolicy(p cypher.AppendPolicy) Option {
	return func(o *options) {
		o.appendPolicy = p
	}
}

// WithBatchSize overrides the number of rows per generated statement for this container.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithDeduplication rejects entities whose merge-key tuple was already staged.
func WithDeduplication() Option {
	return func(o *options) {
		o.deduplicate = true
	}
}

// WithAdditionalLabels adds labels that are set on written nodes but not used for matching.
func WithAdditionalLabels(labels ...string) Option {
	return func(o *options) {
		o.additionalLabels = append(o.additionalLabels, labels...)
	}
}

func buildOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.batchSize < 0 {
		return o, ferrors.NewConfigurationErrorf("batch size must be positive, got %d", o.batchSize).AddField("batch_size")
	}
	if err := checkNames("preserve", o.preserve); err != nil {
		return o, err
	}
	if err := checkNames("append_props", o.appendProps); err != nil {
		return o, err
	}

	preserved := make(map[string]bool, len(o.preserve))
	for _, k := range o.preserve {
		preserved[k] = true
	}
	for _, k := range o.appendProps {
		if preserved[k] {
			return o, ferrors.NewConfigurationErrorf("property %q cannot be both preserved and appended", k).AddField("preserve")
		}
	}
	return o, nil
}

// checkNames rejects empty and repeated names in a key list.
func checkNames(field string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return ferrors.NewConfigurationError("empty property name").AddField(field)
		}
		if seen[n] {
			return ferrors.NewConfigurationErrorf("duplicate property name %q", n).AddField(field)
		}
		seen[n] = true
	}
	return nil
}

func (o options) mergeOptions() cypher.MergeOptions {
	return cypher.MergeOptions{
		Preserve:     o.preserve,
		AppendProps:  o.appendProps,
		AppendPolicy: o.appendPolicy,
	}
}

// resolveBatchSize prefers the container's own batch size over fallback.
func (o options) resolveBatchSize(fallback int) int {
	if o.batchSize > 0 {
		return o.batchSize
	}
	if fallback > 0 {
		return fallback
	}
	return cypher.DefaultBatchSize
}

func (o options) asOptions() []Option {
	var out []Option
	if len(o.defaultProps) > 0 {
		out = append(out, WithDefaultProps(o.defaultProps))
	}
	if len(o.preserve) > 0 {
		out = append(out, WithPreserve(o.preserve...))
	}
	if len(o.appendProps) > 0 {
		out = append(out, WithAppendProps(o.appendProps...))
	}
	out = append(out, WithAppendPolicy(o.appendPolicy), WithBatchSize(o.batchSize))
	if o.deduplicate {
		out = append(out, WithDeduplication())
	}
	if len(o.additionalLabels) > 0 {
		out = append(out, WithAdditionalLabels(o.additionalLabels...))
	}
	return out
}
