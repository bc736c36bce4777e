// Package interchange stores containers on disk so they can be staged without a live
// store: a YAML metadata file next to a CSV table, or one self-contained JSON document.
package interchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/bulk"
	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
	"gopkg.in/yaml.v3"
)

const (
	MetaSuffix  = ".meta.yaml"
	TableSuffix = ".csv"

	startPrefix = "start_"
	endPrefix   = "end_"
	relPrefix   = "rel_"
)

// Paths returns the metadata and table file paths for name in dir.
func Paths(dir, name string) (meta, table string) {
	return filepath.Join(dir, name+MetaSuffix), filepath.Join(dir, name+TableSuffix)
}

// Write stores d as name.meta.yaml and name.csv in dir. An empty name uses the
// container's object file name. It returns the name used.
func Write(dir, name string, d bulk.Dataset) (string, error) {
	switch t := d.(type) {
	case *bulk.NodeSet:
		if name == "" {
			name = t.ObjectFileName("")
		}
		return name, WriteNodeSet(dir, name, t)
	case *bulk.RelationshipSet:
		if name == "" {
			name = t.ObjectFileName("")
		}
		return name, WriteRelationshipSet(dir, name, t)
	}
	return "", ferrors.NewConfigurationErrorf("unsupported container type %T", d)
}

// WriteNodeSet writes one column per property key and one row per node.
func WriteNodeSet(dir, name string, ns *bulk.NodeSet) error {
	keys := ns.AllPropertyKeys()
	rows := make([][]string, 0, ns.Len())
	for _, n := range ns.Nodes() {
		row, err := encodeRow(n, keys)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return writeFiles(dir, name, ns.Metadata(), keys, rows)
}

// WriteRelationshipSet writes start_<key>, end_<key> and rel_<key> columns.
func WriteRelationshipSet(dir, name string, rs *bulk.RelationshipSet) error {
	relKeys := rs.AllPropertyKeys()
	header := make([]string, 0, len(rs.StartKeys)+len(rs.EndKeys)+len(relKeys))
	header = append(header, prefixed(startPrefix, rs.StartKeys)...)
	header = append(header, prefixed(endPrefix, rs.EndKeys)...)
	header = append(header, prefixed(relPrefix, relKeys)...)

	rows := make([][]string, 0, rs.Len())
	for _, r := range rs.Relationships() {
		start, err := encodeRow(r.Start, rs.StartKeys)
		if err != nil {
			return err
		}
		end, err := encodeRow(r.End, rs.EndKeys)
		if err != nil {
			return err
		}
		rel, err := encodeRow(r.Properties, relKeys)
		if err != nil {
			return err
		}
		rows = append(rows, append(append(start, end...), rel...))
	}
	return writeFiles(dir, name, rs.Metadata(), header, rows)
}

func prefixed(prefix string, keys []string) []string {
	return ectolinq.Map(keys, func(k string) string {
		return prefix + k
	})
}

func writeFiles(dir, name string, meta bulk.Metadata, header []string, rows [][]string) error {
	metaPath, tablePath := Paths(dir, name)

	metaBytes, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	f, err := os.Create(tablePath)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write table rows: %w", err)
	}
	return f.Close()
}

// encodeRow renders the values of keys as JSON literals. Absent keys become empty cells.
func encodeRow(p props.Properties, keys []string) ([]string, error) {
	row := make([]string, len(keys))
	for i, k := range keys {
		v, ok := p[k]
		if !ok {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, ferrors.NewDataError(err.Error()).AddKey(k)
		}
		row[i] = string(b)
	}
	return row, nil
}

// ReadMetadata reads name.meta.yaml from dir.
func ReadMetadata(dir, name string) (bulk.Metadata, error) {
	var meta bulk.Metadata
	metaPath, _ := Paths(dir, name)
	b, err := os.ReadFile(metaPath)
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := yaml.Unmarshal(b, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// Read loads the container stored under name, choosing the kind from its metadata.
// Options in defaults apply where the metadata is silent.
func Read(dir, name string, defaults ...bulk.Option) (bulk.Dataset, error) {
	meta, err := ReadMetadata(dir, name)
	if err != nil {
		return nil, err
	}
	switch meta.Kind {
	case bulk.KindNodes:
		ns, err := ReadNodeSet(dir, name, defaults...)
		if err != nil {
			return nil, err
		}
		return ns, nil
	case bulk.KindRelationships:
		rs, err := ReadRelationshipSet(dir, name, defaults...)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
	return nil, ferrors.NewConfigurationErrorf("unknown container kind %q", meta.Kind).AddField("kind")
}

// ReadNodeSet loads a NodeSet written by WriteNodeSet.
func ReadNodeSet(dir, name string, defaults ...bulk.Option) (*bulk.NodeSet, error) {
	meta, err := ReadMetadata(dir, name)
	if err != nil {
		return nil, err
	}
	ns, err := bulk.NewNodeSetFromMetadata(meta, defaults...)
	if err != nil {
		return nil, err
	}

	err = readTable(dir, name, func(header, record []string, line int) error {
		p, err := decodeRow(header, record, line)
		if err != nil {
			return err
		}
		ns.ForceAddNode(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// ReadRelationshipSet loads a RelationshipSet written by WriteRelationshipSet.
func ReadRelationshipSet(dir, name string, defaults ...bulk.Option) (*bulk.RelationshipSet, error) {
	meta, err := ReadMetadata(dir, name)
	if err != nil {
		return nil, err
	}
	rs, err := bulk.NewRelationshipSetFromMetadata(meta, defaults...)
	if err != nil {
		return nil, err
	}

	err = readTable(dir, name, func(header, record []string, line int) error {
		p, err := decodeRow(header, record, line)
		if err != nil {
			return err
		}
		start, end, rel := props.Properties{}, props.Properties{}, props.Properties{}
		for k, v := range p {
			switch {
			case strings.HasPrefix(k, startPrefix):
				start[strings.TrimPrefix(k, startPrefix)] = v
			case strings.HasPrefix(k, endPrefix):
				end[strings.TrimPrefix(k, endPrefix)] = v
			case strings.HasPrefix(k, relPrefix):
				rel[strings.TrimPrefix(k, relPrefix)] = v
			default:
				return ferrors.NewDataErrorf("unexpected column on line %d", line).AddKey(k)
			}
		}
		return rs.ForceAddRelationship(start, end, rel)
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func readTable(dir, name string, fn func(header, record []string, line int) error) error {
	_, tablePath := Paths(dir, name)
	f, err := os.Open(tablePath)
	if err != nil {
		return fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read table header: %w", err)
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read table line %d: %w", line, err)
		}
		if err := fn(header, record, line); err != nil {
			return err
		}
	}
}

// decodeRow parses the JSON literal cells of one record. Integral numbers become int64.
func decodeRow(header, record []string, line int) (props.Properties, error) {
	p := make(props.Properties, len(header))
	for i, k := range header {
		if i >= len(record) || record[i] == "" {
			continue
		}
		v, err := decodeValue(record[i])
		if err != nil {
			return nil, ferrors.NewDataErrorf("invalid value on line %d: %v", line, err).AddKey(k)
		}
		p[k] = v
	}
	return p, nil
}

func decodeValue(cell string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(cell)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
		return t
	}
	return v
}

type document struct {
	Metadata      bulk.Metadata       `json:"metadata"`
	Nodes         []props.Properties  `json:"nodes,omitempty"`
	Relationships []bulk.Relationship `json:"relationships,omitempty"`
}

// WriteJSON writes d as one self-contained JSON document holding its metadata and
// every staged entity. The document is meant for inspection and is not read back.
func WriteJSON(w io.Writer, d bulk.Dataset) error {
	doc := document{Metadata: d.Metadata()}
	switch t := d.(type) {
	case *bulk.NodeSet:
		doc.Nodes = t.Nodes()
	case *bulk.RelationshipSet:
		doc.Relationships = t.Relationships()
	default:
		return ferrors.NewConfigurationErrorf("unsupported container type %T", d)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}
