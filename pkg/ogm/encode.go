package ogm

import (
	"errors"
	"reflect"
	"strings"
	"time"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/props"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

const tagName = "graph"

// encode turns a struct or property map into validated properties.
func (r *Registry) encode(value any) (props.Properties, error) {
	var p props.Properties
	switch v := value.(type) {
	case props.Properties:
		p = props.Clone(v)
	case map[string]any:
		p = props.Clone(props.Properties(v))
	case nil:
		return nil, ferrors.NewDataError("cannot build a node from nil")
	default:
		rv := reflect.Indirect(reflect.ValueOf(value))
		if rv.Kind() != reflect.Struct {
			return nil, ferrors.NewDataErrorf("cannot build a node from %T", value)
		}
		if err := r.validate.Struct(rv.Interface()); err != nil {
			return nil, validationError(err)
		}
		p = structProperties(rv)
	}

	if err := props.Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return ferrors.NewDataErrorf("failed '%s' validation", fe.Tag()).AddKey(fe.Field())
	}
	return ferrors.NewDataError(err.Error())
}

// structProperties reads the exported fields of a struct value. The property name comes
// from the `graph` tag, falling back to the field name; "-" skips a field and
// "omitempty" drops zero values.
func structProperties(rv reflect.Value) props.Properties {
	p := make(props.Properties)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty := parseTag(field)
		if name == "-" {
			continue
		}
		fv := rv.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				p[name] = nil
				continue
			}
			fv = fv.Elem()
		}
		p[name] = fv.Interface()
	}
	return p
}

func parseTag(field reflect.StructField) (name string, omitEmpty bool) {
	tag := field.Tag.Get(tagName)
	if tag == "" {
		return field.Name, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// Decode copies the node's properties into a new T using the `graph` struct tags.
func Decode[T any](n *Node) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          tagName,
		Result:           &out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]any(n.props)); err != nil {
		return out, ferrors.NewDataErrorf("cannot decode %s node: %v", n.model.Name, err)
	}
	return out, nil
}
