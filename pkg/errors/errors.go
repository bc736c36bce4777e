package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ConfigurationError reports an invalid or conflicting container/model declaration.
// It is raised at construction time and is never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func NewConfigurationError(msg string) *ConfigurationError {
	return &ConfigurationError{Message: msg}
}

// NewConfigurationErrorf creates a new ConfigurationError with a formatted message
func NewConfigurationErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: field '%s': %s", e.Field, e.Message)
}

func (e *ConfigurationError) AddField(field string) *ConfigurationError {
	e.Field = field
	return e
}

func (e *ConfigurationError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("field", e.Field)
}

// SchemaError reports a relationship matcher that lacks a key required by the
// start or end match-key schema.
type SchemaError struct {
	Side    string
	Key     string
	Message string
}

func NewSchemaError(side, key string) *SchemaError {
	return &SchemaError{
		Side:    side,
		Key:     key,
		Message: "missing required match key",
	}
}

func (e *SchemaError) Error() string {
	path := []string{}
	if e.Side != "" {
		path = append(path, fmt.Sprintf("side '%s'", e.Side))
	}
	if e.Key != "" {
		path = append(path, fmt.Sprintf("key '%s'", e.Key))
	}
	if len(path) == 0 {
		return "schema error: " + e.Message
	}
	return "schema error: " + strings.Join(path, " -> ") + ": " + e.Message
}

func (e *SchemaError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("side", e.Side).AddMetaValue("key", e.Key)
}

// DataError reports a staged entity that cannot be materialized, e.g. because a
// merge key is absent when statements are generated.
type DataError struct {
	Key     string
	Message string
	index   *int
}

func NewDataError(msg string) *DataError {
	return &DataError{Message: msg}
}

// NewDataErrorf creates a new DataError with a formatted message
func NewDataErrorf(format string, args ...any) *DataError {
	return &DataError{Message: fmt.Sprintf(format, args...)}
}

func (e *DataError) Error() string {
	path := []string{}
	if e.index != nil {
		path = append(path, fmt.Sprintf("entity %d", *e.index))
	}
	if e.Key != "" {
		path = append(path, fmt.Sprintf("key '%s'", e.Key))
	}
	if len(path) == 0 {
		return "data error: " + e.Message
	}
	return "data error: " + strings.Join(path, " -> ") + ": " + e.Message
}

func (e *DataError) AddKey(key string) *DataError {
	e.Key = key
	return e
}

func (e *DataError) AddIndex(index int) *DataError {
	e.index = &index
	return e
}

// Index returns the position of the offending entity in its container, if known.
func (e *DataError) Index() (int, bool) {
	if e.index == nil {
		return 0, false
	}
	return *e.index, true
}

func (e *DataError) ToHTTPError() *httperror.HTTPError {
	herr := httperror.NewHTTPError(http.StatusBadRequest, e.Error()).AddMetaValue("key", e.Key)
	if e.index != nil {
		herr = herr.AddMetaValue("index", fmt.Sprint(*e.index))
	}
	return herr
}

// StoreExecutionError wraps a failure reported by the graph store while running a statement.
// The statement is not retried and earlier successful batches are not rolled back.
type StoreExecutionError struct {
	Operation string
	Batch     int
	Err       error
}

func NewStoreExecutionError(operation string, err error) *StoreExecutionError {
	return &StoreExecutionError{Operation: operation, Batch: -1, Err: err}
}

func (e *StoreExecutionError) Error() string {
	if e.Batch >= 0 {
		return fmt.Sprintf("store execution failed: %s batch %d: %v", e.Operation, e.Batch, e.Err)
	}
	return fmt.Sprintf("store execution failed: %s: %v", e.Operation, e.Err)
}

func (e *StoreExecutionError) Unwrap() error {
	return e.Err
}

func (e *StoreExecutionError) AddBatch(batch int) *StoreExecutionError {
	e.Batch = batch
	return e
}

func (e *StoreExecutionError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusBadGateway, e.Error()).AddMetaValue("operation", e.Operation).AddMetaValue("batch", fmt.Sprint(e.Batch))
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return as(err, &target)
}

func IsSchemaError(err error) bool {
	var target *SchemaError
	return as(err, &target)
}

func IsDataError(err error) bool {
	var target *DataError
	return as(err, &target)
}

func IsStoreExecutionError(err error) bool {
	var target *StoreExecutionError
	return as(err, &target)
}
