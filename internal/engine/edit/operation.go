package edit

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Operation is a single immutable edit instruction. Type selects the
// handler that applies it; Data is an opaque JSON payload.
//
// Operations are values: methods that derive a new payload return a new
// Operation and never modify the receiver.
type Operation struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New creates an Operation with the given type tag, marshaling v as the
// payload. A nil v produces an operation with no payload.
func New(editType string, v any) (Operation, error) {
	if editType == "" {
		return Operation{}, fmt.Errorf("edit type must not be empty")
	}
	if v == nil {
		return Operation{Type: editType}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Operation{}, fmt.Errorf("marshaling %s payload: %w", editType, err)
	}
	return Operation{Type: editType, Data: data}, nil
}

// MustNew is like New but panics on failure.
// Intended for payloads known to marshal, such as test fixtures.
func MustNew(editType string, v any) Operation {
	op, err := New(editType, v)
	if err != nil {
		panic(err)
	}
	return op
}

// IsZero reports whether the operation is the zero value.
func (op Operation) IsZero() bool {
	return op.Type == "" && op.Data == nil
}

// Equal reports structural equality: the same type tag and an equivalent
// JSON payload. Formatting and key order in the payload are ignored.
func (op Operation) Equal(other Operation) bool {
	if op.Type != other.Type {
		return false
	}
	if len(op.Data) == 0 && len(other.Data) == 0 {
		return true
	}
	var a, b any
	if err := json.Unmarshal(op.Data, &a); err != nil {
		return false
	}
	if err := json.Unmarshal(other.Data, &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Get reads a payload field using gjson path syntax, e.g. "attributes.title".
func (op Operation) Get(path string) gjson.Result {
	return gjson.GetBytes(op.Data, path)
}

// Set returns a copy of the operation with the payload field at path set
// to value.
func (op Operation) Set(path string, value any) (Operation, error) {
	data, err := sjson.SetBytes(op.Data, path, value)
	if err != nil {
		return Operation{}, fmt.Errorf("setting %s on %s payload: %w", path, op.Type, err)
	}
	return Operation{Type: op.Type, Data: data}, nil
}

// Unmarshal decodes the payload into v.
func (op Operation) Unmarshal(v any) error {
	if len(op.Data) == 0 {
		return fmt.Errorf("operation %s has no payload", op.Type)
	}
	return json.Unmarshal(op.Data, v)
}

// String returns a compact representation for logs.
func (op Operation) String() string {
	if len(op.Data) == 0 {
		return op.Type
	}
	return fmt.Sprintf("%s %s", op.Type, op.Data)
}
