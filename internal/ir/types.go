package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldKind enumerates the shapes a FieldSpec can declare.
type FieldKind string

const (
	KindNull    FieldKind = "null"
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindEnum    FieldKind = "enum"
	KindObject  FieldKind = "object"
	KindArray   FieldKind = "array"
)

// ValidFieldKinds defines the allowed kind strings.
var ValidFieldKinds = map[FieldKind]bool{
	KindNull:    true,
	KindString:  true,
	KindNumber:  true,
	KindBoolean: true,
	KindEnum:    true,
	KindObject:  true,
	KindArray:   true,
}

// FieldSpec describes one field's shape. The spec is recursive: objects
// carry named sub-specs, arrays carry an element spec.
//
// An object with no declared sub-fields is "open": any nested path is
// permitted beneath it.
type FieldSpec struct {
	Kind     FieldKind             `json:"kind"`
	Required bool                  `json:"required,omitempty"`
	Values   []any                 `json:"values,omitempty"` // enum literals
	Fields   map[string]*FieldSpec `json:"fields,omitempty"` // object sub-fields
	Elem     *FieldSpec            `json:"elem,omitempty"`   // array element
}

// IsOpen reports whether the spec is an object that accepts any nested
// path (no declared sub-fields).
func (f *FieldSpec) IsOpen() bool {
	return f.Kind == KindObject && len(f.Fields) == 0
}

// Matches reports whether a runtime value conforms to the spec's shape.
// A nil value matches only KindNull, or any non-required spec.
func (f *FieldSpec) Matches(v any) bool {
	if v == nil {
		return f.Kind == KindNull || !f.Required
	}

	switch f.Kind {
	case KindNull:
		return false
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		_, ok := v.(float64)
		return ok
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindEnum:
		for _, lit := range f.Values {
			if ValuesEqual(lit, v) {
				return true
			}
		}
		return false
	case KindObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return false
		}
		if f.IsOpen() {
			return true
		}
		for name, sub := range f.Fields {
			child, present := obj[name]
			if !present {
				if sub.Required {
					return false
				}
				continue
			}
			if !sub.Matches(child) {
				return false
			}
		}
		return true
	case KindArray:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		if f.Elem == nil {
			return true
		}
		for _, elem := range arr {
			if !f.Elem.Matches(elem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ComputedFieldSpec defines a derived field: a pure expression plus the
// declared set of input paths it reads. Deps is used both for validation
// (must cover every get-path reachable in Expr) and for dependency-graph
// construction by the resolver.
type ComputedFieldSpec struct {
	Expr ExprNode `json:"expr"`
	Deps []string `json:"deps"`
}

// UnmarshalJSON decodes the expr sub-document through the tagged-union
// expression decoder.
func (c *ComputedFieldSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Expr json.RawMessage `json:"expr"`
		Deps []string        `json:"deps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Expr) == 0 {
		return fmt.Errorf("computed field: missing expr")
	}
	expr, err := UnmarshalExpr(raw.Expr)
	if err != nil {
		return fmt.Errorf("computed field expr: %w", err)
	}
	c.Expr = expr
	c.Deps = raw.Deps
	return nil
}

// MarshalJSON re-emits the tagged-union form.
func (c ComputedFieldSpec) MarshalJSON() ([]byte, error) {
	deps := c.Deps
	if deps == nil {
		deps = []string{}
	}
	return json.Marshal(struct {
		Expr ExprNode `json:"expr"`
		Deps []string `json:"deps"`
	}{Expr: c.Expr, Deps: deps})
}

// ActionSpec defines one named action: an optional availability gate, an
// optional input spec for the intent's parameters, and the flow program
// executed on invocation.
type ActionSpec struct {
	Available ExprNode   `json:"available,omitempty"`
	Input     *FieldSpec `json:"input,omitempty"`
	Flow      FlowNode   `json:"flow"`
}

// UnmarshalJSON decodes the available/flow sub-documents through the
// tagged-union decoders.
func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Available json.RawMessage `json:"available"`
		Input     *FieldSpec      `json:"input"`
		Flow      json.RawMessage `json:"flow"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Available) > 0 && !bytes.Equal(raw.Available, []byte("null")) {
		avail, err := UnmarshalExpr(raw.Available)
		if err != nil {
			return fmt.Errorf("action available: %w", err)
		}
		a.Available = avail
	}
	if len(raw.Flow) == 0 {
		return fmt.Errorf("action: missing flow")
	}
	flow, err := UnmarshalFlow(raw.Flow)
	if err != nil {
		return fmt.Errorf("action flow: %w", err)
	}
	a.Input = raw.Input
	a.Flow = flow
	return nil
}

// MarshalJSON re-emits the tagged-union form.
func (a ActionSpec) MarshalJSON() ([]byte, error) {
	type out struct {
		Available ExprNode   `json:"available,omitempty"`
		Input     *FieldSpec `json:"input,omitempty"`
		Flow      FlowNode   `json:"flow"`
	}
	return json.Marshal(out{Available: a.Available, Input: a.Input, Flow: a.Flow})
}

// StateSpec is the declared shape of the mutable domain state tree.
type StateSpec struct {
	Fields map[string]*FieldSpec `json:"fields"`
}

// ComputedSpec is the declared set of derived fields.
type ComputedSpec struct {
	Fields map[string]*ComputedFieldSpec `json:"fields"`
}

// DomainSchema is a complete compiled schema. Immutable once constructed;
// identified by Hash, which must equal the canonical content hash of the
// source document with the hash field removed.
//
// Raw preserves the source document the schema was decoded from, so hash
// verification sees exactly what the author wrote (including fields this
// struct does not model). Raw is nil for programmatically built schemas.
type DomainSchema struct {
	ID       string                 `json:"id"`
	Version  string                 `json:"version"`
	Hash     string                 `json:"hash"`
	State    StateSpec              `json:"state"`
	Computed ComputedSpec           `json:"computed"`
	Actions  map[string]*ActionSpec `json:"actions"`
	Types    map[string]*FieldSpec  `json:"types,omitempty"`

	Raw map[string]any `json:"-"`
}

// DecodeSchema parses a schema document from JSON bytes, preserving the
// raw document for hash verification.
func DecodeSchema(data []byte) (*DomainSchema, error) {
	var schema DomainSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	raw, err := DecodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode schema: document is %s, want object", ValueType(raw))
	}
	schema.Raw = obj
	return &schema, nil
}

// DecodeSchemaValue is DecodeSchema for an already-parsed document.
func DecodeSchemaValue(doc any) (*DomainSchema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema document: %w", err)
	}
	return DecodeSchema(data)
}

// Action returns the named action spec, or nil if not declared.
func (s *DomainSchema) Action(name string) *ActionSpec {
	if s.Actions == nil {
		return nil
	}
	return s.Actions[name]
}
