package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/strataengine/strata/internal/ir"
)

// SchemaBuilder assembles a DomainSchema for tests and stamps its
// canonical hash at Build time, so built schemas pass hash validation
// without hand-maintained digests.
type SchemaBuilder struct {
	id       string
	version  string
	state    map[string]*ir.FieldSpec
	computed map[string]*ir.ComputedFieldSpec
	actions  map[string]*ir.ActionSpec
}

// NewSchema starts a builder. The id defaults to a URI form and the
// version to 1.0.0 when the arguments are empty.
func NewSchema(id, version string) *SchemaBuilder {
	if id == "" {
		id = "strata://test/schema"
	}
	if version == "" {
		version = "1.0.0"
	}
	return &SchemaBuilder{
		id:       id,
		version:  version,
		state:    map[string]*ir.FieldSpec{},
		computed: map[string]*ir.ComputedFieldSpec{},
		actions:  map[string]*ir.ActionSpec{},
	}
}

// StateField declares one state field.
func (b *SchemaBuilder) StateField(name string, spec *ir.FieldSpec) *SchemaBuilder {
	b.state[name] = spec
	return b
}

// NumberField declares a numeric state field.
func (b *SchemaBuilder) NumberField(name string) *SchemaBuilder {
	return b.StateField(name, &ir.FieldSpec{Kind: ir.KindNumber})
}

// BooleanField declares a boolean state field.
func (b *SchemaBuilder) BooleanField(name string) *SchemaBuilder {
	return b.StateField(name, &ir.FieldSpec{Kind: ir.KindBoolean})
}

// StringField declares a string state field.
func (b *SchemaBuilder) StringField(name string) *SchemaBuilder {
	return b.StateField(name, &ir.FieldSpec{Kind: ir.KindString})
}

// OpenObjectField declares an open object state field: any nested path
// beneath it is permitted.
func (b *SchemaBuilder) OpenObjectField(name string) *SchemaBuilder {
	return b.StateField(name, &ir.FieldSpec{Kind: ir.KindObject})
}

// ArrayField declares an array state field with the given element spec.
func (b *SchemaBuilder) ArrayField(name string, elem *ir.FieldSpec) *SchemaBuilder {
	return b.StateField(name, &ir.FieldSpec{Kind: ir.KindArray, Elem: elem})
}

// Computed declares a computed field.
func (b *SchemaBuilder) Computed(name string, expr ir.ExprNode, deps ...string) *SchemaBuilder {
	if deps == nil {
		deps = []string{}
	}
	b.computed[name] = &ir.ComputedFieldSpec{Expr: expr, Deps: deps}
	return b
}

// Action declares an action with just a flow.
func (b *SchemaBuilder) Action(name string, flow ir.FlowNode) *SchemaBuilder {
	b.actions[name] = &ir.ActionSpec{Flow: flow}
	return b
}

// ActionSpec declares an action with full control over its spec.
func (b *SchemaBuilder) ActionSpec(name string, spec *ir.ActionSpec) *SchemaBuilder {
	b.actions[name] = spec
	return b
}

// Build produces the schema with a freshly stamped hash. It panics on
// marshaling failure, which in a fixture means the test itself is
// broken.
func (b *SchemaBuilder) Build() *ir.DomainSchema {
	if len(b.computed) == 0 {
		// computed.fields must be non-empty; give tests that don't care
		// a trivially true field.
		b.Computed("ok", Bool(true))
	}

	schema := &ir.DomainSchema{
		ID:       b.id,
		Version:  b.version,
		State:    ir.StateSpec{Fields: b.state},
		Computed: ir.ComputedSpec{Fields: b.computed},
		Actions:  b.actions,
	}

	doc := schemaDocument(schema)
	hash, err := ir.SchemaHash(doc)
	if err != nil {
		panic(fmt.Sprintf("testutil: schema hash: %v", err))
	}
	schema.Hash = hash
	doc["hash"] = hash
	schema.Raw = doc
	return schema
}

// Document returns the schema's raw document form, for validator tests
// that mutate it before revalidating.
func (b *SchemaBuilder) Document() map[string]any {
	return b.Build().Raw
}

func schemaDocument(schema *ir.DomainSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal schema: %v", err))
	}
	doc, err := ir.DecodeValue(data)
	if err != nil {
		panic(fmt.Sprintf("testutil: decode schema: %v", err))
	}
	return doc.(map[string]any)
}
