package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/strataengine/strata/internal/ir"
)

// CompileError reports a defect in a CUE domain definition, with the
// source position when CUE can provide one.
type CompileError struct {
	Schema  string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: schema %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Schema, e.Message)
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, e.Message)
}

// CompileSchema evaluates one CUE schema value into a DomainSchema.
// The document's hash field is stamped from the canonical content hash,
// overwriting whatever the author wrote: the hash is derived, never
// hand-maintained.
//
// The CUE value should be the schema struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`schema: counter: { ... }`)
//	schema, err := CompileSchema("counter", v.LookupPath(cue.ParsePath("schema.counter")))
func CompileSchema(name string, v cue.Value) (*ir.DomainSchema, error) {
	if err := v.Err(); err != nil {
		return nil, compileError(name, v, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, compileError(name, v, err)
	}

	var doc map[string]any
	if err := v.Decode(&doc); err != nil {
		return nil, compileError(name, v, err)
	}

	normalized, err := ir.NormalizeValue(doc)
	if err != nil {
		return nil, &CompileError{Schema: name, Message: err.Error(), Pos: v.Pos()}
	}
	doc = normalized.(map[string]any)

	hash, err := ir.SchemaHash(doc)
	if err != nil {
		return nil, &CompileError{Schema: name, Message: fmt.Sprintf("hash: %v", err), Pos: v.Pos()}
	}
	doc["hash"] = hash

	schema, err := ir.DecodeSchemaValue(doc)
	if err != nil {
		return nil, &CompileError{Schema: name, Message: err.Error(), Pos: v.Pos()}
	}
	return schema, nil
}

func compileError(name string, v cue.Value, err error) *CompileError {
	pos := v.Pos()
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		pos = positions[0]
	}
	return &CompileError{
		Schema:  name,
		Message: cueerrors.Details(err, nil),
		Pos:     pos,
	}
}
