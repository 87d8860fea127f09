package validator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/strataengine/strata/internal/ir"
)

// Validation error codes. Codes are stable: downstream tooling matches
// on them, so they never change meaning.
const (
	CodeUnknownPath       = "V-001" // unknown path or missing declared dependency
	CodeCyclicDependency  = "V-002" // computed-field dependency cycle
	CodeForbiddenScope    = "V-003" // path reads a forbidden scope
	CodeUnknownCallTarget = "V-004" // call references an undeclared flow
	CodeCyclicCallGraph   = "V-005" // action call-graph cycle
	CodeHashMismatch      = "V-008" // declared hash != canonical content hash
	CodeSchemaError       = "SCHEMA_ERROR"
)

// ValidationError is one defect found in a candidate schema.
type ValidationError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Result is the outcome of validating one candidate schema.
// Valid is true iff Errors is empty.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// semverPattern is the strict grammar from semver.org.
var semverPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

// uriSchemePattern matches scheme://rest identifiers.
var uriSchemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://\S+$`)

// Validate runs all static checks over a candidate schema document.
// The candidate is an arbitrary JSON-shaped value (typically the decoded
// source document); it is never executed. Validate always returns a
// Result, accumulating every detected error.
func Validate(candidate any) Result {
	var errs []ValidationError

	nv, err := ir.NormalizeValue(candidate)
	if err != nil {
		return invalid(append(errs, ValidationError{
			Code:    CodeSchemaError,
			Message: fmt.Sprintf("candidate is not a JSON value: %v", err),
		}))
	}
	doc, ok := nv.(map[string]any)
	if !ok {
		return invalid(append(errs, ValidationError{
			Code:    CodeSchemaError,
			Message: fmt.Sprintf("candidate is %s, want object", ir.ValueType(nv)),
		}))
	}

	errs = append(errs, checkStructure(doc)...)
	errs = append(errs, checkIdentity(doc)...)
	errs = append(errs, checkHash(doc)...)

	// Deep checks need a decodable schema. A failed decode is itself a
	// structural defect; the shallow errors above still stand.
	schema, err := ir.DecodeSchemaValue(doc)
	if err != nil {
		errs = append(errs, ValidationError{
			Code:    CodeSchemaError,
			Message: err.Error(),
		})
		return invalid(errs)
	}

	errs = append(errs, checkComputedFields(schema)...)
	errs = append(errs, checkComputedCycles(schema)...)
	errs = append(errs, checkActions(schema)...)
	errs = append(errs, checkCallGraph(schema)...)

	return invalid(errs)
}

func invalid(errs []ValidationError) Result {
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// checkStructure verifies presence and types of the top-level fields.
func checkStructure(doc map[string]any) []ValidationError {
	var errs []ValidationError

	structural := func(path, msg string) {
		errs = append(errs, ValidationError{Code: CodeSchemaError, Path: path, Message: msg})
	}

	for _, field := range []string{"id", "version", "hash"} {
		v, present := doc[field]
		if !present {
			structural(field, "required field is missing")
			continue
		}
		if _, ok := v.(string); !ok {
			structural(field, fmt.Sprintf("must be a string, got %s", ir.ValueType(v)))
		}
	}

	for _, field := range []string{"state", "computed", "actions"} {
		v, present := doc[field]
		if !present {
			structural(field, "required field is missing")
			continue
		}
		if _, ok := v.(map[string]any); !ok {
			structural(field, fmt.Sprintf("must be an object, got %s", ir.ValueType(v)))
		}
	}

	if computed, ok := doc["computed"].(map[string]any); ok {
		fields, present := computed["fields"]
		if !present {
			structural("computed.fields", "required field is missing")
		} else if obj, ok := fields.(map[string]any); !ok {
			structural("computed.fields", fmt.Sprintf("must be an object, got %s", ir.ValueType(fields)))
		} else if len(obj) == 0 {
			structural("computed.fields", "must declare at least one computed field")
		}
	}

	return errs
}

// checkIdentity validates the id and version grammars.
func checkIdentity(doc map[string]any) []ValidationError {
	var errs []ValidationError

	if id, ok := doc["id"].(string); ok {
		if !uriSchemePattern.MatchString(id) && !isUUIDv4(id) {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    "id",
				Message: fmt.Sprintf("%q is neither a URI-scheme identifier nor a v4 UUID", id),
			})
		}
	}

	if version, ok := doc["version"].(string); ok {
		if !semverPattern.MatchString(version) {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    "version",
				Message: fmt.Sprintf("%q is not valid semantic-version text", version),
			})
		}
	}

	return errs
}

func isUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}

// checkHash recomputes the canonical content hash of the document sans
// its hash field and compares it to the declared hash.
func checkHash(doc map[string]any) []ValidationError {
	declared, ok := doc["hash"].(string)
	if !ok {
		// Absence already reported as a structural defect.
		return nil
	}

	actual, err := ir.SchemaHash(doc)
	if err != nil {
		return []ValidationError{{
			Code:    CodeSchemaError,
			Path:    "hash",
			Message: fmt.Sprintf("cannot canonicalize candidate: %v", err),
		}}
	}

	if actual != declared {
		return []ValidationError{{
			Code:    CodeHashMismatch,
			Path:    "hash",
			Message: fmt.Sprintf("declared hash %s does not match content hash %s", abbrev(declared), abbrev(actual)),
		}}
	}
	return nil
}

func abbrev(hash string) string {
	if len(hash) > 12 {
		return hash[:12] + "…"
	}
	return hash
}

// checkComputedFields verifies, for every computed field, that its
// declared deps cover every get-path reachable in its expression, that
// every path resolves against the state-or-computed path space, and
// that no expression reads a reserved system scope.
func checkComputedFields(schema *ir.DomainSchema) []ValidationError {
	var errs []ValidationError

	for _, name := range sortedComputedNames(schema) {
		spec := schema.Computed.Fields[name]
		fieldPath := "computed.fields." + name

		if spec == nil || spec.Expr == nil {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    fieldPath,
				Message: "computed field has no expression",
			})
			continue
		}

		paths, strayItem, err := collectExpr(spec.Expr)
		if err != nil {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    fieldPath,
				Message: err.Error(),
			})
			continue
		}

		for _, p := range strayItem {
			errs = append(errs, ValidationError{
				Code:    CodeUnknownPath,
				Path:    fieldPath,
				Message: fmt.Sprintf("%q reads the item slot outside a collection operator", p),
			})
		}

		declared := make(map[string]bool, len(spec.Deps))
		for _, dep := range spec.Deps {
			declared[dep] = true
		}

		for _, p := range paths {
			switch p.Root() {
			case ir.NSItem:
				// Bound by a collection operator; stray reads reported above.
				continue
			case ir.NSSystem:
				errs = append(errs, ValidationError{
					Code:    CodeForbiddenScope,
					Path:    fieldPath,
					Message: fmt.Sprintf("computed expression reads reserved path %q", p),
				})
				continue
			}

			if !declared[string(p)] {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownPath,
					Path:    fieldPath,
					Message: fmt.Sprintf("missing dependency: expression reads %q but deps does not declare it", p),
				})
			}
			if !resolvesStateOrComputed(schema, p) {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownPath,
					Path:    fieldPath,
					Message: fmt.Sprintf("unknown path %q", p),
				})
			}
		}

		for _, dep := range spec.Deps {
			if !resolvesStateOrComputed(schema, ir.Path(dep)) {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownPath,
					Path:    fieldPath,
					Message: fmt.Sprintf("declared dependency %q does not resolve", dep),
				})
			}
		}
	}

	return errs
}

// resolvesStateOrComputed checks a path against the state-or-computed
// path space. Computed values have no declared shape, so any suffix
// under a declared computed name resolves.
func resolvesStateOrComputed(schema *ir.DomainSchema, p ir.Path) bool {
	switch p.Root() {
	case ir.NSState:
		rest := p.Rest()
		if len(rest) == 0 {
			return false
		}
		return ir.PathExists(schema.State.Fields, rest)
	case ir.NSComputed:
		rest := p.Rest()
		if len(rest) == 0 {
			return false
		}
		_, ok := schema.Computed.Fields[rest[0]]
		return ok
	default:
		return false
	}
}

// checkComputedCycles builds the dependency graph over computed-field
// names (edge A -> B when A's deps include computed.B) and rejects any
// cycle, self-loops included.
func checkComputedCycles(schema *ir.DomainSchema) []ValidationError {
	graph := make(map[string][]string, len(schema.Computed.Fields))
	for name, spec := range schema.Computed.Fields {
		graph[name] = nil
		if spec == nil {
			continue
		}
		for _, dep := range spec.Deps {
			p := ir.Path(dep)
			if p.Root() != ir.NSComputed {
				continue
			}
			rest := p.Rest()
			if len(rest) == 0 {
				continue
			}
			if _, ok := schema.Computed.Fields[rest[0]]; ok {
				graph[name] = append(graph[name], rest[0])
			}
		}
	}

	var errs []ValidationError
	for _, cycle := range DetectCycles(graph) {
		errs = append(errs, ValidationError{
			Code:    CodeCyclicDependency,
			Path:    "computed.fields",
			Message: fmt.Sprintf("cyclic dependency: %s", strings.Join(cycle, " -> ")),
		})
	}
	return errs
}

// checkActions walks every action's flow, verifying that each get-path
// resolves against state, computed, the action's own input spec, or the
// reserved meta namespace, and that patches target mutable state.
func checkActions(schema *ir.DomainSchema) []ValidationError {
	var errs []ValidationError

	for _, name := range sortedActionNames(schema) {
		action := schema.Actions[name]
		actionPath := "actions." + name

		if action == nil || action.Flow == nil {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    actionPath,
				Message: "action has no flow",
			})
			continue
		}

		walk, err := CollectFlowPaths(action.Flow)
		if err != nil {
			errs = append(errs, ValidationError{
				Code:    CodeSchemaError,
				Path:    actionPath,
				Message: err.Error(),
			})
			continue
		}

		exprPaths := walk.ExprPaths
		strayItem := walk.StrayItem
		if action.Available != nil {
			availPaths, availStray, err := collectExpr(action.Available)
			if err != nil {
				errs = append(errs, ValidationError{
					Code:    CodeSchemaError,
					Path:    actionPath + ".available",
					Message: err.Error(),
				})
			} else {
				exprPaths = append(exprPaths, availPaths...)
				strayItem = append(strayItem, availStray...)
			}
		}

		for _, p := range strayItem {
			errs = append(errs, ValidationError{
				Code:    CodeUnknownPath,
				Path:    actionPath,
				Message: fmt.Sprintf("%q reads the item slot outside a collection operator", p),
			})
		}

		for _, p := range exprPaths {
			if !resolvesInAction(schema, action, p) {
				errs = append(errs, ValidationError{
					Code:    CodeForbiddenScope,
					Path:    actionPath,
					Message: fmt.Sprintf("path %q does not resolve in this action's scope", p),
				})
			}
		}

		for _, p := range walk.PatchPaths {
			if p.Root() != ir.NSState {
				errs = append(errs, ValidationError{
					Code:    CodeForbiddenScope,
					Path:    actionPath,
					Message: fmt.Sprintf("patch targets %q; only state paths are mutable", p),
				})
				continue
			}
			rest := p.Rest()
			if len(rest) == 0 || !ir.PathExists(schema.State.Fields, rest) {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownPath,
					Path:    actionPath,
					Message: fmt.Sprintf("patch targets unknown path %q", p),
				})
			}
		}
	}

	return errs
}

// resolvesInAction checks a flow expression path against the scopes an
// action may read: state, computed, its own input spec, the open meta
// namespace, and the locally bound item slot.
func resolvesInAction(schema *ir.DomainSchema, action *ir.ActionSpec, p ir.Path) bool {
	switch p.Root() {
	case ir.NSState, ir.NSComputed:
		return resolvesStateOrComputed(schema, p)
	case ir.NSMeta, ir.NSItem:
		return true
	case ir.NSInput:
		if action.Input == nil {
			return false
		}
		rest := p.Rest()
		if len(rest) == 0 {
			return true // the whole input object
		}
		return ir.PathExists(map[string]*ir.FieldSpec{"input": action.Input}, append([]string{"input"}, rest...))
	default:
		return false
	}
}

// checkCallGraph verifies every call target exists and that the action
// call graph is acyclic (direct self-calls included).
func checkCallGraph(schema *ir.DomainSchema) []ValidationError {
	var errs []ValidationError
	graph := make(map[string][]string, len(schema.Actions))

	for _, name := range sortedActionNames(schema) {
		action := schema.Actions[name]
		graph[name] = nil
		if action == nil || action.Flow == nil {
			continue
		}

		walk, err := CollectFlowPaths(action.Flow)
		if err != nil {
			// Already reported by checkActions.
			continue
		}
		for _, target := range walk.Calls {
			if schema.Action(target) == nil {
				errs = append(errs, ValidationError{
					Code:    CodeUnknownCallTarget,
					Path:    "actions." + name,
					Message: fmt.Sprintf("call target %q is not a declared action", target),
				})
				continue
			}
			graph[name] = append(graph[name], target)
		}
	}

	for _, cycle := range DetectCycles(graph) {
		errs = append(errs, ValidationError{
			Code:    CodeCyclicCallGraph,
			Path:    "actions",
			Message: fmt.Sprintf("cyclic call graph: %s", strings.Join(cycle, " -> ")),
		})
	}
	return errs
}

func sortedComputedNames(schema *ir.DomainSchema) []string {
	names := make([]string, 0, len(schema.Computed.Fields))
	for name := range schema.Computed.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedActionNames(schema *ir.DomainSchema) []string {
	names := make([]string, 0, len(schema.Actions))
	for name := range schema.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
