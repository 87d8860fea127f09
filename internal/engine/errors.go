package engine

// Runtime error codes recorded in system.errors when a flow stops with
// a terminal error. The codes are stable: callers and stored lineages
// depend on them.
const (
	// CodeUnknownAction: the intent names no declared action.
	CodeUnknownAction = "UNKNOWN_ACTION"

	// CodeActionUnavailable: the action's available gate evaluated false.
	CodeActionUnavailable = "ACTION_UNAVAILABLE"

	// CodeInvalidInput: the intent's input does not match the action's
	// declared input spec.
	CodeInvalidInput = "INVALID_INPUT"

	// CodeExprError: an embedded expression failed to evaluate
	// (type mismatch, division by zero, and so on).
	CodeExprError = "EXPR_ERROR"

	// CodePatchError: a patch could not be applied to the working data.
	CodePatchError = "PATCH_ERROR"

	// CodeFlowError: the flow tree itself is malformed (unknown node
	// kind, call to a missing action). Validation catches these; the
	// runtime check is the backstop for unvalidated schemas.
	CodeFlowError = "FLOW_ERROR"

	// CodeStepsExceeded: the flow interpreted more nodes than the
	// engine's step quota allows. Guards against runaway call splicing.
	CodeStepsExceeded = "STEPS_EXCEEDED"

	// CodeComputedError: a computed field failed to evaluate during the
	// post-flow refresh.
	CodeComputedError = "COMPUTED_ERROR"
)
