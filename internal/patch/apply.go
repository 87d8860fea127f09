package patch

import (
	"fmt"

	"github.com/strataengine/strata/internal/ir"
)

// ApplyError reports a patch that cannot be applied: an out-of-range
// array index, a non-container in the middle of a path, or a merge onto
// a non-object.
type ApplyError struct {
	Op      ir.PatchOp
	Path    ir.Path
	Message string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("patch %s %s: %s", e.Op, e.Path, e.Message)
}

func applyErrf(op ir.PatchOp, path ir.Path, format string, args ...any) *ApplyError {
	return &ApplyError{Op: op, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Apply applies patches in order to the data tree and returns the new
// tree. Patch paths are rooted in the state namespace; the leading
// "state" segment addresses the tree itself.
func Apply(data map[string]any, patches ...ir.Patch) (map[string]any, error) {
	out := data
	for i, p := range patches {
		next, err := applyOne(out, p)
		if err != nil {
			return nil, fmt.Errorf("patches[%d]: %w", i, err)
		}
		out = next
	}
	return out, nil
}

func applyOne(data map[string]any, p ir.Patch) (map[string]any, error) {
	if p.Path.Root() != ir.NSState {
		return nil, applyErrf(p.Op, p.Path, "target outside state namespace")
	}
	segs := p.Path.Rest()
	if len(segs) == 0 {
		return nil, applyErrf(p.Op, p.Path, "cannot target the state root")
	}

	switch p.Op {
	case ir.PatchSet, ir.PatchMerge, ir.PatchUnset:
	default:
		return nil, applyErrf(p.Op, p.Path, "unknown patch op")
	}

	result, err := descend(data, segs, p)
	if err != nil {
		return nil, err
	}
	out, ok := result.(map[string]any)
	if !ok {
		return nil, applyErrf(p.Op, p.Path, "state root is not an object")
	}
	return out, nil
}

// descend walks one path segment at a time, copying each container it
// passes through so the input tree is untouched.
func descend(container any, segs []string, p ir.Patch) (any, error) {
	seg := segs[0]
	last := len(segs) == 1

	if ir.IsIndex(seg) {
		idx, err := ir.ParseIndex(seg)
		if err != nil {
			return nil, applyErrf(p.Op, p.Path, "%v", err)
		}
		arr, ok := container.([]any)
		if !ok {
			if container == nil {
				return nil, applyErrf(p.Op, p.Path, "segment %q indexes a missing array", seg)
			}
			return nil, applyErrf(p.Op, p.Path, "segment %q indexes %s, want array", seg, ir.ValueType(container))
		}
		return descendArray(arr, idx, seg, segs, last, p)
	}

	obj, ok := container.(map[string]any)
	if !ok {
		if container == nil {
			// Intermediate objects are created on demand for set and
			// merge; unset on a missing path is a no-op handled below.
			if p.Op == ir.PatchUnset {
				return nil, nil
			}
			obj = map[string]any{}
		} else {
			return nil, applyErrf(p.Op, p.Path, "segment %q traverses %s, want object", seg, ir.ValueType(container))
		}
	}

	next := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		next[k] = v
	}

	if last {
		if err := applyLeafObject(next, seg, p); err != nil {
			return nil, err
		}
		return next, nil
	}

	child, err := descend(next[seg], segs[1:], p)
	if err != nil {
		return nil, err
	}
	if p.Op == ir.PatchUnset && child == nil && next[seg] == nil {
		// The path was missing; nothing to remove.
		return next, nil
	}
	next[seg] = child
	return next, nil
}

func descendArray(arr []any, idx int, seg string, segs []string, last bool, p ir.Patch) (any, error) {
	if last {
		switch p.Op {
		case ir.PatchSet:
			// Index len(arr) appends; anything past that is a hole.
			if idx > len(arr) {
				return nil, applyErrf(p.Op, p.Path, "index %d out of range for array of length %d", idx, len(arr))
			}
			next := make([]any, len(arr), len(arr)+1)
			copy(next, arr)
			if idx == len(arr) {
				return append(next, p.Value), nil
			}
			next[idx] = p.Value
			return next, nil

		case ir.PatchMerge:
			if idx >= len(arr) {
				return nil, applyErrf(p.Op, p.Path, "index %d out of range for array of length %d", idx, len(arr))
			}
			target, ok := arr[idx].(map[string]any)
			if !ok {
				return nil, applyErrf(p.Op, p.Path, "merge target is %s, want object", ir.ValueType(arr[idx]))
			}
			merged, err := mergeObjects(target, p)
			if err != nil {
				return nil, err
			}
			next := append([]any(nil), arr...)
			next[idx] = merged
			return next, nil

		case ir.PatchUnset:
			if idx >= len(arr) {
				return arr, nil
			}
			next := make([]any, 0, len(arr)-1)
			next = append(next, arr[:idx]...)
			next = append(next, arr[idx+1:]...)
			return next, nil
		}
	}

	if idx >= len(arr) {
		if p.Op == ir.PatchUnset {
			return arr, nil
		}
		return nil, applyErrf(p.Op, p.Path, "index %d out of range for array of length %d", idx, len(arr))
	}
	child, err := descend(arr[idx], segs[1:], p)
	if err != nil {
		return nil, err
	}
	next := append([]any(nil), arr...)
	next[idx] = child
	return next, nil
}

func applyLeafObject(obj map[string]any, key string, p ir.Patch) error {
	switch p.Op {
	case ir.PatchSet:
		obj[key] = p.Value
		return nil

	case ir.PatchMerge:
		var target map[string]any
		switch existing := obj[key].(type) {
		case nil:
			target = map[string]any{}
		case map[string]any:
			target = existing
		default:
			return applyErrf(p.Op, p.Path, "merge target is %s, want object", ir.ValueType(obj[key]))
		}
		merged, err := mergeObjects(target, p)
		if err != nil {
			return err
		}
		obj[key] = merged
		return nil

	case ir.PatchUnset:
		delete(obj, key)
		return nil

	default:
		return applyErrf(p.Op, p.Path, "unknown patch op")
	}
}

func mergeObjects(target map[string]any, p ir.Patch) (map[string]any, error) {
	value, ok := p.Value.(map[string]any)
	if !ok {
		return nil, applyErrf(p.Op, p.Path, "merge value is %s, want object", ir.ValueType(p.Value))
	}
	merged := make(map[string]any, len(target)+len(value))
	for k, v := range target {
		merged[k] = v
	}
	for k, v := range value {
		merged[k] = v
	}
	return merged, nil
}
