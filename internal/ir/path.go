package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Path is a dot-separated field path. The first segment names a
// namespace (state, computed, input, meta, item, system); numeric
// segments index arrays.
type Path string

// Namespace roots a path can address.
const (
	NSState    = "state"
	NSComputed = "computed"
	NSInput    = "input"
	NSMeta     = "meta"
	NSItem     = "item"
	NSSystem   = "system"
)

// Segments splits the path into its components. An empty path yields nil.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Root returns the namespace segment, or "" for an empty path.
func (p Path) Root() string {
	s := string(p)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Rest returns the path with the namespace segment stripped.
func (p Path) Rest() []string {
	segs := p.Segments()
	if len(segs) <= 1 {
		return nil
	}
	return segs[1:]
}

// IsIndex reports whether a path segment is a numeric array index.
func IsIndex(seg string) bool {
	if seg == "" {
		return false
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}

// SpecAt resolves a segment list against a field-spec map, returning the
// sub-spec the path lands on. Rules: array access requires a numeric
// segment; object access requires a declared field name unless the
// object is open (open objects absorb any remaining segments).
func SpecAt(fields map[string]*FieldSpec, segs []string) (*FieldSpec, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	spec, ok := fields[segs[0]]
	if !ok {
		return nil, false
	}
	return specDescend(spec, segs[1:])
}

func specDescend(spec *FieldSpec, segs []string) (*FieldSpec, bool) {
	if len(segs) == 0 {
		return spec, true
	}
	seg := segs[0]

	switch spec.Kind {
	case KindObject:
		if spec.IsOpen() {
			// Open objects permit any nested path; the resolved spec is
			// an open object again since nothing narrower is declared.
			return openSpec, true
		}
		sub, ok := spec.Fields[seg]
		if !ok {
			return nil, false
		}
		return specDescend(sub, segs[1:])
	case KindArray:
		if !IsIndex(seg) {
			return nil, false
		}
		if spec.Elem == nil {
			return openSpec, true
		}
		return specDescend(spec.Elem, segs[1:])
	default:
		// Primitives and enums have no nested paths.
		return nil, false
	}
}

// openSpec is the spec resolved for paths under an open object.
var openSpec = &FieldSpec{Kind: KindObject}

// PathExists reports whether a segment list resolves in a field-spec map.
func PathExists(fields map[string]*FieldSpec, segs []string) bool {
	_, ok := SpecAt(fields, segs)
	return ok
}

// ValueAt walks a runtime value by segments. Returns (nil, false) for a
// missing path; the evaluator maps that to null.
func ValueAt(v any, segs []string) (any, bool) {
	cur := v
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// ParseIndex converts a segment to an array index.
func ParseIndex(seg string) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("segment %q is not an array index", seg)
	}
	if idx < 0 {
		return 0, fmt.Errorf("negative array index %d", idx)
	}
	return idx, nil
}
