package store

import (
	"encoding/json"
	"fmt"

	"github.com/strataengine/strata/internal/ir"
)

// marshalData serializes a data or computed map to canonical JSON so
// stored rows are byte-stable and re-hashable during replay.
func marshalData(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal canonical: %w", err)
	}
	return string(data), nil
}

func unmarshalData(s string) (map[string]any, error) {
	v, err := ir.DecodeValue([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode stored value: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stored value is %s, want object", ir.ValueType(v))
	}
	return m, nil
}

func unmarshalIntent(s string, intent *ir.Intent) error {
	if err := json.Unmarshal([]byte(s), intent); err != nil {
		return fmt.Errorf("decode intent: %w", err)
	}
	return nil
}

// marshalJSON serializes bookkeeping structs (system, meta, intent).
// These carry no arbitrary user values, so plain JSON is sufficient.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}
