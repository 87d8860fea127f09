package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration without colliding with old hashes.
const (
	domainSchema = "strata/schema/v1"
	domainIntent = "strata/intent/v1"
	domainState  = "strata/state/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash computes the canonical content hash of a schema document.
// The document is an arbitrary JSON-shaped value; a top-level "hash"
// field, if present, is excluded so a schema can embed its own identity.
// Extra non-semantic fields participate in the hash consistently, which
// keeps the identity stable for byte-identical canonical forms only.
func SchemaHash(doc any) (string, error) {
	nv, err := NormalizeValue(doc)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: %w", err)
	}

	if obj, ok := nv.(map[string]any); ok {
		stripped := make(map[string]any, len(obj))
		for k, v := range obj {
			if k == "hash" {
				continue
			}
			stripped[k] = v
		}
		nv = stripped
	}

	canonical, err := MarshalCanonical(nv)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: %w", err)
	}
	return hashWithDomain(domainSchema, canonical), nil
}

// IntentKey computes a content-addressed key for one execution attempt.
// Upstream protocol layers use it to deduplicate and correlate intents:
// two intents collide only if their canonical serializations are
// byte-identical, independent of object-key insertion order.
func IntentKey(schemaHash string, baseVersion int64, intent Intent) (string, error) {
	obj := map[string]any{
		"schemaHash":  schemaHash,
		"baseVersion": baseVersion,
		"type":        intent.Type,
		"input":       intent.Input,
	}
	if intent.Input == nil {
		obj["input"] = map[string]any{}
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("IntentKey: %w", err)
	}
	return hashWithDomain(domainIntent, canonical), nil
}

// StateHash computes a content hash over a snapshot's data and computed
// trees. The replay auditor compares these to prove determinism.
func StateHash(data, computed map[string]any) (string, error) {
	obj := map[string]any{
		"data":     data,
		"computed": computed,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(domainState, canonical), nil
}

// MustSchemaHash is like SchemaHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSchemaHash(doc any) string {
	h, err := SchemaHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
