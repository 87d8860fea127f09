package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"b": 1,
		"a": 2,
		"c": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(out))
}

func TestMarshalCanonical_KeyOrderIsUTF16(t *testing.T) {
	// U+1F600 encodes as a surrogate pair starting 0xD83D, which sorts
	// before U+FF61 in UTF-16 code units but after it in UTF-8 bytes.
	keys := map[string]any{}
	keys["｡"] = 1
	keys["\U0001F600"] = 2

	out, err := MarshalCanonical(keys)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"｡\":1}", string(out))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"k": "<a>&</a>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a>&</a>"}`, string(out))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	decomposed := "é"
	precomposed := "é"

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalCanonical_LineSeparatorsUnescaped(t *testing.T) {
	out, err := MarshalCanonical("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(out))
}

func TestMarshalCanonical_EscapedBackslashBeforeU2028Text(t *testing.T) {
	// A literal backslash followed by the text "u2028" must survive as
	// escaped-backslash text, not get collapsed into the character.
	out, err := MarshalCanonical("\\u2028")
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(out))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{-1, "-1"},
		{1.5, "1.5"},
		{42, "42"},
		{1e20, "100000000000000000000"},
		{0.1, "0.1"},
		{1e-6, "0.000001"},
		{1e-7, "1e-7"},
		{1e21, "1e+21"},
		{1.25e22, "1.25e+22"},
		{math.Copysign(0, -1), "0"},
	}
	for _, tc := range cases {
		out, err := MarshalCanonical(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(out), "input %v", tc.in)
	}
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(math.Inf(1))
	assert.Error(t, err)

	_, err = MarshalCanonical([]any{1.0, math.Inf(-1)})
	assert.Error(t, err)
}

func TestMarshalCanonical_NullAndNested(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"arr":  []any{nil, true, false},
		"null": nil,
		"obj":  map[string]any{"z": 1, "a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"arr":[null,true,false],"null":null,"obj":{"a":2,"z":1}}`, string(out))
}

func TestMarshalCanonical_NormalizesIntegers(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"n": int64(7)})
	require.NoError(t, err)
	assert.Equal(t, `{"n":7}`, string(out))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	doc := map[string]any{
		"id":    "strata://test",
		"state": map[string]any{"fields": map[string]any{"b": 1, "a": 2}},
	}
	first, err := MarshalCanonical(doc)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(doc)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
