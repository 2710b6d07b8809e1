package canon_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"

	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/vaulterr"
)

// S1 from spec §8: {"b":1,"a":[2,3]} canonicalizes to {"a":[2,3],"b":1}.
func TestCanonicalizationGolden(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("b", canon.Int(1)))
	require.NoError(t, o.Set("a", canon.Seq{canon.Int(2), canon.Int(3)}))

	bytes, err := canon.Canonicalize(o)
	require.NoError(t, err)
	assert.Equal(t, string(bytes), `{"a":[2,3],"b":1}`)
	assert.Equal(t, len(bytes), 17)
}

func TestRoundTripStability(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("z", canon.Str("hello\tworld")))
	require.NoError(t, o.Set("a", canon.Bool(true)))
	require.NoError(t, o.Set("m", canon.Null{}))

	first, err := canon.Canonicalize(o)
	require.NoError(t, err)
	second, err := canon.Canonicalize(o)
	require.NoError(t, err)
	assert.DeepEqual(t, first, second)
}

func TestStructuralEquivalenceMeansByteIdentical(t *testing.T) {
	build := func() canon.Value {
		o := canon.NewObj()
		_ = o.Set("a", canon.Int(1))
		_ = o.Set("b", canon.Seq{canon.Int(2)})
		return o
	}
	b1, err := canon.Canonicalize(build())
	require.NoError(t, err)
	b2, err := canon.Canonicalize(build())
	require.NoError(t, err)
	assert.DeepEqual(t, b1, b2)
}

func TestDuplicateKeyRejected(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("a", canon.Int(1)))
	err := o.Set("a", canon.Int(2))
	require.ErrorIs(t, err, vaulterr.ErrDuplicateKey)
}

func TestNonStringKeyRejected(t *testing.T) {
	m := map[int]any{1: "x"}
	_, err := canon.FromAny(m)
	require.ErrorIs(t, err, vaulterr.ErrNonStringKey)
}

func TestFloatRejected(t *testing.T) {
	_, err := canon.FromAny(1.5)
	require.ErrorIs(t, err, vaulterr.ErrInvalidScalar)

	o := canon.NewObj()
	require.NoError(t, o.Set("f", canon.Int(0)))
	// Simulate a producer accidentally handing in a float leaf.
	_, err = canon.FromAny(map[string]any{"x": 3.14})
	require.ErrorIs(t, err, vaulterr.ErrInvalidScalar)
}

func TestCycleDetected(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	_, err := canon.FromAny(m)
	require.ErrorIs(t, err, vaulterr.ErrCycleDetected)
}

func TestEmptyMappingAndSequence(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("e", canon.NewObj()))
	require.NoError(t, o.Set("s", canon.Seq{}))
	bytes, err := canon.Canonicalize(o)
	require.NoError(t, err)
	assert.Equal(t, string(bytes), `{"e":{},"s":[]}`)
}

func TestDeeplyNestedRecord(t *testing.T) {
	inner := canon.NewObj()
	require.NoError(t, inner.Set("k", canon.Int(-1)))
	outer := canon.NewObj()
	require.NoError(t, outer.Set("n", canon.Seq{inner, canon.Seq{inner}}))
	_, err := canon.Canonicalize(outer)
	require.NoError(t, err)
}

func TestNegativeAndMaxIntegers(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("neg", canon.Int(-42)))
	require.NoError(t, o.Set("max", canon.Int(9223372036854775807)))
	bytes, err := canon.Canonicalize(o)
	require.NoError(t, err)
	assert.Equal(t, string(bytes), `{"max":9223372036854775807,"neg":-42}`)
}

func TestUnicodeAndControlEscaping(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("s", canon.Str("café\x01\"\\")))
	bytes, err := canon.Canonicalize(o)
	require.NoError(t, err)
	assert.Equal(t, string(bytes), "{\"s\":\"café\\u0001\\\"\\\\\"}")
}

func TestParseRoundTripsCanonicalBytes(t *testing.T) {
	o := canon.NewObj()
	require.NoError(t, o.Set("b", canon.Int(1)))
	require.NoError(t, o.Set("a", canon.Seq{canon.Int(2), canon.Int(3)}))

	first, err := canon.Canonicalize(o)
	require.NoError(t, err)

	parsed, err := canon.Parse(first)
	require.NoError(t, err)

	second, err := canon.Canonicalize(parsed)
	require.NoError(t, err)
	assert.DeepEqual(t, first, second)
}

func TestParseRejectsFloats(t *testing.T) {
	_, err := canon.Parse([]byte(`{"x":1.5}`))
	require.ErrorIs(t, err, vaulterr.ErrInvalidScalar)
}

func TestFromAnyBuildsObjects(t *testing.T) {
	v, err := canon.FromAny(map[string]any{"b": int64(1), "a": []any{int64(2), int64(3)}})
	require.NoError(t, err)
	bytes, err := canon.Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, string(bytes), `{"a":[2,3],"b":1}`)
}
