package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/datatrails/vaultledger/vaulterr"
)

// Parse decodes CanonicalBytes (or any JSON using the same scalar
// subset) back into a Value tree, enforcing the same restrictions
// FromAny does. It satisfies spec invariant #1 (round-trip stability):
// Canonicalize(Parse(Canonicalize(v))) == Canonicalize(v).
func Parse(b []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("canon: parse: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("canon: parse: trailing data after top-level value")
	}
	return FromAny(raw)
}

// numberToInt converts a json.Number into an Int, rejecting anything
// that is not an exact integer (spec §4.1: floats are InvalidScalar).
func numberToInt(n json.Number) (Value, error) {
	i, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil, vaulterr.ErrInvalidScalar
	}
	return Int(i), nil
}
