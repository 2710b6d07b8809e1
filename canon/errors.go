package canon

import "errors"

// errUnsupported indicates a Value implementation outside the closed set
// defined in value.go reached the encoder; this should be unreachable
// from FromAny, which only ever produces the types in value.go.
var errUnsupported = errors.New("canon: unsupported value type")
