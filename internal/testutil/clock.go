package testutil

import (
	"time"

	"github.com/strataengine/strata/internal/engine"
)

// Timestamp is the fixed instant tests run under, RFC 3339.
const Timestamp = "2024-01-01T00:00:00Z"

// Clock returns a fixed clock at Timestamp so engine output is
// byte-identical across runs.
func Clock() engine.FixedClock {
	t, err := time.Parse(time.RFC3339, Timestamp)
	if err != nil {
		panic(err)
	}
	return engine.FixedClock{T: t.UTC()}
}
