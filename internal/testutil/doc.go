// Package testutil provides shared test fixtures: a fixed clock
// instant, expression shorthands, and a schema builder that stamps
// canonical hashes so built schemas pass validation.
package testutil
