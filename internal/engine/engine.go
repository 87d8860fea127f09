package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/strataengine/strata/internal/computed"
	"github.com/strataengine/strata/internal/ir"
)

// DefaultMaxSteps is the default step quota per compute call. Flows are
// small programs; the quota exists to stop runaway call splicing from
// consuming unbounded resources, not to constrain legitimate schemas.
const DefaultMaxSteps = 1000

// Trace summarizes one compute call for callers and stored lineages.
type Trace struct {
	Intent        ir.Intent `json:"intent"`
	BaseVersion   int64     `json:"baseVersion"`
	ResultVersion int64     `json:"resultVersion"`
	DurationMs    float64   `json:"durationMs"`
	TerminatedBy  string    `json:"terminatedBy"`
}

// Result is the envelope returned by Compute.
type Result struct {
	Status   ir.Status    `json:"status"`
	Snapshot *ir.Snapshot `json:"snapshot"`
	Trace    Trace        `json:"trace"`
}

// Engine executes actions. It is stateless between calls and safe for
// concurrent use; all mutable state lives in the per-call working copy.
type Engine struct {
	clock    Clock
	maxSteps int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the timestamp source. Tests and replay pass a
// FixedClock so output is byte-identical across runs.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithMaxSteps sets the step quota per compute call.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		clock:    SystemClock{},
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs one intent against a snapshot and returns the result
// envelope. A new snapshot is always produced: meta.version increments
// by exactly 1 regardless of terminal status, and any patches applied
// before a stopping point are retained in the returned snapshot's data.
//
// The returned error is reserved for caller misuse (nil schema or
// snapshot); every execution-level failure surfaces as status "error"
// with a record in system.errors.
func (e *Engine) Compute(schema *ir.DomainSchema, snap *ir.Snapshot, intent ir.Intent) (*Result, error) {
	if schema == nil {
		return nil, fmt.Errorf("compute: nil schema")
	}
	if snap == nil {
		return nil, fmt.Errorf("compute: nil snapshot")
	}

	started := e.clock.Now()
	next := snap.Clone()
	next.Meta.Version++
	next.Meta.Timestamp = started.UTC().Format(time.RFC3339Nano)
	next.System.PendingRequirements = []ir.Requirement{}

	slog.Debug("compute start",
		"action", intent.Type,
		"base_version", snap.Meta.Version,
		"schema_hash", abbrevHash(schema.Hash),
	)

	r := newRunner(e, schema, next, intent, started)

	terminatedBy := r.run()

	next.Data = r.data
	e.finalize(schema, next, intent, r)

	result := &Result{
		Status:   next.System.Status,
		Snapshot: next,
		Trace: Trace{
			Intent:        intent,
			BaseVersion:   snap.Meta.Version,
			ResultVersion: next.Meta.Version,
			DurationMs:    float64(e.clock.Now().Sub(started)) / float64(time.Millisecond),
			TerminatedBy:  terminatedBy,
		},
	}

	slog.Debug("compute done",
		"action", intent.Type,
		"status", result.Status,
		"result_version", next.Meta.Version,
		"terminated_by", terminatedBy,
	)
	return result, nil
}

// finalize stamps the terminal status onto the snapshot and refreshes
// computed fields. Computed fields are recomputed on every terminal
// status, not just complete: partial patches are retained in data, so
// derived values must not go stale relative to them.
func (e *Engine) finalize(schema *ir.DomainSchema, next *ir.Snapshot, intent ir.Intent, r *runner) {
	switch {
	case r.failure != nil:
		next.System.Status = ir.StatusError
		next.System.Errors = append(next.System.Errors, *r.failure)
		failure := *r.failure
		next.System.LastError = &failure
		next.System.CurrentAction = ""

	case r.requirement != nil:
		next.System.Status = ir.StatusPending
		next.System.PendingRequirements = []ir.Requirement{*r.requirement}
		// The action stays current: the caller re-invokes the same
		// intent after resolving the requirement.
		next.System.CurrentAction = intent.Type

	case r.halted:
		next.System.Status = ir.StatusHalted
		next.System.CurrentAction = ""

	default:
		next.System.Status = ir.StatusComplete
		next.System.CurrentAction = ""
	}

	fresh, err := computed.Resolve(&schema.Computed, next.Data, r.meta)
	if err != nil {
		// A computed failure after a clean flow downgrades the result
		// to error; the data is kept so the caller can inspect it.
		record := ir.ErrorRecord{
			Code:      CodeComputedError,
			Message:   err.Error(),
			Source:    intent.Type,
			Timestamp: r.timestamp,
		}
		next.System.Status = ir.StatusError
		next.System.Errors = append(next.System.Errors, record)
		next.System.LastError = &record
		next.System.CurrentAction = ""
		next.System.PendingRequirements = []ir.Requirement{}
		slog.Warn("computed refresh failed",
			"action", intent.Type,
			"error", err,
		)
		return
	}
	next.Computed = fresh
}

func abbrevHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
