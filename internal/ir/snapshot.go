package ir

// Status is the terminal outcome of one compute call.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusPending  Status = "pending"
	StatusHalted   Status = "halted"
)

// ErrorRecord is one entry in the snapshot's append-only error log.
type ErrorRecord struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	Source    string `json:"source,omitempty"` // action that raised it
	Timestamp string `json:"timestamp"`
}

// Requirement describes one pending external effect the caller must
// resolve before the engine can make further progress on a flow.
type Requirement struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// SystemState carries the engine's bookkeeping on a snapshot.
// Errors accumulates monotonically across the snapshot's lineage;
// PendingRequirements is populated only when Status is pending.
type SystemState struct {
	Status              Status        `json:"status"`
	LastError           *ErrorRecord  `json:"lastError,omitempty"`
	Errors              []ErrorRecord `json:"errors"`
	PendingRequirements []Requirement `json:"pendingRequirements"`
	CurrentAction       string        `json:"currentAction,omitempty"`
}

// Meta carries snapshot metadata. Version increments by exactly 1 on
// every compute call regardless of terminal status. Timestamp is
// supplied by the caller's clock, never read inside evaluation.
type Meta struct {
	Version    int64  `json:"version"`
	Timestamp  string `json:"timestamp"`
	RandomSeed int64  `json:"randomSeed"`
	SchemaHash string `json:"schemaHash"`
}

// Snapshot is an immutable, versioned state record. Mutation always goes
// through Clone; the engine never writes to a snapshot it was given.
type Snapshot struct {
	Data     map[string]any `json:"data"`
	Computed map[string]any `json:"computed"`
	System   SystemState    `json:"system"`
	Meta     Meta           `json:"meta"`
}

// NewSnapshot builds the version-0 snapshot for a schema.
func NewSnapshot(schemaHash string) *Snapshot {
	return &Snapshot{
		Data:     map[string]any{},
		Computed: map[string]any{},
		System: SystemState{
			Status:              StatusIdle,
			Errors:              []ErrorRecord{},
			PendingRequirements: []Requirement{},
		},
		Meta: Meta{
			Version:    0,
			SchemaHash: schemaHash,
		},
	}
}

// Clone deep-copies the snapshot so the copy can be mutated freely.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Data:     CloneValue(s.Data).(map[string]any),
		Computed: CloneValue(s.Computed).(map[string]any),
		System: SystemState{
			Status:        s.System.Status,
			CurrentAction: s.System.CurrentAction,
		},
		Meta: s.Meta,
	}
	if s.System.LastError != nil {
		le := *s.System.LastError
		out.System.LastError = &le
	}
	out.System.Errors = make([]ErrorRecord, len(s.System.Errors))
	copy(out.System.Errors, s.System.Errors)
	out.System.PendingRequirements = make([]Requirement, len(s.System.PendingRequirements))
	for i, req := range s.System.PendingRequirements {
		out.System.PendingRequirements[i] = Requirement{
			Type:   req.Type,
			Params: CloneValue(req.Params).(map[string]any),
		}
	}
	return out
}

// Patch is a single path-scoped mutation. Patches apply in list order;
// later patches may depend on earlier ones' effects.
type Patch struct {
	Op    PatchOp `json:"op"`
	Path  Path    `json:"path"`
	Value any     `json:"value,omitempty"`
}

// Intent identifies the action and parameters for one execution attempt.
type Intent struct {
	Type  string         `json:"type"`
	Input map[string]any `json:"input,omitempty"`
}
