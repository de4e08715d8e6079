package mutchan

// Snapshot is the accumulated observation state at one retrieval point.
// All times are milliseconds on the document-local monotonic clock
// (performance.now); they are meaningful relative to each other, never
// across documents or against the controlling process's clock.
//
// FirstMutation and LastMutation are nil until at least one mutation has
// been observed: MutationCount == 0 exactly when FirstMutation == nil.
// When present, StartTime ≤ FirstMutation ≤ LastMutation.
type Snapshot struct {
	StartTime     float64  `json:"startTime"`
	FirstMutation *float64 `json:"firstMutationTime"`
	LastMutation  *float64 `json:"lastMutationTime"`
	MutationCount int      `json:"mutationCount"`
}

// Observed reports whether any mutation was recorded.
func (s Snapshot) Observed() bool { return s.MutationCount > 0 }

// Valid reports whether the snapshot satisfies its own invariants. Used
// to guard against a corrupted page-side registry entry.
func (s Snapshot) Valid() bool {
	if s.MutationCount < 0 {
		return false
	}
	if (s.MutationCount == 0) != (s.FirstMutation == nil) {
		return false
	}
	if s.FirstMutation != nil {
		if s.LastMutation == nil {
			return false
		}
		if s.StartTime > *s.FirstMutation || *s.FirstMutation > *s.LastMutation {
			return false
		}
	}
	return true
}
