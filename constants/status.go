package constants

// DocumentStatus is the lifecycle state of a document record.
type DocumentStatus string

// Stable values (store these exact strings).
const (
	StatusPending    DocumentStatus = "pending"    // created, waiting for a worker
	StatusProcessing DocumentStatus = "processing" // extraction in progress
	StatusCompleted  DocumentStatus = "completed"  // fields and submittals stored
	StatusFailed     DocumentStatus = "failed"     // terminal failure, see error message
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record may move from one status to another.
// Status only moves forward: pending -> processing -> completed|failed.
// pending may also finish directly (synchronous flow, early failures).
func CanTransition(from, to DocumentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Predecessors lists the statuses allowed to move to `to`.
func Predecessors(to DocumentStatus) []DocumentStatus {
	var out []DocumentStatus
	for _, from := range []DocumentStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// ProcessingMode selects how POST /api/summarize runs the extraction.
type ProcessingMode string

const (
	ModeSync  ProcessingMode = "sync"
	ModeAsync ProcessingMode = "async"
)
