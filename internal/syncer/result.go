package syncer

// RunStatus classifies how a sync run ended.
type RunStatus string

const (
	// RunCompleted means the run drained the queue, possibly with per-item
	// failures recorded in the result.
	RunCompleted RunStatus = "completed"
	// RunRejected means another run already held the sync lock.
	RunRejected RunStatus = "rejected"
	// RunOffline means the connectivity check failed before any queue access.
	RunOffline RunStatus = "offline"
)

// Result summarizes one sync run.
type Result struct {
	Status RunStatus
	Synced int
	Failed int
	Errors []string
}
