package schema

// RunStatus is the lifecycle state of one workflow run. A run is written
// as running on entry and ends completed or failed; a new run for the
// same workflow overwrites the previous terminal record.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)
