package store

import (
	"time"

	"github.com/rendis/uiflow/pkg/schema"
)

// Run is the persisted record of one workflow run.
type Run struct {
	ID         string           `json:"id"`
	Workflow   string           `json:"workflow"`
	Status     schema.RunStatus `json:"status"`
	ErrorCode  string           `json:"error_code,omitempty"`
	ExitCode   int              `json:"exit_code"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
}

// RunUpdate carries the terminal outcome applied by FinishRun.
type RunUpdate struct {
	Status     schema.RunStatus
	ErrorCode  string
	ExitCode   int
	FinishedAt time.Time
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Workflow string
	Status   schema.RunStatus
	Limit    int
}
