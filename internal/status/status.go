// Package status persists the durable per-workflow run-status record
// consumed by the API layer.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rendis/uiflow/pkg/schema"
)

// Record is the externally readable status file content:
// {"status": "...", "last_updated": "<ISO-8601>"}.
type Record struct {
	Status      schema.RunStatus `json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Store keeps one status_<workflow>.json per workflow name in a directory.
// Records are overwritten on every transition and never deleted
// automatically. Writes are last-writer-wins; concurrent runs of the same
// workflow name clobber each other's status.
type Store struct {
	dir string
}

// NewStore creates a status store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the status file path for a workflow name.
func (s *Store) Path(workflow string) string {
	return filepath.Join(s.dir, fmt.Sprintf("status_%s.json", workflow))
}

// Set overwrites the workflow's status record, stamping it with the
// current time. The write goes through a temp file and rename so an
// external reader never observes a torn record.
func (s *Store) Set(workflow string, st schema.RunStatus) error {
	record := Record{Status: st, LastUpdated: time.Now()}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "marshal status for %s: %v", workflow, err).WithCause(err)
	}

	tmp, err := os.CreateTemp(s.dir, "status_*.tmp")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create status temp file: %v", err).WithCause(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "write status for %s: %v", workflow, err).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "close status temp file: %v", err).WithCause(err)
	}
	if err := os.Rename(tmpName, s.Path(workflow)); err != nil {
		os.Remove(tmpName)
		return schema.NewErrorf(schema.ErrCodeStore, "publish status for %s: %v", workflow, err).WithCause(err)
	}
	return nil
}

// Get reads the workflow's current status record.
func (s *Store) Get(workflow string) (*Record, error) {
	data, err := os.ReadFile(s.Path(workflow))
	if os.IsNotExist(err) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no status record for workflow %s", workflow)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read status for %s: %v", workflow, err).WithCause(err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "decode status for %s: %v", workflow, err).WithCause(err)
	}
	return &record, nil
}
