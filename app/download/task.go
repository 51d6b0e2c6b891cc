package download

import (
	"errors"
	"fmt"
	"time"

	"github.com/tverberg/opds-hub/app/catalog"
)

// ErrNoAcquisitionLink is reported for an entry with no downloadable link.
var ErrNoAcquisitionLink = errors.New("no acquisition link")

// TransferError is a per-item transfer failure. It never aborts the batch.
type TransferError struct {
	EntryID string
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed for entry %s: %v", e.EntryID, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Status is the lifecycle state of one download task. Succeeded and Failed
// are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the task will not change state again.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task tracks the transfer of one selected entry. The orchestrator is its
// sole owner and mutator; callers observe it through update snapshots.
type Task struct {
	ID      string
	EntryID string
	Title   string
	Link    catalog.AcquisitionLink

	Status Status
	Reason string

	// Cancelled marks a failure caused by batch cancellation rather than
	// a transfer error.
	Cancelled bool

	Path   string
	SHA256 string
	Size   int64

	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary is the final per-batch accounting. A failed item never prevents
// later items from being attempted.
type Summary struct {
	Succeeded int
	Failed    int
	Cancelled int
	Failures  map[string]string // entry id -> reason
}
