package entity

import (
	"time"

	"github.com/joseph-ayodele/deeds-tracker/constants"
)

// Fault is a recoverable pipeline failure reported alongside results.
// Chunk and Record are -1 when not applicable.
type Fault struct {
	Stage   string `json:"stage"`
	Chunk   int    `json:"chunk"`
	Record  int    `json:"record"`
	Message string `json:"message"`
}

// Summary counts what one pipeline run did.
type Summary struct {
	Profile   string  `json:"profile"`
	Pages     int     `json:"pages"`
	Chunks    int     `json:"chunks"`
	Extracted int     `json:"extracted"`
	Persisted int     `json:"persisted"`
	Skipped   int     `json:"skipped"`
	Failed    int     `json:"failed"`
	Faults    []Fault `json:"faults"`
}

// UploadJob tracks an asynchronously processed upload.
type UploadJob struct {
	ID           string              `json:"id"`
	Filename     string              `json:"filename"`
	Profile      string              `json:"profile"`
	Status       constants.JobStatus `json:"status"`
	Error        string              `json:"error,omitempty"`
	Summary      *Summary            `json:"summary,omitempty"`
	Transactions []*Transaction      `json:"processedTransactions"`
	CreatedAt    time.Time           `json:"createdAt"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	FinishedAt   *time.Time          `json:"finishedAt,omitempty"`
}
