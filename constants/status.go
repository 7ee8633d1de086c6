package constants

// JobStatus is the lifecycle state of an asynchronous upload.
type JobStatus string

// Stable values, returned verbatim by the jobs endpoint.
const (
	JobStatusQueued  JobStatus = "QUEUED"  // accepted, waiting for a worker
	JobStatusRunning JobStatus = "RUNNING" // pipeline in progress
	JobStatusDone    JobStatus = "DONE"    // pipeline finished (possibly with faults)
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}
