package domain

// UnitTask is one unit of work fanned out from a batch.
type UnitTask struct {
	BatchID       string
	UnitID        string
	Intent        Intent
	Initiator     string
	CorrelationID string
}

// TaskResult is the final outcome of a unit task after the retry policy ran.
type TaskResult struct {
	Task     UnitTask
	Err      error
	Attempts int
}

func (r TaskResult) Succeeded() bool { return r.Err == nil }
