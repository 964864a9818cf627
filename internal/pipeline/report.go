package pipeline

import (
	"errors"
	"fmt"

	"majdl/internal/recordstore"
)

// Report counts what a batch did.
type Report struct {
	Pages           int
	Listed          int
	Fetched         int
	SkippedExisting int
	SkippedMemoized int
	Detailed        int
	Decoded         int
	AlreadyDecoded  int
	MissingSource   int
	Failures        []RecordFailure
}

// RecordFailure is one record that failed without halting the batch.
type RecordFailure struct {
	ID    string
	Stage recordstore.Stage
	Err   error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.ID, f.Stage, f.Err)
}

func (f RecordFailure) Unwrap() error { return f.Err }

// Failed is the number of records that failed.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Err joins every record failure, or returns nil when there were none.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Row is one labelled counter.
type Row struct {
	Label string
	Count int
}

// Rows lists the counters in display order.
func (r *Report) Rows() []Row {
	return []Row{
		{"listed", r.Listed},
		{"fetched", r.Fetched},
		{"skipped existing", r.SkippedExisting},
		{"skipped memoized", r.SkippedMemoized},
		{"detailed", r.Detailed},
		{"decoded", r.Decoded},
		{"already decoded", r.AlreadyDecoded},
		{"missing detail source", r.MissingSource},
		{"failed", r.Failed()},
	}
}

func (r *Report) fail(id string, stage recordstore.Stage, err error) {
	r.Failures = append(r.Failures, RecordFailure{ID: id, Stage: stage, Err: err})
}
