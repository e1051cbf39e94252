package ingest

import "fmt"

// StoreBusyError is returned when a statement stayed contended through the
// whole retry budget.
type StoreBusyError struct {
	Attempts int
	Err      error
}

func (e *StoreBusyError) Error() string {
	return fmt.Sprintf("store busy after %d attempts: %s", e.Attempts, e.Err)
}

func (e *StoreBusyError) Unwrap() error {
	return e.Err
}

// RowInsertError is one rejected child row. It never fails the job: the
// writer logs it, counts it, and moves to the next row.
type RowInsertError struct {
	Kind      string // "condition", "medication", "encounter"
	PatientID string
	Err       error
}

func (e *RowInsertError) Error() string {
	return fmt.Sprintf("insert %s row for patient %s: %s", e.Kind, e.PatientID, e.Err)
}

func (e *RowInsertError) Unwrap() error {
	return e.Err
}

// TransactionError marks a failure that is fatal to the whole per-bundle
// transaction: begin, commit, the patient upsert, or a child-table delete.
// Individual child-row insert failures are not transaction errors; they are
// logged and skipped.
type TransactionError struct {
	Step string
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Step, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
