package model

import "time"

// IngestSummary holds metrics from one completed ingestion job.
type IngestSummary struct {
	FilePath     string
	JobID        string
	PatientID    string
	Conditions   int
	Medications  int
	Encounters   int
	RowsRejected int
	Skipped      int // entries of unrecognized resource kinds
	Dropped      int // recognized entries with unusable subject references
	Duration     time.Duration
}
