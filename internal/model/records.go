package model

import (
	"encoding/json"
	"time"
)

// PatientRecord is one row in the patients table. ID is the identifier
// assigned by the source bundle and is stable across re-ingestion: writing
// the same ID again replaces every scalar field.
type PatientRecord struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Gender        *string         `json:"gender"`
	BirthDate     *time.Time      `json:"birth_date"`
	Address       json.RawMessage `json:"address"` // opaque; rendered by the UI, never interpreted here
	Phone         *string         `json:"phone"`
	MaritalStatus *string         `json:"marital_status"`
}

// ConditionRecord is one row in the conditions table.
type ConditionRecord struct {
	ID            int64      `json:"id"`
	PatientID     string     `json:"patient_id"`
	Condition     string     `json:"condition"`
	ConditionCode *string    `json:"condition_code"`
	OnsetDate     *time.Time `json:"onset_date"`
	AbatementDate *time.Time `json:"abatement_date"` // nil means ongoing
}

// MedicationRecord is one row in the medications table.
type MedicationRecord struct {
	ID             int64      `json:"id"`
	PatientID      string     `json:"patient_id"`
	Medication     string     `json:"medication"`
	MedicationCode *string    `json:"medication_code"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"` // no source data populates this; always nil at ingestion
	Status         *string    `json:"status"`
	Dosage         *string    `json:"dosage"`
}

// EncounterRecord is one row in the encounters table.
type EncounterRecord struct {
	ID            int64      `json:"id"`
	PatientID     string     `json:"patient_id"`
	EncounterType string     `json:"encounter_type"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
}

// RecordSet is the normalized output of parsing one bundle document.
// Patient is nil when the bundle carried no Patient entry; child slices may
// still be populated and reference whatever patient ID the source named.
type RecordSet struct {
	Patient     *PatientRecord
	Conditions  []ConditionRecord
	Medications []MedicationRecord
	Encounters  []EncounterRecord
}

// Empty reports whether the set contains nothing to persist.
func (rs *RecordSet) Empty() bool {
	return rs.Patient == nil &&
		len(rs.Conditions) == 0 &&
		len(rs.Medications) == 0 &&
		len(rs.Encounters) == 0
}

// PatientSummary holds per-patient child row counts for the list view.
type PatientSummary struct {
	PatientID       string `json:"patient_id"`
	ConditionCount  int    `json:"condition_count"`
	MedicationCount int    `json:"medication_count"`
	EncounterCount  int    `json:"encounter_count"`
}
