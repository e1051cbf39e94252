// Package sql holds the embedded DDL migrations and DML statements used by
// the store and the transactional writer.
package sql

import "embed"

// Migrations contains the schema migration files, applied in filename order.
//
//go:embed migrations
var Migrations embed.FS

//go:embed queries/upsert_patient.sql
var UpsertPatient string

//go:embed queries/delete_conditions.sql
var DeleteConditions string

//go:embed queries/delete_medications.sql
var DeleteMedications string

//go:embed queries/delete_encounters.sql
var DeleteEncounters string

//go:embed queries/insert_condition.sql
var InsertCondition string

//go:embed queries/insert_medication.sql
var InsertMedication string

//go:embed queries/insert_encounter.sql
var InsertEncounter string

//go:embed queries/list_patients.sql
var ListPatients string

//go:embed queries/search_patients.sql
var SearchPatients string

//go:embed queries/patient_by_id.sql
var PatientByID string

//go:embed queries/conditions_by_patient.sql
var ConditionsByPatient string

//go:embed queries/medications_by_patient.sql
var MedicationsByPatient string

//go:embed queries/encounters_by_patient.sql
var EncountersByPatient string

//go:embed queries/patient_summary.sql
var PatientSummary string
