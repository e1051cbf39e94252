package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/careview/internal/model"
	embedsql "github.com/gyeh/careview/internal/sql"
)

// ErrNotFound is returned by lookups for a patient ID with no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the pool with the read queries the HTTP API serves.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for the ingestion writer.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// ListPatients returns all patients ordered by display name.
func (s *Store) ListPatients(ctx context.Context) ([]model.PatientRecord, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListPatients)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// SearchPatients returns up to 20 patients whose name contains q.
func (s *Store) SearchPatients(ctx context.Context, q string) ([]model.PatientRecord, error) {
	rows, err := s.pool.Query(ctx, embedsql.SearchPatients, q)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// PatientByID returns one patient or ErrNotFound.
func (s *Store) PatientByID(ctx context.Context, id string) (*model.PatientRecord, error) {
	var p model.PatientRecord
	err := s.pool.QueryRow(ctx, embedsql.PatientByID, id).Scan(
		&p.ID, &p.Name, &p.Gender, &p.BirthDate, &p.Address, &p.Phone, &p.MaritalStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient by id: %w", err)
	}
	return &p, nil
}

// ConditionsByPatient returns a patient's conditions sorted by onset date.
func (s *Store) ConditionsByPatient(ctx context.Context, patientID string) ([]model.ConditionRecord, error) {
	rows, err := s.pool.Query(ctx, embedsql.ConditionsByPatient, patientID)
	if err != nil {
		return nil, fmt.Errorf("conditions by patient: %w", err)
	}
	defer rows.Close()

	var out []model.ConditionRecord
	for rows.Next() {
		var c model.ConditionRecord
		if err := rows.Scan(&c.ID, &c.PatientID, &c.Condition, &c.ConditionCode, &c.OnsetDate, &c.AbatementDate); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MedicationsByPatient returns a patient's medications sorted by start date.
func (s *Store) MedicationsByPatient(ctx context.Context, patientID string) ([]model.MedicationRecord, error) {
	rows, err := s.pool.Query(ctx, embedsql.MedicationsByPatient, patientID)
	if err != nil {
		return nil, fmt.Errorf("medications by patient: %w", err)
	}
	defer rows.Close()

	var out []model.MedicationRecord
	for rows.Next() {
		var m model.MedicationRecord
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Medication, &m.MedicationCode, &m.StartDate, &m.EndDate, &m.Status, &m.Dosage); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EncountersByPatient returns a patient's encounters sorted by start date.
func (s *Store) EncountersByPatient(ctx context.Context, patientID string) ([]model.EncounterRecord, error) {
	rows, err := s.pool.Query(ctx, embedsql.EncountersByPatient, patientID)
	if err != nil {
		return nil, fmt.Errorf("encounters by patient: %w", err)
	}
	defer rows.Close()

	var out []model.EncounterRecord
	for rows.Next() {
		var e model.EncounterRecord
		if err := rows.Scan(&e.ID, &e.PatientID, &e.EncounterType, &e.StartDate, &e.EndDate); err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PatientSummary returns child row counts for one patient.
func (s *Store) PatientSummary(ctx context.Context, patientID string) (*model.PatientSummary, error) {
	sum := model.PatientSummary{PatientID: patientID}
	err := s.pool.QueryRow(ctx, embedsql.PatientSummary, patientID).Scan(
		&sum.ConditionCount, &sum.MedicationCount, &sum.EncounterCount,
	)
	if err != nil {
		return nil, fmt.Errorf("patient summary: %w", err)
	}
	return &sum, nil
}

func scanPatients(rows pgx.Rows) ([]model.PatientRecord, error) {
	var out []model.PatientRecord
	for rows.Next() {
		var p model.PatientRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Gender, &p.BirthDate, &p.Address, &p.Phone, &p.MaritalStatus); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
