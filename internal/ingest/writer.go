package ingest

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/careview/internal/model"
	embedsql "github.com/gyeh/careview/internal/sql"
)

// Writer persists one parsed record set per transaction: patient upsert,
// delete of the patient's existing child rows, then insert of the new child
// rows. On success the store reflects exactly the latest bundle; on fatal
// failure the transaction is rolled back and the store is unchanged.
type Writer struct {
	pool *pgxpool.Pool
	exec Executor
	log  zerolog.Logger
}

func NewWriter(pool *pgxpool.Pool, exec Executor, log zerolog.Logger) *Writer {
	return &Writer{pool: pool, exec: exec, log: log}
}

// WriteResult counts what one transaction inserted and rejected.
type WriteResult struct {
	Conditions   int
	Medications  int
	Encounters   int
	RowsRejected int
}

// Persist writes rs to the store. Fatal failures (begin, patient upsert,
// child delete, commit) trigger rollback and return *TransactionError or
// *StoreBusyError; individual child-row insert failures are logged, counted
// in RowsRejected, and do not fail the job.
func (w *Writer) Persist(ctx context.Context, rs *model.RecordSet) (*WriteResult, error) {
	var tx pgx.Tx
	err := w.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		tx, err = w.pool.Begin(ctx)
		return err
	})
	if err != nil {
		return nil, wrapFatal("begin", err)
	}

	res, err := w.writeAll(ctx, tx, rs)
	if err != nil {
		w.rollback(ctx, tx)
		return nil, err
	}

	if err := w.exec.Execute(ctx, tx.Commit); err != nil {
		w.rollback(ctx, tx)
		return nil, wrapFatal("commit", err)
	}
	return res, nil
}

func (w *Writer) writeAll(ctx context.Context, tx pgx.Tx, rs *model.RecordSet) (*WriteResult, error) {
	res := &WriteResult{}

	if rs.Patient != nil {
		p := rs.Patient
		err := w.exec.Execute(ctx, func(ctx context.Context) error {
			_, err := tx.Exec(ctx, embedsql.UpsertPatient,
				p.ID, p.Name, p.Gender, p.BirthDate, p.Address, p.Phone, p.MaritalStatus)
			return err
		})
		if err != nil {
			return nil, wrapFatal("upsert patient", err)
		}

		// Replace, don't accumulate: the child rows for this patient are an
		// idempotent reflection of the latest bundle, so the previous set
		// goes before the new one lands.
		for _, del := range []struct {
			step string
			sql  string
		}{
			{"delete conditions", embedsql.DeleteConditions},
			{"delete medications", embedsql.DeleteMedications},
			{"delete encounters", embedsql.DeleteEncounters},
		} {
			err := w.exec.Execute(ctx, func(ctx context.Context) error {
				_, err := tx.Exec(ctx, del.sql, p.ID)
				return err
			})
			if err != nil {
				return nil, wrapFatal(del.step, err)
			}
		}
	}

	for _, c := range rs.Conditions {
		err := w.insertRow(ctx, tx, embedsql.InsertCondition,
			c.PatientID, c.Condition, c.ConditionCode, c.OnsetDate, c.AbatementDate)
		if err != nil {
			res.RowsRejected++
			rej := &RowInsertError{Kind: "condition", PatientID: c.PatientID, Err: err}
			w.log.Warn().Err(rej).Str("condition", c.Condition).Msg("row rejected")
			continue
		}
		res.Conditions++
	}

	for _, m := range rs.Medications {
		err := w.insertRow(ctx, tx, embedsql.InsertMedication,
			m.PatientID, m.Medication, m.MedicationCode, m.StartDate, m.EndDate, m.Status, m.Dosage)
		if err != nil {
			res.RowsRejected++
			rej := &RowInsertError{Kind: "medication", PatientID: m.PatientID, Err: err}
			w.log.Warn().Err(rej).Str("medication", m.Medication).Msg("row rejected")
			continue
		}
		res.Medications++
	}

	for _, e := range rs.Encounters {
		err := w.insertRow(ctx, tx, embedsql.InsertEncounter,
			e.PatientID, e.EncounterType, e.StartDate, e.EndDate)
		if err != nil {
			res.RowsRejected++
			rej := &RowInsertError{Kind: "encounter", PatientID: e.PatientID, Err: err}
			w.log.Warn().Err(rej).Str("encounter_type", e.EncounterType).Msg("row rejected")
			continue
		}
		res.Encounters++
	}

	return res, nil
}

// insertRow runs one child insert inside a savepoint so a failed row
// (malformed values, a reference to a patient that does not exist) rolls
// back only itself and the enclosing transaction stays usable. The whole
// savepoint attempt goes through the executor so a busy row insert is
// retried from a clean savepoint.
func (w *Writer) insertRow(ctx context.Context, tx pgx.Tx, sql string, args ...any) error {
	return w.exec.Execute(ctx, func(ctx context.Context) error {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := sp.Exec(ctx, sql, args...); err != nil {
			_ = sp.Rollback(ctx)
			return err
		}
		return sp.Commit(ctx)
	})
}

// rollback returns the store to a clean state after a fatal failure. It is
// itself retried; if it still fails that is logged but never masks the
// original error.
func (w *Writer) rollback(ctx context.Context, tx pgx.Tx) {
	err := w.exec.Execute(ctx, tx.Rollback)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		w.log.Error().Err(err).Msg("rollback failed")
	}
}

// wrapFatal keeps *StoreBusyError visible as its own failure class and
// wraps everything else as a transaction error.
func wrapFatal(step string, err error) error {
	var busy *StoreBusyError
	if errors.As(err, &busy) {
		return busy
	}
	return &TransactionError{Step: step, Err: err}
}
