package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// ClearAll deletes every row from all four tables, for an administrative
// reset before re-ingesting a directory. Referential-integrity enforcement
// is disabled for the session around the bulk delete and restored before
// the connection goes back to the pool; it is session state, not
// transaction state, so the restore must run even on failure.
func (s *Store) ClearAll(ctx context.Context, log zerolog.Logger) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET session_replication_role = replica"); err != nil {
		return fmt.Errorf("disable referential integrity: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(ctx, "SET session_replication_role = DEFAULT"); err != nil {
			log.Error().Err(err).Msg("failed to restore referential integrity enforcement")
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, table := range []string{"medications", "conditions", "encounters", "patients"} {
		tag, err := tx.Exec(ctx, "DELETE FROM "+table)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		log.Info().Str("table", table).Int64("rows_deleted", tag.RowsAffected()).Msg("table cleared")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clear transaction: %w", err)
	}
	return nil
}
