// internal/common/database/codetable_store.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/common/errors"
)

const codeTableSchema = `
CREATE TABLE IF NOT EXISTS asset_code_tables (
	project     TEXT PRIMARY KEY,
	version     INTEGER NOT NULL,
	snapshot    JSONB NOT NULL,
	entries     INTEGER NOT NULL,
	last_run_id TEXT,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const (
	selectCodeTableSQL = `SELECT snapshot FROM asset_code_tables WHERE project = $1`
	upsertCodeTableSQL = `
INSERT INTO asset_code_tables (project, version, snapshot, entries, last_run_id, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (project) DO UPDATE SET
	version = EXCLUDED.version,
	snapshot = EXCLUDED.snapshot,
	entries = EXCLUDED.entries,
	last_run_id = EXCLUDED.last_run_id,
	updated_at = NOW()`
	deleteCodeTableSQL = `DELETE FROM asset_code_tables WHERE project = $1`
)

// CodeTableStore persists one code table snapshot per project so re-uploads keep their IDs.
type CodeTableStore struct {
	db *PostgresClient
}

func NewCodeTableStore(db *PostgresClient) *CodeTableStore {
	return &CodeTableStore{db: db}
}

// EnsureSchema creates the backing table when missing.
func (s *CodeTableStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, codeTableSchema); err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("create asset_code_tables: %w", err))
	}
	return nil
}

// Load returns the stored table for a project. found is false when the project has none.
func (s *CodeTableStore) Load(ctx context.Context, project string) (*codetable.CodeTable, bool, error) {
	var raw []byte
	err := s.db.DB.QueryRowContext(ctx, selectCodeTableSQL, project).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCodeTableLoadFailedError(project, err)
	}

	var snap codetable.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, errors.NewCodeTableLoadFailedError(project, fmt.Errorf("decode snapshot: %w", err))
	}
	table, err := codetable.FromSnapshot(snap)
	if err != nil {
		return nil, false, errors.NewCodeTableLoadFailedError(project, err)
	}
	return table, true, nil
}

// Save replaces the project's table with the given one.
func (s *CodeTableStore) Save(ctx context.Context, project, runID string, table *codetable.CodeTable) error {
	snap := table.Snapshot()
	raw, err := json.Marshal(snap)
	if err != nil {
		return errors.NewCodeTableSaveFailedError(project, err)
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsertCodeTableSQL, project, snap.Version, raw, len(snap.Entries), runID)
		return err
	})
	if err != nil {
		return errors.NewCodeTableSaveFailedError(project, err)
	}
	return nil
}

// Delete forgets a project's table.
func (s *CodeTableStore) Delete(ctx context.Context, project string) error {
	if _, err := s.db.DB.ExecContext(ctx, deleteCodeTableSQL, project); err != nil {
		return errors.NewCodeTableSaveFailedError(project, err)
	}
	return nil
}
