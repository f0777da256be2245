package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockwhz/secregress/internal/logger"
	"github.com/lockwhz/secregress/models"
)

const schema = `CREATE TABLE IF NOT EXISTS commit_summaries (
	repository   TEXT        NOT NULL,
	commit_id    TEXT        NOT NULL,
	run_id       UUID        NOT NULL,
	high         INTEGER     NOT NULL,
	medium       INTEGER     NOT NULL,
	low          INTEGER     NOT NULL,
	cwe_ids      TEXT        NOT NULL,
	position     INTEGER     NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (repository, commit_id)
)`

const upsertSummary = `INSERT INTO commit_summaries (
	repository, commit_id, run_id, high, medium, low, cwe_ids, position, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (repository, commit_id) DO UPDATE SET
	run_id = EXCLUDED.run_id,
	high = EXCLUDED.high,
	medium = EXCLUDED.medium,
	low = EXCLUDED.low,
	cwe_ids = EXCLUDED.cwe_ids,
	position = EXCLUDED.position,
	updated_at = EXCLUDED.updated_at`

// RDSStore implements DataStore on PostgreSQL (RDS).
type RDSStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func (r *RDSStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create commit_summaries: %w", err)
	}
	return nil
}

// SaveSummary upserts every record of s in one transaction; a recomputed
// summary overwrites the rows of earlier runs.
func (r *RDSStore) SaveSummary(ctx context.Context, runID uuid.UUID, s models.Summary) error {
	start := time.Now()
	defer logger.Trace("SaveSummary", start)

	if len(s.Records) == 0 {
		return nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertSummary)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	ts := now().UTC()
	for i, rec := range s.Records {
		if _, err := stmt.ExecContext(ctx,
			s.Repository,
			rec.Commit,
			runID,
			rec.High,
			rec.Medium,
			rec.Low,
			rec.CWEString(),
			i,
			ts,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s/%s: %w", s.Repository, rec.Commit, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
