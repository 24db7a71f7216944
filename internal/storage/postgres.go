package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"thermolog/internal/models"
)

// Archiver mirrors aggregated readings to long-term storage. The file
// store remains authoritative; archive failures are logged and retried on
// the next flush.
type Archiver interface {
	// ArchiveReadings inserts aggregated readings in a single transaction.
	// Duplicate timestamps from earlier flushes are skipped.
	ArchiveReadings(ctx context.Context, entries []models.Reading) error

	// Close releases database resources.
	Close() error
}

// PostgresArchive implements Archiver on a plain Postgres table:
//
//	CREATE TABLE IF NOT EXISTS readings (
//	    ts          BIGINT PRIMARY KEY,
//	    temperature DOUBLE PRECISION NOT NULL,
//	    humidity    DOUBLE PRECISION NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL
//	);
type PostgresArchive struct {
	db *sql.DB
}

// NewPostgresArchive connects and verifies connectivity.
func NewPostgresArchive(connStr string) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresArchive{db: db}, nil
}

// ArchiveReadings performs a transactional batch insert. Either every
// reading lands or none do; rows already archived are left untouched.
func (a *PostgresArchive) ArchiveReadings(ctx context.Context, entries []models.Reading) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO readings (ts, temperature, humidity, recorded_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (ts) DO NOTHING
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range entries {
		if _, err := stmt.ExecContext(ctx, r.TS, r.T, r.H, time.Unix(r.TS, 0).UTC()); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Close() error {
	return a.db.Close()
}

// Compile-time interface implementation check
var _ Archiver = (*PostgresArchive)(nil)
