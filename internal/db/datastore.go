package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/lockwhz/secregress/models"
)

// DataStore persists recomputed summaries.
type DataStore interface {
	EnsureSchema(ctx context.Context) error
	SaveSummary(ctx context.Context, runID uuid.UUID, s models.Summary) error
}

// Database is a thin wrapper around *sql.DB so tests can swap in sqlmock.
type Database struct {
	conn *sql.DB
}

func NewDatabase() *Database { return &Database{} }

// Connect opens a PostgreSQL connection with lib/pq and checks it with Ping.
func (d *Database) Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open conn: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	d.conn = db
	return db, nil
}

func (d *Database) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
