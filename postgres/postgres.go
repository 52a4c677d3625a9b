// Package postgres stores workflows in PostgreSQL via pgx. Components and
// connections are kept as JSONB documents next to the workflow row.
package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/workflow"
)

// Store implements workflow.Store using PostgreSQL via pgx.
type Store struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// New creates a Store backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, now: time.Now}
}

var _ workflow.Store = (*Store)(nil)
