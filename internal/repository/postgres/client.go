package postgres

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
)

// NewClient opens a sqlx connection pool against the configured database.
func NewClient(cfg *config.Configuration) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to connect to postgres").
			Mark(ierr.ErrDatabase)
	}
	return db, nil
}
