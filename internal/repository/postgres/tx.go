package postgres

import (
	"context"
	"database/sql"

	"freight/internal/repository"
)

// TxManager is a PostgreSQL implementation of repository.TxManager.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, hands fn transaction-scoped repositories,
// and commits when fn returns nil. Any error rolls everything back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	repos := repository.TxRepos{
		Trips:     NewTripRepositoryWithTx(tx),
		Loads:     NewLoadRepositoryWithTx(tx),
		Trucks:    NewTruckRepositoryWithTx(tx),
		Positions: NewPositionRepositoryWithTx(tx),
		Events:    NewEventRepositoryWithTx(tx),
	}

	if err := fn(repos); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Ensure TxManager implements repository.TxManager.
var _ repository.TxManager = (*TxManager)(nil)
