package repository

import "context"

// TxRepos bundles the transaction-scoped repositories that take part in one
// atomic unit. Every repository in the bundle shares the same transaction.
type TxRepos struct {
	Trips     TripRepository
	Loads     LoadRepository
	Trucks    TruckRepository
	Positions PositionRepository
	Events    EventRepository
}

// TxManager runs a function inside a single transaction. The function's
// writes all commit or all roll back; an error from fn aborts the
// transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
