package domain

import "context"

// UnitOfWork groups repository operations in a single transaction.
type UnitOfWork interface {
	// Execute runs the provided function within a transaction. The function
	// receives a UnitOfWork whose repositories share that transaction.
	Execute(ctx context.Context, fn func(uow UnitOfWork) error) error
	// Contexts returns the business context repository bound to this unit.
	Contexts() BusinessContextRepository
	// Sessions returns the session store bound to this unit.
	Sessions() SessionStore
	// Outbox returns the outbox repository bound to this unit.
	Outbox() OutboxRepository
}
