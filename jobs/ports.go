package jobs

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/allocation"
	"github.com/odyssey-erp/bookkeeping/internal/posting"
)

// Poster posts documents. Implemented by *posting.Engine.
type Poster interface {
	Post(ctx context.Context, tenantID, transactionID uuid.UUID, in posting.Instructions) (*posting.Result, error)
}

// Reconciler serves the statement views. Implemented by *allocation.Service.
type Reconciler interface {
	ActiveCounterparties(ctx context.Context) ([]allocation.CounterpartyRef, error)
	Statement(ctx context.Context, tenantID, counterpartyID uuid.UUID) (allocation.Statement, error)
}
