package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bookkeeping/internal/posting"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPostingPost posts one DRAFT document.
	TaskPostingPost = "posting:post"
	// TaskStatementsReconcile compares open documents with ledger balances.
	TaskStatementsReconcile = "statements:reconcile"
)

// PostingPayload describes one asynchronous posting request.
type PostingPayload struct {
	TenantID      uuid.UUID            `json:"tenant_id"`
	TransactionID uuid.UUID            `json:"transaction_id"`
	Instructions  posting.Instructions `json:"instructions"`
	ActorID       string               `json:"actor_id,omitempty"`
}

// NewPostingTask constructs the task. The task id is the posting key so a
// duplicate submission collapses onto the queued one.
func NewPostingTask(payload PostingPayload, maxRetry int) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	key := shared.PostingKey(payload.TenantID, payload.TransactionID, payload.Instructions.IdempotencyKey)
	return asynq.NewTask(TaskPostingPost, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(key),
		asynq.MaxRetry(maxRetry),
	), nil
}

// ReconcilePayload carries scheduling metadata.
type ReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconcileTask constructs the statement reconciliation task.
func NewReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementsReconcile, body, asynq.Queue(QueueDefault)), nil
}
