package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/bookkeeping/internal/jobs"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// PostingJob executes queued postings. Serialization conflicts are returned for
// asynq to retry; every other failure is final.
type PostingJob struct {
	Poster  Poster
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPostingJob initialises the posting handler.
func NewPostingJob(poster Poster, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostingJob {
	return &PostingJob{Poster: poster, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPostingPost tasks.
func (j *PostingJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Poster == nil {
		return errors.New("posting job: handler not configured")
	}
	var payload PostingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("posting job: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskPostingPost)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.String("tenant_id", payload.TenantID.String()),
		slog.String("transaction_id", payload.TransactionID.String()),
	)
	in := payload.Instructions
	in.ActorID = payload.ActorID
	res, err := j.Poster.Post(ctx, payload.TenantID, payload.TransactionID, in)
	switch {
	case err == nil:
		logger.Info("queued posting completed", slog.String("document_number", derefString(res.Transaction.DocumentNumber)))
		return nil
	case shared.IsRetryable(err):
		logger.Warn("queued posting conflicted, retrying", slog.Any("error", err))
		return err
	default:
		logger.Error("queued posting failed", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

func (j *PostingJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
