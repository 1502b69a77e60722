package posting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/platform/httpx"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Poster is the engine surface used by transports.
type Poster interface {
	Post(ctx context.Context, tenantID, transactionID uuid.UUID, in Instructions) (*Result, error)
	Get(ctx context.Context, tenantID, transactionID uuid.UUID) (*Result, error)
}

// Enqueuer schedules a posting on the background worker and returns the task id.
type Enqueuer interface {
	EnqueuePosting(ctx context.Context, tenantID, transactionID uuid.UUID, in Instructions) (string, error)
}

// Handler exposes posting over HTTP.
type Handler struct {
	logger *slog.Logger
	poster Poster
	queue  Enqueuer
}

// NewHandler constructs the handler. queue may be nil when no worker is configured.
func NewHandler(logger *slog.Logger, poster Poster, queue Enqueuer) *Handler {
	return &Handler{logger: logger, poster: poster, queue: queue}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions/{id}", h.handleGet)
	r.Post("/transactions/{id}/post", h.handlePost)
	r.Post("/transactions/{id}/post-async", h.handlePostAsync)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := params(w, r)
	if !ok {
		return
	}
	res, err := h.poster.Get(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := params(w, r)
	if !ok {
		return
	}
	in, err := decodeInstructions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.poster.Post(r.Context(), tenantID, id, in)
	if err != nil {
		h.fail(w, "post transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handlePostAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Worker Unavailable", "async posting is not configured")
		return
	}
	tenantID, id, ok := params(w, r)
	if !ok {
		return
	}
	in, err := decodeInstructions(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if in.IdempotencyKey == "" {
		httpx.RespondError(w, shared.Validation("idempotency key required"))
		return
	}
	taskID, err := h.queue.EnqueuePosting(r.Context(), tenantID, id, in)
	if err != nil {
		h.fail(w, "enqueue posting", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": taskID, "status": "queued"})
}

// decodeInstructions reads an optional JSON body. The Idempotency-Key header
// fills the key when the body omits it.
func decodeInstructions(r *http.Request) (Instructions, error) {
	var in Instructions
	if err := httpx.DecodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		return Instructions{}, shared.Validation("invalid request body: %v", err)
	}
	if header := r.Header.Get("Idempotency-Key"); header != "" {
		if in.IdempotencyKey != "" && in.IdempotencyKey != header {
			return Instructions{}, shared.Validation("Idempotency-Key header does not match body")
		}
		in.IdempotencyKey = header
	}
	in.ActorID = r.Header.Get("X-Actor-ID")
	return in, nil
}

func params(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Validation("tenant required"))
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid id %q", chi.URLParam(r, "id")))
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
		h.logger.Info(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
