package drafts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/platform/httpx"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Creator is the service surface used by the handler.
type Creator interface {
	Create(ctx context.Context, tenantID uuid.UUID, actorID string, in CreateInput) (documents.Transaction, error)
}

// Handler exposes draft creation over HTTP.
type Handler struct {
	logger  *slog.Logger
	service Creator
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service Creator) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers draft routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.handleCreate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Validation("tenant required"))
		return
	}
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body: %v", err))
		return
	}
	txn, err := h.service.Create(r.Context(), tenantID, r.Header.Get("X-Actor-ID"), in)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) {
			h.logger.Info("create draft", slog.Any("error", err))
		} else {
			h.logger.Error("create draft", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+txn.ID.String())
	httpx.JSON(w, http.StatusCreated, txn)
}
