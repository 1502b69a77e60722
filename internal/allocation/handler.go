package allocation

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/platform/httpx"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// Handler exposes allocation reads over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers allocation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/counterparties/{id}/open-documents", h.handleOpenDocuments)
	r.Get("/counterparties/{id}/allocations", h.handleByCounterparty)
	r.Get("/counterparties/{id}/statement", h.handleStatement)
	r.Get("/invoices/{id}/allocations", h.handleByInvoice)
}

func (h *Handler) handleOpenDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	docs, err := h.service.OpenDocuments(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "open documents", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": docs})
}

func (h *Handler) handleByCounterparty(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	result, err := h.service.ByCounterparty(r.Context(), tenantID, id, page, perPage)
	if err != nil {
		h.fail(w, "allocations by counterparty", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	st, err := h.service.Statement(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleByInvoice(w http.ResponseWriter, r *http.Request) {
	tenantID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	items, err := h.service.ByInvoice(r.Context(), tenantID, id)
	if err != nil {
		h.fail(w, "allocations by invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
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
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
