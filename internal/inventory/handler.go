package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/bookkeeping/internal/platform/httpx"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// StockCardReader reads stock card rows.
type StockCardReader interface {
	StockCard(ctx context.Context, tenantID, variantID uuid.UUID, limit int) ([]StockCardEntry, error)
}

// Handler wires HTTP endpoints for inventory reads.
type Handler struct {
	logger *slog.Logger
	reader StockCardReader
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, reader StockCardReader) *Handler {
	return &Handler{logger: logger, reader: reader}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/variants/{id}/stock-card", h.handleStockCard)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Validation("tenant required"))
		return
	}
	variantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid variant id"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.reader.StockCard(r.Context(), tenantID, variantID, limit)
	if err != nil {
		h.logger.Error("stock card", slog.Any("error", err), slog.String("variant_id", variantID.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
