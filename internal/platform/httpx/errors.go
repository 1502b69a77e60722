package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var stock *shared.InsufficientStockError
	switch {
	case errors.As(err, &stock):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Insufficient Stock",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Errors: stock.Lines,
		})
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Idempotency Conflict", err.Error())
	case errors.Is(err, shared.ErrSerializationConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Concurrent Update", "the request conflicted with a concurrent posting; retry")
	case errors.Is(err, shared.ErrDomainConflict):
		Problem(w, http.StatusUnprocessableEntity, "Domain Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
