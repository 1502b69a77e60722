package drafts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bookkeeping/internal/documents"
	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

type creatorFunc func(ctx context.Context, tenantID uuid.UUID, actorID string, in CreateInput) (documents.Transaction, error)

func (f creatorFunc) Create(ctx context.Context, tenantID uuid.UUID, actorID string, in CreateInput) (documents.Transaction, error) {
	return f(ctx, tenantID, actorID, in)
}

func newRouter(c Creator, tenant *uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if tenant != nil {
				req = req.WithContext(shared.ContextWithTenant(req.Context(), *tenant))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), c).MountRoutes(r)
	return r
}

func TestHandleCreateReturnsCreated(t *testing.T) {
	tenant := uuid.New()
	id := uuid.New()
	var got CreateInput
	c := creatorFunc(func(_ context.Context, tenantID uuid.UUID, actorID string, in CreateInput) (documents.Transaction, error) {
		require.Equal(t, tenant, tenantID)
		require.Equal(t, "clerk-2", actorID)
		got = in
		return documents.Transaction{ID: id, TenantID: tenantID, Type: in.Type, Status: documents.StatusDraft, TotalAmount: 500}, nil
	})

	body := `{"type":"INTERNAL_TRANSFER","date":"2026-03-01T00:00:00Z","totalAmount":500}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("X-Actor-ID", "clerk-2")
	rr := httptest.NewRecorder()
	newRouter(c, &tenant).ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "/api/transactions/"+id.String(), rr.Header().Get("Location"))
	require.Equal(t, documents.TypeInternalTransfer, got.Type)
	require.Equal(t, int64(500), got.TotalAmount)
	require.Contains(t, rr.Body.String(), `"status":"DRAFT"`)
}

func TestHandleCreateMapsErrors(t *testing.T) {
	tenant := uuid.New()
	cases := map[string]struct {
		tenant *uuid.UUID
		body   string
		err    error
		status int
	}{
		"missing tenant": {body: `{}`, status: http.StatusBadRequest},
		"malformed body": {tenant: &tenant, body: `{`, status: http.StatusBadRequest},
		"validation":     {tenant: &tenant, body: `{}`, err: shared.Validation("type required"), status: http.StatusBadRequest},
		"not found":      {tenant: &tenant, body: `{}`, err: shared.NotFound("variant"), status: http.StatusNotFound},
		"conflict":       {tenant: &tenant, body: `{}`, err: shared.Conflict("over return"), status: http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := creatorFunc(func(context.Context, uuid.UUID, string, CreateInput) (documents.Transaction, error) {
				return documents.Transaction{}, tc.err
			})
			rr := httptest.NewRecorder()
			newRouter(c, tc.tenant).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rr.Code)
		})
	}
}
