package shared

import (
	"context"

	"github.com/google/uuid"
)

type tenantContextKey struct{}

// ContextWithTenant stores the tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenantID)
}

// TenantFromContext extracts the tenant id from context.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
