package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/mmeshcher/pos-ledger/internal/model"
)

// OrganizationHeader задаёт заголовок, которым клиент выбирает организацию.
const OrganizationHeader = "X-Organization-ID"

// ErrBadOrganizationHeader возвращается, если заголовок организации не является UUID.
var ErrBadOrganizationHeader = fmt.Errorf("malformed %s header", OrganizationHeader)

// TenantResolver определяет организацию и роль пользователя для запроса.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, id model.Identity, requested *uuid.UUID) (model.TenantContext, error)
}

// Tenant дополняет контекст запроса арендатором. Ожидает, что личность уже положена AuthMiddleware.
// Ошибки передаются в fail, который отвечает за код ответа.
func Tenant(resolver TenantResolver, fail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			var requested *uuid.UUID
			if h := r.Header.Get(OrganizationHeader); h != "" {
				orgID, err := uuid.Parse(h)
				if err != nil {
					fail(w, r, ErrBadOrganizationHeader)
					return
				}
				requested = &orgID
			}

			tc, err := resolver.ResolveTenant(r.Context(), id, requested)
			if err != nil {
				fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tc)))
		})
	}
}

// WithTenant кладёт контекст арендатора в контекст запроса.
func WithTenant(ctx context.Context, tc model.TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey, tc)
}

// TenantFromContext извлекает контекст арендатора.
func TenantFromContext(ctx context.Context) (model.TenantContext, bool) {
	tc, ok := ctx.Value(tenantKey).(model.TenantContext)
	return tc, ok
}
