package middleware

import (
	"net/http"

	"github.com/markit/markit-server/api/responses"
	"github.com/markit/markit-server/pkg/enums"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
)

// RequireRole rejects callers whose token carries another role, or that lack
// the id the role implies.
func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role required").
					WithDetails(map[string]any{"role": string(role)}))
				return
			}
			if _, ok := SubjectIDFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "token is missing the caller id"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
